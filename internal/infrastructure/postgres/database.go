package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var dbTracer = otel.Tracer("bizconsole.db")

// DB is a *sql.DB whose query methods emit spans.
type DB struct {
	*sql.DB
}

func New(connStr string) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The match log is low volume; a small pool is plenty.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return dbTracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", sqlVerb(query)),
		attribute.String("db.statement", redactQuery(query)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil && err != sql.ErrNoRows {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// QueryContext wraps sql.DB.QueryContext with tracing.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := db.startSpan(ctx, "db.Query", query)
	rows, err := db.DB.QueryContext(ctx, query, args...)
	endSpan(span, err)
	return rows, err
}

// Row defers span completion to Scan, where sql.Row reports its errors.
type Row struct {
	row  *sql.Row
	span trace.Span
}

func (r *Row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if r.span != nil {
		endSpan(r.span, err)
		r.span = nil
	}
	return err
}

// QueryRowContext wraps sql.DB.QueryRowContext with tracing.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	ctx, span := db.startSpan(ctx, "db.QueryRow", query)
	return &Row{row: db.DB.QueryRowContext(ctx, query, args...), span: span}
}

// ExecContext wraps sql.DB.ExecContext with tracing.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := db.startSpan(ctx, "db.Exec", query)
	result, err := db.DB.ExecContext(ctx, query, args...)
	endSpan(span, err)
	return result, err
}

const maxStatementLen = 256

// redactQuery strips literal values from a statement before it is attached to a span.
// Quoted strings become '?' and bare numbers become ?, $N placeholders are kept and
// runs of whitespace collapse to one space.
func redactQuery(q string) string {
	var b strings.Builder
	b.Grow(len(q))

	space := false
	for i := 0; i < len(q); {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if !space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = true
			i++
			continue
		case c == '\'':
			b.WriteString("'?'")
			i = skipQuoted(q, i+1)
		case c == '$':
			b.WriteByte(c)
			i++
			for i < len(q) && isDigit(q[i]) {
				b.WriteByte(q[i])
				i++
			}
		case isDigit(c) && (i == 0 || !isIdentByte(q[i-1])):
			b.WriteByte('?')
			for i < len(q) && (isDigit(q[i]) || q[i] == '.') {
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
		space = false
	}

	s := strings.TrimSpace(b.String())
	if len(s) > maxStatementLen {
		return s[:maxStatementLen] + "..."
	}
	return s
}

// skipQuoted returns the index just past the closing quote of a literal starting at i.
func skipQuoted(q string, i int) int {
	for i < len(q) {
		if q[i] == '\'' {
			if i+1 < len(q) && q[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || isDigit(c)
}

func sqlVerb(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
