package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bizconsole/internal/domain/matchlog"
)

const (
	sheetName    = "Match log"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{"Date", "Transaction", "Action", "Status", "Entity type", "Entity", "Amount", "Message"}

const (
	amountColumn = 7
	amountFormat = 4 // #,##0.00
)

// XLSX writes match log entries as a spreadsheet, one row per allocation.
// Entries without allocations (dematch, delete, reconcile) get a single row.
type XLSX struct{}

var _ matchlog.Exporter = XLSX{}

func (XLSX) ContentType() string { return xlsxMimeType }
func (XLSX) Extension() string   { return "xlsx" }

func (XLSX) WriteEntries(w io.Writer, entries []*matchlog.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if err := setRow(f, 1, toCells(headers)); err != nil {
		return err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: amountFormat})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	row := 2
	for _, e := range entries {
		date := e.CreatedAt.Format("2006-01-02 15:04:05")
		if len(e.Allocations) == 0 {
			if err := setRow(f, row, []any{date, e.TransactionID, string(e.Action), string(e.Status), "", "", "", e.Message}); err != nil {
				return err
			}
			row++
			continue
		}
		for _, a := range e.Allocations {
			if err := setRow(f, row, []any{date, e.TransactionID, string(e.Action), string(e.Status), string(a.EntityType), a.EntityID, nil, e.Message}); err != nil {
				return err
			}
			if err := setAmount(f, row, a.Amount, amountStyle); err != nil {
				return err
			}
			row++
		}
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 24)
	f.SetColWidth(sheetName, "C", "D", 18)
	f.SetColWidth(sheetName, "E", "F", 16)
	f.SetColWidth(sheetName, "G", "G", 14)
	f.SetColWidth(sheetName, "H", "H", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// setAmount stores the exact decimal text as a numeric cell. Going through float64
// would drop digits on large or high-precision amounts.
func setAmount(f *excelize.File, row int, amount decimal.Decimal, style int) error {
	cell, err := excelize.CoordinatesToCellName(amountColumn, row)
	if err != nil {
		return err
	}
	if err := f.SetCellDefault(sheetName, cell, amount.String()); err != nil {
		return fmt.Errorf("failed to write amount in row %d: %w", row, err)
	}
	return f.SetCellStyle(sheetName, cell, cell, style)
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
