package matchlog

import (
	"context"
	"fmt"
	"io"
	"log"
)

// Exporter writes entries in a downloadable format.
type Exporter interface {
	WriteEntries(w io.Writer, entries []*Entry) error
	ContentType() string
	Extension() string
}

// Service records and reads the match log.
type Service struct {
	repo     Repository
	exporter Exporter
}

// NewService creates a new match log service. exporter may be nil when exports are not offered.
func NewService(repo Repository, exporter Exporter) *Service {
	return &Service{repo: repo, exporter: exporter}
}

// Record stores an entry.
func (s *Service) Record(ctx context.Context, params CreateParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	entry, err := s.repo.Create(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to record %s for transaction %s: %w", params.Action, params.TransactionID, err)
	}
	log.Printf("Recorded %s for transaction %s (entry %s)", entry.Action, entry.TransactionID, entry.ID)
	return nil
}

// List returns entries, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Entry, error) {
	if filter.Action != "" && !filter.Action.IsValid() {
		return nil, ErrInvalidAction
	}
	entries, err := s.repo.List(ctx, filter.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list match log: %w", err)
	}
	return entries, nil
}

// Export writes the filtered entries to w using the configured exporter.
func (s *Service) Export(ctx context.Context, w io.Writer, filter ListFilter) error {
	if s.exporter == nil {
		return fmt.Errorf("match log export is not configured")
	}
	entries, err := s.List(ctx, filter)
	if err != nil {
		return err
	}
	return s.exporter.WriteEntries(w, entries)
}

// ExportFormat returns the content type and file extension of exports.
func (s *Service) ExportFormat() (contentType, extension string) {
	if s.exporter == nil {
		return "", ""
	}
	return s.exporter.ContentType(), s.exporter.Extension()
}
