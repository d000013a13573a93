// Package application holds the single write path that grows the ledger,
// and its undo.
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ledger "autostrom/internal/ledger/domain"
)

// Service validates and appends readings against a ledger backend. It
// retains no ledger state between calls: every operation re-reads the
// store, so it observes the latest persisted value (best effort, no
// locking).
type Service struct {
	backend ledger.Backend
	bounds  ledger.Bounds
}

// Option configures the service.
type Option func(*Service)

// WithBounds overrides the consumption sanity bounds.
func WithBounds(bounds ledger.Bounds) Option {
	return func(s *Service) {
		s.bounds = bounds
	}
}

// NewService constructs the ledger service.
func NewService(backend ledger.Backend, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, errors.New("ledger service: nil backend")
	}
	service := &Service{backend: backend, bounds: ledger.DefaultBounds}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Load reads and parses the full ledger.
func (s *Service) Load(ctx context.Context) (*ledger.Ledger, error) {
	text, err := s.backend.ReadText(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Parse(text)
}

// Append validates a candidate reading, derives consumption and charge,
// and persists the extended ledger. With at least one existing data row
// the derived consumption must lie within the configured bounds; the
// very first reading is exempt. Nothing is persisted on a failed check.
func (s *Service) Append(ctx context.Context, date time.Time, meterReading float64, unitPrice decimal.Decimal) (ledger.ReadingRecord, error) {
	parsed, err := s.Load(ctx)
	if err != nil {
		return ledger.ReadingRecord{}, err
	}

	meter := ledger.Round(meterReading)
	var previous int64
	last, hasRows := parsed.Last()
	if hasRows {
		previous = last.MeterReading
	}
	consumption := ledger.Consumption(meter, previous)
	if hasRows && !s.bounds.Contains(consumption) {
		return ledger.ReadingRecord{}, &ledger.OutOfRangeError{Consumption: consumption, Bounds: s.bounds}
	}

	record := ledger.ReadingRecord{
		Date:         date,
		MeterReading: meter,
		UnitPrice:    unitPrice,
		Consumption:  consumption,
		Charge:       ledger.ChargeFor(consumption, unitPrice),
	}

	// Reload the raw text rather than re-rendering the parsed form, so
	// columns or rows an external writer added between load and persist
	// survive the append.
	raw, err := s.backend.ReadText(ctx)
	if err != nil {
		return ledger.ReadingRecord{}, err
	}
	text := strings.TrimRight(raw, "\n") + "\n" + record.Line() + "\n"
	if err := s.backend.WriteText(ctx, text); err != nil {
		return ledger.ReadingRecord{}, err
	}
	return record, nil
}

// DeleteLast drops the final ledger line. The remaining content is not
// validated; restricting the operation to recent entries is a UI policy.
// A trailing newline in the stored bytes is preserved, so a delete right
// after an append restores the exact pre-append content.
func (s *Service) DeleteLast(ctx context.Context) error {
	data, err := s.backend.ReadBytes(ctx)
	if err != nil {
		return err
	}
	text := string(data)
	hadTrailingNewline := strings.HasSuffix(text, "\n")
	trimmed := strings.TrimRight(text, "\n")
	lines := strings.Split(trimmed, "\n")
	if trimmed == "" || len(lines) <= 1 {
		return ledger.ErrNothingToDelete
	}
	out := strings.Join(lines[:len(lines)-1], "\n")
	if hadTrailingNewline {
		out += "\n"
	}
	return s.backend.WriteBytes(ctx, []byte(out))
}
