package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ledger "autostrom/internal/ledger/domain"
	"autostrom/internal/ledger/infrastructure/memory"
)

const seededLedger = ledger.HeaderLine + "01.01.2024\t1000\t0.300000\t0\t0.000000\n"

func newService(t *testing.T, backend ledger.Backend, opts ...Option) *Service {
	t.Helper()
	service, err := NewService(backend, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func price(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	p, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse price %q: %v", raw, err)
	}
	return p
}

func TestAppendComputesConsumptionAndCharge(t *testing.T) {
	backend := memory.NewWithContent(seededLedger)
	service := newService(t, backend)

	record, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1500, price(t, "0.32"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if record.Consumption != 500 {
		t.Fatalf("expected consumption 500, got %d", record.Consumption)
	}
	if record.Charge.StringFixed(2) != "160.00" {
		t.Fatalf("expected charge 160.00, got %s", record.Charge.StringFixed(2))
	}
	if record.DateString() != "01.02.2024" {
		t.Fatalf("expected date 01.02.2024, got %s", record.DateString())
	}

	want := seededLedger + "01.02.2024\t1500\t0.320000\t500\t160.000000\n"
	if got := backend.Content(); got != want {
		t.Fatalf("ledger content = %q, want %q", got, want)
	}
}

func TestAppendOutOfRangeLeavesLedgerUntouched(t *testing.T) {
	backend := memory.NewWithContent(seededLedger)
	service := newService(t, backend)

	_, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1005, price(t, "0.32"))
	var oor *ledger.OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if oor.Consumption != 5 {
		t.Fatalf("expected consumption 5 in error, got %d", oor.Consumption)
	}
	if got := backend.Content(); got != seededLedger {
		t.Fatalf("ledger modified on rejected append: %q", got)
	}
}

func TestAppendAboveRangeRejected(t *testing.T) {
	backend := memory.NewWithContent(seededLedger)
	service := newService(t, backend)

	_, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 4000, price(t, "0.32"))
	var oor *ledger.OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if got := backend.Content(); got != seededLedger {
		t.Fatalf("ledger modified on rejected append: %q", got)
	}
}

func TestAppendFirstRowExemptFromBounds(t *testing.T) {
	// Consumption 1000 exceeds the upper bound relative check only when a
	// previous row exists; the first reading always goes through.
	backend := memory.New()
	service := newService(t, backend)

	record, err := service.Append(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1000, price(t, "0.30"))
	if err != nil {
		t.Fatalf("append to empty ledger: %v", err)
	}
	if record.Consumption != 1000 {
		t.Fatalf("expected consumption 1000, got %d", record.Consumption)
	}
	if record.Charge.StringFixed(2) != "300.00" {
		t.Fatalf("expected charge 300.00, got %s", record.Charge.StringFixed(2))
	}
	want := ledger.HeaderLine + "01.01.2024\t1000\t0.300000\t1000\t300.000000\n"
	if got := backend.Content(); got != want {
		t.Fatalf("ledger content = %q, want %q", got, want)
	}
}

func TestAppendMeterResetClampsToZero(t *testing.T) {
	backend := memory.NewWithContent(seededLedger)
	service := newService(t, backend, WithBounds(ledger.Bounds{Min: 0, Max: 2000}))

	record, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 800, price(t, "0.32"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if record.Consumption != 0 {
		t.Fatalf("expected consumption clamped to 0, got %d", record.Consumption)
	}
	if record.Charge.StringFixed(2) != "0.00" {
		t.Fatalf("expected charge 0.00, got %s", record.Charge.StringFixed(2))
	}
}

func TestAppendCustomBounds(t *testing.T) {
	backend := memory.NewWithContent(seededLedger)
	service := newService(t, backend, WithBounds(ledger.Bounds{Min: 1, Max: 9}))

	record, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1005, price(t, "0.32"))
	if err != nil {
		t.Fatalf("append within custom bounds: %v", err)
	}
	if record.Consumption != 5 {
		t.Fatalf("expected consumption 5, got %d", record.Consumption)
	}
}

func TestAppendPreservesExternalRows(t *testing.T) {
	// Extra column and an externally appended row must survive an append.
	content := "Datum\tZaehlerstand\tStrompreis\tVerbrauch\tAbrechnung\tNotiz\n" +
		"01.01.2024\t1000\t0.300000\t0\t0.000000\tWinter\n"
	backend := memory.NewWithContent(content)
	service := newService(t, backend)

	_, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1500, price(t, "0.32"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got := backend.Content()
	if !strings.HasPrefix(got, content) {
		t.Fatalf("external content lost, ledger = %q", got)
	}
}

func TestAppendEmptyLedgerFails(t *testing.T) {
	backend := memory.NewWithContent("")
	service := newService(t, backend)

	_, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1500, price(t, "0.32"))
	if !errors.Is(err, ledger.ErrLedgerEmpty) {
		t.Fatalf("expected ErrLedgerEmpty, got %v", err)
	}
}

func TestAppendStorageErrorPropagates(t *testing.T) {
	backend := memory.NewWithContent(seededLedger)
	backend.WriteErr = errors.New("disk full")
	service := newService(t, backend)

	_, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1500, price(t, "0.32"))
	var storage *ledger.StorageError
	if !errors.As(err, &storage) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestDeleteLastRestoresPreAppendBytes(t *testing.T) {
	backend := memory.NewWithContent(seededLedger)
	service := newService(t, backend)

	before := backend.Content()
	if _, err := service.Append(context.Background(), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 1500, price(t, "0.32")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := service.DeleteLast(context.Background()); err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if got := backend.Content(); got != before {
		t.Fatalf("round trip mismatch: got %q, want %q", got, before)
	}
}

func TestDeleteLastHeaderOnlyFails(t *testing.T) {
	backend := memory.NewWithContent(ledger.HeaderLine)
	service := newService(t, backend)

	if err := service.DeleteLast(context.Background()); !errors.Is(err, ledger.ErrNothingToDelete) {
		t.Fatalf("expected ErrNothingToDelete, got %v", err)
	}
	if got := backend.Content(); got != ledger.HeaderLine {
		t.Fatalf("ledger modified on rejected delete: %q", got)
	}
}

func TestDeleteLastEmptyFails(t *testing.T) {
	backend := memory.NewWithContent("")
	service := newService(t, backend)

	if err := service.DeleteLast(context.Background()); !errors.Is(err, ledger.ErrNothingToDelete) {
		t.Fatalf("expected ErrNothingToDelete, got %v", err)
	}
}

func TestDeleteLastWithoutTrailingNewline(t *testing.T) {
	backend := memory.NewWithContent(ledger.Header + "\n01.01.2024\t1000\t0.300000\t0\t0.000000")
	service := newService(t, backend)

	if err := service.DeleteLast(context.Background()); err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if got := backend.Content(); got != ledger.Header {
		t.Fatalf("expected bare header, got %q", got)
	}
}

func TestLoadInitializesEmptyBackend(t *testing.T) {
	backend := memory.New()
	service := newService(t, backend)

	parsed, err := service.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(parsed.Records) != 0 {
		t.Fatalf("expected empty ledger, got %d records", len(parsed.Records))
	}
	if got := backend.Content(); got != ledger.HeaderLine {
		t.Fatalf("expected initialized header, got %q", got)
	}
}

func TestAppendSequence(t *testing.T) {
	backend := memory.New()
	service := newService(t, backend)

	dates := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	meters := []float64{1000, 1500, 1650}
	for i := range dates {
		if _, err := service.Append(context.Background(), dates[i], meters[i], price(t, "0.32")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	parsed, err := service.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(parsed.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(parsed.Records))
	}
	last, _ := parsed.Last()
	if last.Consumption != 150 {
		t.Fatalf("expected last consumption 150, got %d", last.Consumption)
	}
}
