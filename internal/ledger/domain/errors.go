package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrLedgerEmpty is returned when the loaded ledger text is empty or
	// whitespace-only.
	ErrLedgerEmpty = errors.New("ledger: empty ledger")
	// ErrLedgerFormat is returned when required columns are missing after
	// parsing.
	ErrLedgerFormat = errors.New("ledger: malformed ledger")
	// ErrNothingToDelete is returned when delete-last finds no data row.
	ErrNothingToDelete = errors.New("ledger: nothing to delete")
)

// Bounds is the inclusive sanity range for a computed consumption.
type Bounds struct {
	Min int64
	Max int64
}

// DefaultBounds matches the range the form historically enforced.
var DefaultBounds = Bounds{Min: 10, Max: 2000}

// Contains reports whether the consumption lies within the bounds.
func (b Bounds) Contains(consumption int64) bool {
	return consumption >= b.Min && consumption <= b.Max
}

// OutOfRangeError reports a consumption outside the configured bounds.
type OutOfRangeError struct {
	Consumption int64
	Bounds      Bounds
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf(
		"Der berechnete Verbrauch (%d kWh) liegt außerhalb des zulässigen Bereichs von %d bis %d kWh. Bitte Eingaben prüfen.",
		e.Consumption, e.Bounds.Min, e.Bounds.Max,
	)
}
