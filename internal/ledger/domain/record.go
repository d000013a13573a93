package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the display and wire layout for record dates.
const DateLayout = "02.01.2006"

// ReadingRecord is one validated entry of the meter ledger.
type ReadingRecord struct {
	Date         time.Time
	MeterReading int64
	UnitPrice    decimal.Decimal
	Consumption  int64
	Charge       decimal.Decimal
}

// DateString renders the record date in the ledger's display convention.
func (r ReadingRecord) DateString() string {
	return r.Date.Format(DateLayout)
}

// Line renders the record as one tab-separated ledger row without a
// trailing newline. Prices and charges carry six stored fractional digits.
func (r ReadingRecord) Line() string {
	return fmt.Sprintf("%s\t%d\t%s\t%d\t%s",
		r.DateString(),
		r.MeterReading,
		r.UnitPrice.StringFixed(6),
		r.Consumption,
		r.Charge.StringFixed(6),
	)
}

// Round rounds half away from zero. All call sites that derive integer
// quantities from meter input use this, so the out-of-range boundary
// check behaves the same everywhere.
func Round(value float64) int64 {
	return int64(math.Round(value))
}

// Consumption derives the energy used since the previous reading,
// clamped to zero. A meter reset or misread yields 0, never a negative
// value.
func Consumption(meterReading, previousReading int64) int64 {
	if meterReading < previousReading {
		return 0
	}
	return meterReading - previousReading
}

// ChargeFor computes the billed amount for a period, rounded to two
// fractional digits (half away from zero).
func ChargeFor(consumption int64, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(consumption)).Round(2)
}
