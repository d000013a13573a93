package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column names of the wire format, in storage order.
const (
	ColumnDate         = "Datum"
	ColumnMeterReading = "Zaehlerstand"
	ColumnUnitPrice    = "Strompreis"
	ColumnConsumption  = "Verbrauch"
	ColumnCharge       = "Abrechnung"
)

// Header is the mandatory first line of every ledger.
const Header = ColumnDate + "\t" + ColumnMeterReading + "\t" + ColumnUnitPrice + "\t" + ColumnConsumption + "\t" + ColumnCharge

// HeaderLine is the header with its trailing newline, the content of a
// freshly initialized ledger.
const HeaderLine = Header + "\n"

var requiredColumns = []string{ColumnDate, ColumnMeterReading, ColumnUnitPrice, ColumnConsumption, ColumnCharge}

// Ledger is the parsed, ordered history of readings, newest last.
type Ledger struct {
	Records []ReadingRecord
}

// Last returns the newest record, if any.
func (l *Ledger) Last() (ReadingRecord, bool) {
	if len(l.Records) == 0 {
		return ReadingRecord{}, false
	}
	return l.Records[len(l.Records)-1], true
}

// Tail returns up to n of the newest records in insertion order.
func (l *Ledger) Tail(n int) []ReadingRecord {
	if n <= 0 || len(l.Records) == 0 {
		return nil
	}
	if len(l.Records) <= n {
		return l.Records
	}
	return l.Records[len(l.Records)-n:]
}

// Parse parses full ledger text. Column presence is validated here, once,
// against the header; column order is free and extra columns are
// tolerated, so an externally extended file still loads.
func Parse(text string) (*Ledger, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrLedgerEmpty
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	header := strings.Split(strings.TrimRight(lines[0], "\r"), "\t")
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v, found %v", ErrLedgerFormat, missing, header)
	}

	out := &Ledger{}
	for lineNo, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		record, err := parseRecord(fields, index)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrLedgerFormat, lineNo+2, err)
		}
		out.Records = append(out.Records, record)
	}
	return out, nil
}

func parseRecord(fields []string, index map[string]int) (ReadingRecord, error) {
	field := func(name string) (string, error) {
		i := index[name]
		if i >= len(fields) {
			return "", fmt.Errorf("column %s out of range", name)
		}
		return strings.TrimSpace(fields[i]), nil
	}

	var record ReadingRecord
	raw, err := field(ColumnDate)
	if err != nil {
		return record, err
	}
	record.Date, err = time.Parse(DateLayout, raw)
	if err != nil {
		return record, fmt.Errorf("bad date %q", raw)
	}
	if raw, err = field(ColumnMeterReading); err != nil {
		return record, err
	}
	if record.MeterReading, err = parseInteger(raw); err != nil {
		return record, fmt.Errorf("bad meter reading %q", raw)
	}
	if raw, err = field(ColumnUnitPrice); err != nil {
		return record, err
	}
	if record.UnitPrice, err = decimal.NewFromString(raw); err != nil {
		return record, fmt.Errorf("bad unit price %q", raw)
	}
	if raw, err = field(ColumnConsumption); err != nil {
		return record, err
	}
	if record.Consumption, err = parseInteger(raw); err != nil {
		return record, fmt.Errorf("bad consumption %q", raw)
	}
	if raw, err = field(ColumnCharge); err != nil {
		return record, err
	}
	if record.Charge, err = decimal.NewFromString(raw); err != nil {
		return record, fmt.Errorf("bad charge %q", raw)
	}
	return record, nil
}

// parseInteger accepts both plain integers and float-formatted values
// such as "1000.0", which older ledger rows carry.
func parseInteger(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return Round(f), nil
}
