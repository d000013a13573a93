package invoice

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	ledger "autostrom/internal/ledger/domain"
)

// BuildLedgerXLSX renders the full ledger as an XLSX workbook with a
// summary sheet and one row per reading.
func BuildLedgerXLSX(led *ledger.Ledger) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	readingsSheet := "readings"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(readingsSheet)

	var totalConsumption int64
	totalCharge := decimal.Zero
	for _, rec := range led.Records {
		totalConsumption += rec.Consumption
		totalCharge = totalCharge.Add(rec.Charge)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Autostrom")
	_ = f.SetCellValue(summarySheet, "A3", "Einträge")
	_ = f.SetCellValue(summarySheet, "B3", len(led.Records))
	_ = f.SetCellValue(summarySheet, "A4", "Verbrauch gesamt (kWh)")
	_ = f.SetCellValue(summarySheet, "B4", totalConsumption)
	_ = f.SetCellValue(summarySheet, "A5", "Abrechnung gesamt (€)")
	_ = f.SetCellValue(summarySheet, "B5", totalCharge.StringFixed(2))
	if last, ok := led.Last(); ok {
		_ = f.SetCellValue(summarySheet, "A6", "Letzter Eintrag")
		_ = f.SetCellValue(summarySheet, "B6", last.DateString())
	}

	_ = f.SetCellValue(readingsSheet, "A1", ledger.ColumnDate)
	_ = f.SetCellValue(readingsSheet, "B1", ledger.ColumnMeterReading)
	_ = f.SetCellValue(readingsSheet, "C1", ledger.ColumnUnitPrice)
	_ = f.SetCellValue(readingsSheet, "D1", ledger.ColumnConsumption)
	_ = f.SetCellValue(readingsSheet, "E1", ledger.ColumnCharge)
	for i, rec := range led.Records {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), rec.DateString())
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), rec.MeterReading)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", row), rec.UnitPrice.InexactFloat64())
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", row), rec.Consumption)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("E%d", row), rec.Charge.InexactFloat64())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLedgerCSV renders the ledger as comma-separated values.
func BuildLedgerCSV(led *ledger.Ledger) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		ledger.ColumnDate,
		ledger.ColumnMeterReading,
		ledger.ColumnUnitPrice,
		ledger.ColumnConsumption,
		ledger.ColumnCharge,
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, rec := range led.Records {
		row := []string{
			rec.DateString(),
			fmt.Sprintf("%d", rec.MeterReading),
			rec.UnitPrice.StringFixed(6),
			fmt.Sprintf("%d", rec.Consumption),
			rec.Charge.StringFixed(6),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
