// Package invoice renders the billing PDF and the ledger exports.
package invoice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	ledger "autostrom/internal/ledger/domain"
)

// FilePrefix names the invoice files on disk.
const FilePrefix = "Autostrom"

// Renderer draws invoice PDFs into a fixed output directory.
type Renderer struct {
	name      string
	street    string
	city      string
	outputDir string
}

// NewRenderer constructs a renderer. The sender block lines may be
// empty; empty lines are skipped.
func NewRenderer(name, street, city, outputDir string) (*Renderer, error) {
	if outputDir == "" {
		return nil, errors.New("invoice: empty output dir")
	}
	return &Renderer{name: name, street: street, city: city, outputDir: outputDir}, nil
}

// Path returns the deterministic invoice location for a record date.
func (r *Renderer) Path(date time.Time) string {
	return filepath.Join(r.outputDir, fmt.Sprintf("%s-%s.pdf", FilePrefix, date.Format("2006-01-02")))
}

// Render writes the invoice for the new record, preceded by up to 24
// rows of recent history, and returns the file path.
func (r *Renderer) Render(history []ledger.ReadingRecord, record ledger.ReadingRecord) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("invoice: create output dir: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Seite %d", pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{r.name, r.street, r.city} {
		if line == "" {
			continue
		}
		pdf.CellFormat(0, 5, tr(line), "", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Autostromabrechnung %s", record.DateString())), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	colWidths := []float64{34, 34, 34, 34, 34}
	headers := []string{"Datum", "Zählerstand", "Verbrauch", "Strompreis", "Abrechnung"}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 7, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(history) > 24 {
		history = history[len(history)-24:]
	}
	for _, row := range history {
		r.tableRow(pdf, tr, colWidths, row)
	}
	pdf.SetFont("Helvetica", "B", 10)
	r.tableRow(pdf, tr, colWidths, record)
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf(
		"Am %s stelle ich %s € für Autostrom in Rechnung.",
		record.DateString(), record.Charge.StringFixed(2),
	)), "", "L", false)

	path := r.Path(record.Date)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("invoice: write pdf: %w", err)
	}
	return path, nil
}

func (r *Renderer) tableRow(pdf *gofpdf.Fpdf, tr func(string) string, widths []float64, row ledger.ReadingRecord) {
	pdf.CellFormat(widths[0], 6, tr(row.DateString()), "1", 0, "C", false, 0, "")
	pdf.CellFormat(widths[1], 6, tr(fmt.Sprintf("%d kWh", row.MeterReading)), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[2], 6, tr(fmt.Sprintf("%d kWh", row.Consumption)), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 6, tr(fmt.Sprintf("%s €", row.UnitPrice.StringFixed(2))), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 6, tr(fmt.Sprintf("%s €", row.Charge.StringFixed(2))), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
}
