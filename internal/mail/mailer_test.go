package mail

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ledger "autostrom/internal/ledger/domain"
)

func testRecord(t *testing.T) ledger.ReadingRecord {
	t.Helper()
	date, err := time.Parse(ledger.DateLayout, "01.02.2024")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return ledger.ReadingRecord{
		Date:         date,
		MeterReading: 1500,
		UnitPrice:    decimal.RequireFromString("0.32"),
		Consumption:  500,
		Charge:       decimal.RequireFromString("160.00"),
	}
}

func TestNewValidatesSettings(t *testing.T) {
	cases := []struct {
		name     string
		settings Settings
	}{
		{"missing host", Settings{From: "a@example.com", Recipients: []string{"b@example.com"}}},
		{"missing sender", Settings{Host: "smtp.example.com", Recipients: []string{"b@example.com"}}},
		{"no recipients", Settings{Host: "smtp.example.com", From: "a@example.com"}},
	}
	for _, tc := range cases {
		if _, err := New(tc.settings); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestBuildMessageComposition(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "Autostrom-2024-02-01.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	m, err := New(Settings{
		Host:       "smtp.example.com",
		From:       "sender@example.com",
		Recipients: []string{"one@example.com", "two@example.com"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg, err := m.buildMessage(testRecord(t), pdfPath)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{
		"sender@example.com",
		"one@example.com",
		"two@example.com",
		"Autostromabrechnung 01.02.2024",
		"Autostrom 01.02.2024.pdf",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q", want)
		}
	}
}

func TestBuildMessageRejectsBadSender(t *testing.T) {
	m, err := New(Settings{
		Host:       "smtp.example.com",
		From:       "not-an-address",
		Recipients: []string{"one@example.com"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.buildMessage(testRecord(t), ""); err == nil {
		t.Fatal("expected error for malformed sender")
	}
}
