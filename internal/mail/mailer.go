// Package mail delivers invoice notifications over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	ledger "autostrom/internal/ledger/domain"
)

// Settings carries the SMTP endpoint and the message routing.
type Settings struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
	// UseSSL selects implicit TLS instead of STARTTLS.
	UseSSL bool
}

// Mailer sends invoice mails for newly appended readings.
type Mailer struct {
	settings Settings
}

// New validates the settings and constructs a mailer.
func New(settings Settings) (*Mailer, error) {
	if settings.Host == "" {
		return nil, errors.New("mail: empty host")
	}
	if settings.From == "" {
		return nil, errors.New("mail: empty sender")
	}
	if len(settings.Recipients) == 0 {
		return nil, errors.New("mail: no recipients")
	}
	if settings.Port == 0 {
		settings.Port = 587
	}
	return &Mailer{settings: settings}, nil
}

// SendInvoice mails the invoice PDF for a record to all recipients.
func (m *Mailer) SendInvoice(ctx context.Context, record ledger.ReadingRecord, pdfPath string) error {
	msg, err := m.buildMessage(record, pdfPath)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(m.settings.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.settings.Username),
		gomail.WithPassword(m.settings.Password),
	}
	if m.settings.UseSSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}

	client, err := gomail.NewClient(m.settings.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

func (m *Mailer) buildMessage(record ledger.ReadingRecord, pdfPath string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.settings.From); err != nil {
		return nil, fmt.Errorf("mail: sender address: %w", err)
	}
	if err := msg.To(m.settings.Recipients...); err != nil {
		return nil, fmt.Errorf("mail: recipient address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Autostromabrechnung %s", record.DateString()))
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"Hallo,\n\nam %s wurden %d kWh Autostrom geladen. Die Abrechnung beträgt %s €.\nDie Rechnung ist als PDF angehängt.\n\nViele Grüße\n",
		record.DateString(), record.Consumption, record.Charge.StringFixed(2),
	))
	if pdfPath != "" {
		attachmentName := fmt.Sprintf("Autostrom %s.pdf", record.DateString())
		msg.AttachFile(pdfPath, gomail.WithFileName(attachmentName))
	}
	return msg, nil
}
