// Package web serves the reading form, the submit and undo actions and
// the invoice downloads.
package web

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autostrom/internal/audit"
	"autostrom/internal/auth"
	"autostrom/internal/invoice"
	ledgerapp "autostrom/internal/ledger/application"
	ledger "autostrom/internal/ledger/domain"
	"autostrom/internal/observability/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// deleteWindow limits the undo action to recent entries.
const deleteWindow = 10 * 24 * time.Hour

// historyRows is the number of prior readings shown on the form and
// printed on the invoice.
const historyRows = 24

// InvoiceMailer sends the invoice PDF after a successful append.
type InvoiceMailer interface {
	SendInvoice(ctx context.Context, record ledger.ReadingRecord, pdfPath string) error
}

// DocumentArchiver stores the invoice PDF in the document archive.
type DocumentArchiver interface {
	UploadInvoice(ctx context.Context, record ledger.ReadingRecord, pdfPath string) (string, error)
}

// Handler serves all routes of the reading ledger UI.
type Handler struct {
	service     *ledgerapp.Service
	renderer    *invoice.Renderer
	mailer      InvoiceMailer
	archiver    DocumentArchiver
	sessions    *auth.Sessions
	oidc        *auth.OIDCClient
	auditLogger audit.Logger
	logger      *zap.Logger
	tmpl        *template.Template
	now         func() time.Time
}

// Option configures optional handler collaborators.
type Option func(*Handler)

// WithMailer enables invoice mail after appends.
func WithMailer(m InvoiceMailer) Option {
	return func(h *Handler) { h.mailer = m }
}

// WithArchiver enables document archival after appends.
func WithArchiver(a DocumentArchiver) Option {
	return func(h *Handler) { h.archiver = a }
}

// WithOIDC enables the login routes.
func WithOIDC(client *auth.OIDCClient, sessions *auth.Sessions) Option {
	return func(h *Handler) {
		h.oidc = client
		h.sessions = sessions
	}
}

// WithAuditLogger records user actions.
func WithAuditLogger(l audit.Logger) Option {
	return func(h *Handler) { h.auditLogger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler constructs the UI handler.
func NewHandler(service *ledgerapp.Service, renderer *invoice.Renderer, logger *zap.Logger, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("web: nil service")
	}
	if renderer == nil {
		return nil, errors.New("web: nil renderer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	h := &Handler{
		service:  service,
		renderer: renderer,
		logger:   logger,
		tmpl:     tmpl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP dispatches the UI routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/" && r.Method == http.MethodGet:
		h.handleIndex(w, r)
	case path == "/submit" && r.Method == http.MethodPost:
		h.handleSubmit(w, r)
	case path == "/delete-last" && r.Method == http.MethodPost:
		h.handleDeleteLast(w, r)
	case strings.HasPrefix(path, "/invoice/") && r.Method == http.MethodGet:
		h.handleInvoice(w, r, strings.TrimPrefix(path, "/invoice/"))
	case strings.HasPrefix(path, "/static/") && r.Method == http.MethodGet:
		http.ServeFileFS(w, r, staticFS, strings.TrimPrefix(path, "/"))
	case path == "/export.xlsx" && r.Method == http.MethodGet:
		h.handleExportXLSX(w, r)
	case path == "/export.csv" && r.Method == http.MethodGet:
		h.handleExportCSV(w, r)
	case path == "/login" && r.Method == http.MethodGet:
		h.handleLogin(w, r)
	case path == "/auth" && r.Method == http.MethodGet:
		h.handleAuthCallback(w, r)
	case path == "/logout" && r.Method == http.MethodGet:
		h.handleLogout(w, r)
	default:
		http.NotFound(w, r)
	}
}

type indexRow struct {
	Date        string
	Meter       int64
	Price       string
	Consumption int64
	Charge      string
	InvoiceDate string
}

type indexView struct {
	Rows       []indexRow
	ShowDelete bool
	Today      string
	Meter      string
	Price      string
	Error      string
	Success    string
	UserName   string
	LoginOn    bool
	MailOn     bool
	ArchiveOn  bool
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	led, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load ledger", zap.Error(err))
		http.Error(w, "Zählerstände konnten nicht geladen werden.", http.StatusBadGateway)
		return
	}

	view := indexView{
		Today:     h.now().Format("2006-01-02"),
		Meter:     r.URL.Query().Get("meter"),
		Price:     r.URL.Query().Get("price"),
		Error:     r.URL.Query().Get("error"),
		Success:   r.URL.Query().Get("success"),
		LoginOn:   h.oidc != nil,
		MailOn:    h.mailer != nil,
		ArchiveOn: h.archiver != nil,
	}
	if user, ok := auth.UserFromContext(r.Context()); ok {
		view.UserName = user.Name
	}
	if view.Price == "" {
		if last, ok := led.Last(); ok {
			view.Price = last.UnitPrice.StringFixed(2)
		}
	}

	tail := led.Tail(historyRows)
	for i := len(tail) - 1; i >= 0; i-- {
		rec := tail[i]
		view.Rows = append(view.Rows, indexRow{
			Date:        rec.DateString(),
			Meter:       rec.MeterReading,
			Price:       rec.UnitPrice.StringFixed(2),
			Consumption: rec.Consumption,
			Charge:      rec.Charge.StringFixed(2),
			InvoiceDate: rec.Date.Format("2006-01-02"),
		})
	}
	if last, ok := led.Last(); ok {
		view.ShowDelete = h.now().Sub(last.Date) <= deleteWindow
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, "index.html", view); err != nil {
		h.logger.Error("render index", zap.Error(err))
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectError(w, r, "Formulardaten konnten nicht gelesen werden.", "", "")
		return
	}
	meterRaw := strings.TrimSpace(r.PostFormValue("zaehlerstand"))
	priceRaw := strings.TrimSpace(r.PostFormValue("strompreis"))
	dateRaw := strings.TrimSpace(r.PostFormValue("datum"))
	wantMail := r.PostFormValue("mail") != ""
	wantArchive := r.PostFormValue("archiv") != ""

	meter, err := strconv.ParseFloat(strings.ReplaceAll(meterRaw, ",", "."), 64)
	if err != nil {
		h.redirectError(w, r, "Der Zählerstand ist keine gültige Zahl.", meterRaw, priceRaw)
		return
	}
	price, err := decimal.NewFromString(strings.ReplaceAll(priceRaw, ",", "."))
	if err != nil || price.IsNegative() {
		h.redirectError(w, r, "Der Strompreis ist keine gültige Zahl.", meterRaw, priceRaw)
		return
	}
	date := h.now()
	if dateRaw != "" {
		parsed, err := time.Parse("2006-01-02", dateRaw)
		if err != nil {
			h.redirectError(w, r, "Das Datum ist ungültig.", meterRaw, priceRaw)
			return
		}
		date = parsed
	}

	led, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load ledger", zap.Error(err))
		h.redirectError(w, r, "Zählerstände konnten nicht geladen werden.", meterRaw, priceRaw)
		return
	}
	history := led.Tail(historyRows)

	record, err := h.service.Append(r.Context(), date, meter, price)
	metrics.IncReadingAppend(err)
	if err != nil {
		var rangeErr *ledger.OutOfRangeError
		if errors.As(err, &rangeErr) {
			h.redirectError(w, r, rangeErr.Error(), meterRaw, priceRaw)
			return
		}
		h.logger.Error("append reading", zap.Error(err))
		h.redirectError(w, r, "Der Eintrag konnte nicht gespeichert werden.", meterRaw, priceRaw)
		return
	}
	h.logAudit(r, audit.ActionReadingAppend, record.DateString(), map[string]any{
		"meter":       record.MeterReading,
		"consumption": record.Consumption,
		"charge":      record.Charge.StringFixed(2),
	})

	notices := h.postProcess(r, record, history, wantMail, wantArchive)
	msg := fmt.Sprintf("Eintrag vom %s gespeichert: %d kWh, %s €.",
		record.DateString(), record.Consumption, record.Charge.StringFixed(2))
	if notices != "" {
		msg += " " + notices
	}
	h.redirect(w, r, url.Values{"success": {msg}})
}

// postProcess renders the invoice, mails it and archives it. Failures
// here do not roll back the append, they are reported as notices.
func (h *Handler) postProcess(r *http.Request, record ledger.ReadingRecord, history []ledger.ReadingRecord, wantMail, wantArchive bool) string {
	start := time.Now()
	pdfPath, err := h.renderer.Render(history, record)
	metrics.ObserveInvoiceRender(err, time.Since(start))
	if err != nil {
		h.logger.Error("render invoice", zap.Error(err))
		return "Die Rechnung konnte nicht erstellt werden."
	}

	var notices []string
	if h.mailer != nil && wantMail {
		err := h.mailer.SendInvoice(r.Context(), record, pdfPath)
		metrics.IncMailDelivery(err)
		if err != nil {
			h.logger.Error("send invoice mail", zap.Error(err))
			notices = append(notices, "Der Mailversand ist fehlgeschlagen.")
		} else {
			h.logAudit(r, audit.ActionMailSend, record.DateString(), nil)
		}
	}
	if h.archiver != nil && wantArchive {
		task, err := h.archiver.UploadInvoice(r.Context(), record, pdfPath)
		metrics.IncArchiveUpload(err)
		if err != nil {
			h.logger.Error("archive invoice", zap.Error(err))
			notices = append(notices, "Die Archivierung ist fehlgeschlagen.")
		} else {
			h.logAudit(r, audit.ActionArchiveUpload, record.DateString(), map[string]any{"task": task})
		}
	}
	return strings.Join(notices, " ")
}

func (h *Handler) handleDeleteLast(w http.ResponseWriter, r *http.Request) {
	led, err := h.service.Load(r.Context())
	if err != nil {
		h.logger.Error("load ledger", zap.Error(err))
		h.redirectError(w, r, "Zählerstände konnten nicht geladen werden.", "", "")
		return
	}
	if last, ok := led.Last(); ok && h.now().Sub(last.Date) > deleteWindow {
		h.redirectError(w, r, "Der letzte Eintrag ist zu alt und kann nicht mehr gelöscht werden.", "", "")
		return
	}

	err = h.service.DeleteLast(r.Context())
	metrics.IncReadingDelete(err)
	if err != nil {
		if errors.Is(err, ledger.ErrNothingToDelete) {
			h.redirectError(w, r, "Es gibt keinen Eintrag zum Löschen.", "", "")
			return
		}
		h.logger.Error("delete last reading", zap.Error(err))
		h.redirectError(w, r, "Der Eintrag konnte nicht gelöscht werden.", "", "")
		return
	}
	h.logAudit(r, audit.ActionReadingDelete, "", nil)
	h.redirect(w, r, url.Values{"success": {"Der letzte Eintrag wurde gelöscht."}})
}

func (h *Handler) handleInvoice(w http.ResponseWriter, r *http.Request, rest string) {
	date, err := time.Parse("2006-01-02", rest)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	path := h.renderer.Path(date)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", fmt.Sprintf("Autostrom %s.pdf", date.Format(ledger.DateLayout))))
	http.ServeFile(w, r, path)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	led, err := h.service.Load(r.Context())
	if err != nil {
		http.Error(w, "Zählerstände konnten nicht geladen werden.", http.StatusBadGateway)
		return
	}
	data, err := invoice.BuildLedgerXLSX(led)
	if err != nil {
		h.logger.Error("export xlsx", zap.Error(err))
		http.Error(w, "Export fehlgeschlagen.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="Autostrom.xlsx"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	led, err := h.service.Load(r.Context())
	if err != nil {
		http.Error(w, "Zählerstände konnten nicht geladen werden.", http.StatusBadGateway)
		return
	}
	data, err := invoice.BuildLedgerCSV(led)
	if err != nil {
		h.logger.Error("export csv", zap.Error(err))
		http.Error(w, "Export fehlgeschlagen.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="Autostrom.csv"`)
	_, _ = w.Write(data)
}

const stateCookie = "autostrom_oidc_state"

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		http.NotFound(w, r)
		return
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	state := hex.EncodeToString(buf)

	next := r.URL.Query().Get("next")
	if !strings.HasPrefix(next, "/") {
		next = "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state + "|" + next,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusSeeOther)
}

func (h *Handler) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil || h.sessions == nil {
		http.NotFound(w, r)
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "login state missing", http.StatusBadRequest)
		return
	}
	state, next, _ := strings.Cut(cookie.Value, "|")
	if state == "" || r.URL.Query().Get("state") != state {
		http.Error(w, "login state mismatch", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(next, "/") {
		next = "/"
	}

	token, err := h.oidc.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("token exchange", zap.Error(err))
		http.Error(w, "login failed", http.StatusBadGateway)
		return
	}
	user, err := h.oidc.Userinfo(r.Context(), token)
	if err != nil {
		h.logger.Error("userinfo", zap.Error(err))
		http.Error(w, "login failed", http.StatusBadGateway)
		return
	}
	session, err := h.sessions.Issue(user, h.now())
	if err != nil {
		h.logger.Error("issue session", zap.Error(err))
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, h.sessions.Cookie(session))
	h.logger.Info("user logged in", zap.String("subject", user.Subject))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearCookie())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, message, meter, price string) {
	values := url.Values{"error": {message}}
	if meter != "" {
		values.Set("meter", meter)
	}
	if price != "" {
		values.Set("price", price)
	}
	h.redirect(w, r, values)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, values url.Values) {
	http.Redirect(w, r, "/?"+values.Encode(), http.StatusSeeOther)
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	actor := "anonymous"
	if user, ok := auth.UserFromContext(r.Context()); ok {
		actor = user.Subject
	}
	var payload json.RawMessage
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	entry := audit.Entry{
		ID:            audit.NewID(),
		Actor:         actor,
		Action:        action,
		ResourceID:    resourceID,
		Metadata:      payload,
		PayloadDigest: audit.DigestJSON(payload),
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		CreatedAt:     h.now().UTC(),
	}
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Warn("audit log", zap.Error(err))
	}
}
