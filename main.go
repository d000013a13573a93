package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"autostrom/internal/archive"
	"autostrom/internal/audit"
	"autostrom/internal/auth"
	"autostrom/internal/config"
	"autostrom/internal/invoice"
	ledgerapp "autostrom/internal/ledger/application"
	ledger "autostrom/internal/ledger/domain"
	"autostrom/internal/ledger/infrastructure/localfs"
	"autostrom/internal/ledger/infrastructure/webdav"
	"autostrom/internal/logging"
	"autostrom/internal/mail"
	"autostrom/internal/observability/metrics"
	"autostrom/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	metrics.Init()

	var auditLogger audit.Logger
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		auditLogger = audit.NewRepository(db)
		logger.Info("audit trail enabled")
	}

	var backend ledger.Backend
	if cfg.Ledger.RemoteEnabled() {
		backend, err = webdav.New(
			cfg.Ledger.RemoteBaseURL,
			cfg.Ledger.RemoteUsername,
			cfg.Ledger.RemotePassword,
			cfg.Ledger.RemotePath,
		)
		if err != nil {
			logger.Fatal("webdav backend", zap.Error(err))
		}
		logger.Info("ledger backend", zap.String("kind", "webdav"), zap.String("path", cfg.Ledger.RemotePath))
	} else {
		backend, err = localfs.New(cfg.Ledger.LocalPath)
		if err != nil {
			logger.Fatal("local backend", zap.Error(err))
		}
		logger.Info("ledger backend", zap.String("kind", "local"), zap.String("path", cfg.Ledger.LocalPath))
	}

	service, err := ledgerapp.NewService(backend, ledgerapp.WithBounds(ledger.Bounds{
		Min: cfg.Ledger.MinConsumption,
		Max: cfg.Ledger.MaxConsumption,
	}))
	if err != nil {
		logger.Fatal("ledger service", zap.Error(err))
	}

	renderer, err := invoice.NewRenderer(cfg.PDF.Name, cfg.PDF.Street, cfg.PDF.City, cfg.PDF.OutputDir)
	if err != nil {
		logger.Fatal("invoice renderer", zap.Error(err))
	}

	opts := []web.Option{}
	if auditLogger != nil {
		opts = append(opts, web.WithAuditLogger(auditLogger))
	}
	if cfg.SMTP.MailEnabled() {
		mailer, err := mail.New(mail.Settings{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			Recipients: cfg.SMTP.Recipients(),
			UseSSL:     cfg.SMTP.SSL,
		})
		if err != nil {
			logger.Fatal("mailer", zap.Error(err))
		}
		opts = append(opts, web.WithMailer(mailer))
		logger.Info("invoice mail enabled", zap.String("host", cfg.SMTP.Host))
	}
	if cfg.Paperless.Enabled() {
		archiver, err := archive.NewClient(cfg.Paperless.URL, cfg.Paperless.Token,
			archive.WithTags(cfg.Paperless.TagList()),
			archive.WithCorrespondent(cfg.Paperless.Correspondent),
			archive.WithDocumentType(cfg.Paperless.DocumentType),
		)
		if err != nil {
			logger.Fatal("archive client", zap.Error(err))
		}
		opts = append(opts, web.WithArchiver(archiver))
		logger.Info("document archive enabled", zap.String("url", cfg.Paperless.URL))
	}

	sessions, err := auth.NewSessions([]byte(cfg.SessionSecret))
	if err != nil {
		logger.Fatal("sessions", zap.Error(err))
	}
	authEnabled := cfg.OIDC.Enabled()
	if authEnabled {
		redirectURL := cfg.PublicBaseURL + "/auth"
		oidcClient, err := auth.NewOIDCClient(context.Background(),
			cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.Scope, redirectURL)
		if err != nil {
			logger.Fatal("oidc discovery", zap.Error(err))
		}
		opts = append(opts, web.WithOIDC(oidcClient, sessions))
		logger.Info("login enabled", zap.String("issuer", cfg.OIDC.Issuer))
	}

	handler, err := web.NewHandler(service, renderer, logger, opts...)
	if err != nil {
		logger.Fatal("web handler", zap.Error(err))
	}

	policy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/login", "/auth", "/logout"},
		[]string{"/static/"},
	)
	gate := auth.NewMiddleware(sessions, policy, authEnabled)

	mux := http.NewServeMux()
	mux.Handle("/", gate.Wrap(handler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           accessLog(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
