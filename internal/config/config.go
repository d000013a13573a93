// Package config loads service configuration from defaults, an optional
// YAML file and environment overrides.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LedgerConfig selects and parameterizes the ledger backend. Remote
// credentials present means the WebDAV backend is used; otherwise the
// ledger lives at LocalPath.
type LedgerConfig struct {
	RemoteBaseURL  string `yaml:"remote_base_url"`
	RemoteUsername string `yaml:"remote_username"`
	RemotePassword string `yaml:"remote_password"`
	RemotePath     string `yaml:"remote_path"`
	LocalPath      string `yaml:"local_path"`
	MinConsumption int64  `yaml:"min_consumption"`
	MaxConsumption int64  `yaml:"max_consumption"`
}

// SMTPConfig configures outgoing invoice mail.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSL      bool   `yaml:"ssl"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // comma-separated
}

// PDFConfig carries the sender block and output location for invoices.
type PDFConfig struct {
	Name      string `yaml:"name"`
	Street    string `yaml:"street"`
	City      string `yaml:"city"`
	OutputDir string `yaml:"output_dir"`
}

// PaperlessConfig configures the paperless-ngx document archive.
type PaperlessConfig struct {
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Tags          string `yaml:"tags"` // comma-separated
	Correspondent string `yaml:"correspondent"`
	DocumentType  string `yaml:"document_type"`
}

// OIDCConfig configures the external identity provider. Leaving issuer
// or client empty disables authentication entirely.
type OIDCConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

// Config is the explicit configuration struct handed to constructors at
// startup. No ambient global state.
type Config struct {
	HTTPAddr      string          `yaml:"http_addr"`
	PublicBaseURL string          `yaml:"public_base_url"`
	DatabaseURL   string          `yaml:"database_url"`
	SessionSecret string          `yaml:"session_secret"`
	Ledger        LedgerConfig    `yaml:"ledger"`
	SMTP          SMTPConfig      `yaml:"smtp"`
	PDF           PDFConfig       `yaml:"pdf"`
	Paperless     PaperlessConfig `yaml:"paperless"`
	OIDC          OIDCConfig      `yaml:"oidc"`
}

// RemoteEnabled reports whether the WebDAV backend is configured.
func (c LedgerConfig) RemoteEnabled() bool {
	return c.RemoteBaseURL != "" && c.RemoteUsername != "" && c.RemotePassword != ""
}

// MailEnabled reports whether invoice mail can be sent.
func (c SMTPConfig) MailEnabled() bool {
	return c.Host != "" && c.To != ""
}

// Recipients splits the comma-separated recipient list.
func (c SMTPConfig) Recipients() []string {
	return splitCSV(c.To)
}

// TagList splits the comma-separated tag list.
func (c PaperlessConfig) TagList() []string {
	return splitCSV(c.Tags)
}

// Enabled reports whether the archive is configured.
func (c PaperlessConfig) Enabled() bool {
	return c.URL != "" && c.Token != ""
}

// Enabled reports whether OIDC login is configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE if set, then environment overrides. A .env file in the
// working directory is honored first.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr: ":8080",
		Ledger: LedgerConfig{
			RemotePath:     "Zaehlerstaende/Autostrom.csv",
			LocalPath:      "data/Autostrom.csv",
			MinConsumption: 10,
			MaxConsumption: 2000,
		},
		SMTP: SMTPConfig{Port: 587},
		PDF:  PDFConfig{OutputDir: "data/invoices"},
		OIDC: OIDCConfig{Scope: "openid profile email"},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	cfg.OIDC.Issuer = strings.TrimRight(cfg.OIDC.Issuer, "/")
	cfg.Paperless.URL = strings.TrimRight(cfg.Paperless.URL, "/")

	if cfg.SessionSecret == "" {
		return cfg, errors.New("config: SESSION_SECRET is required to sign sessions")
	}
	if cfg.Ledger.MinConsumption > cfg.Ledger.MaxConsumption {
		return cfg, errors.New("config: consumption bounds inverted")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.PublicBaseURL = getenvDefault("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.SessionSecret = getenvDefault("SESSION_SECRET", cfg.SessionSecret)

	cfg.Ledger.RemoteBaseURL = getenvDefault("NC_BASE_URL", cfg.Ledger.RemoteBaseURL)
	cfg.Ledger.RemoteUsername = getenvDefault("NC_USERNAME", cfg.Ledger.RemoteUsername)
	cfg.Ledger.RemotePassword = getenvDefault("NC_PASSWORD", cfg.Ledger.RemotePassword)
	cfg.Ledger.RemotePath = getenvDefault("NC_FILEPATH", cfg.Ledger.RemotePath)
	cfg.Ledger.LocalPath = getenvDefault("LOCAL_TSV", cfg.Ledger.LocalPath)
	cfg.Ledger.MinConsumption = getenvInt64Default("CONSUMPTION_MIN", cfg.Ledger.MinConsumption)
	cfg.Ledger.MaxConsumption = getenvInt64Default("CONSUMPTION_MAX", cfg.Ledger.MaxConsumption)

	cfg.SMTP.Host = getenvDefault("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getenvIntDefault("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getenvDefault("SMTP_USER", cfg.SMTP.Username)
	cfg.SMTP.Password = getenvDefault("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.SSL = getenvBoolDefault("SMTP_SSL", cfg.SMTP.SSL)
	cfg.SMTP.From = getenvDefault("MAIL_FROM", cfg.SMTP.From)
	cfg.SMTP.To = getenvDefault("MAIL_TO", cfg.SMTP.To)

	cfg.PDF.Name = getenvDefault("PDF_NAME", cfg.PDF.Name)
	cfg.PDF.Street = getenvDefault("PDF_STREET", cfg.PDF.Street)
	cfg.PDF.City = getenvDefault("PDF_CITY", cfg.PDF.City)
	cfg.PDF.OutputDir = getenvDefault("INVOICE_DIR", cfg.PDF.OutputDir)

	cfg.Paperless.URL = getenvDefault("PAPERLESS_URL", cfg.Paperless.URL)
	cfg.Paperless.Token = getenvDefault("PAPERLESS_TOKEN", cfg.Paperless.Token)
	cfg.Paperless.Tags = getenvDefault("PAPERLESS_TAGS", cfg.Paperless.Tags)
	cfg.Paperless.Correspondent = getenvDefault("PAPERLESS_CORRESPONDENT", cfg.Paperless.Correspondent)
	cfg.Paperless.DocumentType = getenvDefault("PAPERLESS_DOCUMENT_TYPE", cfg.Paperless.DocumentType)

	cfg.OIDC.Issuer = getenvDefault("OIDC_ISSUER", cfg.OIDC.Issuer)
	cfg.OIDC.ClientID = getenvDefault("OIDC_CLIENT_ID", cfg.OIDC.ClientID)
	cfg.OIDC.ClientSecret = getenvDefault("OIDC_CLIENT_SECRET", cfg.OIDC.ClientSecret)
	cfg.OIDC.Scope = getenvDefault("OIDC_SCOPE", cfg.OIDC.Scope)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
