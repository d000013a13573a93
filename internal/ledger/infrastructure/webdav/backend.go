// Package webdav stores the ledger on a WebDAV file host such as
// Nextcloud, addressed by one configured URL.
package webdav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ledger "autostrom/internal/ledger/domain"
)

const defaultTimeout = 15 * time.Second

// Backend reads and writes the ledger via HTTP GET/PUT with basic auth.
// A 404 on read initializes the remote resource with the header line.
type Backend struct {
	url      string
	username string
	password string
	client   *http.Client
}

// Option configures the backend.
type Option func(*Backend)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) {
		if client != nil {
			b.client = client
		}
	}
}

// New constructs a WebDAV backend for the file at baseURL/path.
func New(baseURL, username, password, path string, opts ...Option) (*Backend, error) {
	if baseURL == "" {
		return nil, errors.New("webdav: empty base url")
	}
	if path == "" {
		return nil, errors.New("webdav: empty file path")
	}
	backend := &Backend{
		url:      strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(backend)
	}
	return backend, nil
}

// ReadText returns the full ledger contents.
func (b *Backend) ReadText(ctx context.Context) (string, error) {
	data, err := b.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText overwrites the remote resource.
func (b *Backend) WriteText(ctx context.Context, text string) error {
	return b.WriteBytes(ctx, []byte(text))
}

// ReadBytes returns the raw ledger contents, initializing an absent
// remote resource with the header line.
func (b *Backend) ReadBytes(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, &ledger.StorageError{Backend: "webdav", Op: "read", Err: err}
	}
	req.SetBasicAuth(b.username, b.password)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &ledger.StorageError{Backend: "webdav", Op: "read", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		if err := b.WriteBytes(ctx, []byte(ledger.HeaderLine)); err != nil {
			return nil, err
		}
		return []byte(ledger.HeaderLine), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ledger.StorageError{Backend: "webdav", Op: "read", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ledger.StorageError{Backend: "webdav", Op: "read", Err: err}
	}
	return data, nil
}

// WriteBytes overwrites the remote resource with raw bytes via PUT.
func (b *Backend) WriteBytes(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.url, bytes.NewReader(data))
	if err != nil {
		return &ledger.StorageError{Backend: "webdav", Op: "write", Err: err}
	}
	req.SetBasicAuth(b.username, b.password)
	resp, err := b.client.Do(req)
	if err != nil {
		return &ledger.StorageError{Backend: "webdav", Op: "write", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ledger.StorageError{Backend: "webdav", Op: "write", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}
