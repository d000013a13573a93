// Package localfs stores the ledger in a single file on local disk.
package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	ledger "autostrom/internal/ledger/domain"
)

// Backend reads and writes the ledger file at a fixed path. A missing
// file is initialized with only the header line on first read.
type Backend struct {
	path string
}

// New constructs a local backend.
func New(path string) (*Backend, error) {
	if path == "" {
		return nil, errors.New("localfs: empty path")
	}
	return &Backend{path: path}, nil
}

// ReadText returns the full ledger contents.
func (b *Backend) ReadText(ctx context.Context) (string, error) {
	data, err := b.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText overwrites the ledger file.
func (b *Backend) WriteText(ctx context.Context, text string) error {
	return b.WriteBytes(ctx, []byte(text))
}

// ReadBytes returns the raw ledger contents, initializing an absent file.
func (b *Backend) ReadBytes(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, &ledger.StorageError{Backend: "localfs", Op: "read", Err: err}
	}
	if err := b.initialize(); err != nil {
		return nil, err
	}
	return []byte(ledger.HeaderLine), nil
}

// WriteBytes overwrites the ledger file with raw bytes.
func (b *Backend) WriteBytes(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return &ledger.StorageError{Backend: "localfs", Op: "write", Err: err}
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return &ledger.StorageError{Backend: "localfs", Op: "write", Err: err}
	}
	return nil
}

func (b *Backend) initialize() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return &ledger.StorageError{Backend: "localfs", Op: "init", Err: err}
	}
	if err := os.WriteFile(b.path, []byte(ledger.HeaderLine), 0o644); err != nil {
		return &ledger.StorageError{Backend: "localfs", Op: "init", Err: err}
	}
	return nil
}
