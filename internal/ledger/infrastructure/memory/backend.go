// Package memory holds the ledger in process memory, for tests.
package memory

import (
	"context"
	"sync"

	ledger "autostrom/internal/ledger/domain"
)

// Backend keeps ledger bytes in memory. An empty backend initializes
// itself with the header line on first read, like the real backends.
type Backend struct {
	mu     sync.Mutex
	data   []byte
	loaded bool

	ReadErr  error
	WriteErr error
}

// New constructs an empty in-memory backend.
func New() *Backend { return &Backend{} }

// NewWithContent constructs a backend pre-seeded with ledger text.
func NewWithContent(text string) *Backend {
	return &Backend{data: []byte(text), loaded: true}
}

func (b *Backend) ReadText(ctx context.Context) (string, error) {
	data, err := b.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b *Backend) WriteText(ctx context.Context, text string) error {
	return b.WriteBytes(ctx, []byte(text))
}

func (b *Backend) ReadBytes(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ReadErr != nil {
		return nil, &ledger.StorageError{Backend: "memory", Op: "read", Err: b.ReadErr}
	}
	if !b.loaded {
		b.data = []byte(ledger.HeaderLine)
		b.loaded = true
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (b *Backend) WriteBytes(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.WriteErr != nil {
		return &ledger.StorageError{Backend: "memory", Op: "write", Err: b.WriteErr}
	}
	b.data = make([]byte, len(data))
	copy(b.data, data)
	b.loaded = true
	return nil
}

// Content returns the current ledger bytes as a string.
func (b *Backend) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
