package ledger

import "context"

// Backend is the durable text storage behind the ledger. Implementations
// hit their medium synchronously on every call: no caching, no locking,
// no versioning. Concurrent writers race with last-write-wins semantics.
type Backend interface {
	// ReadText returns the full ledger contents, initializing an absent
	// resource with only the header line first.
	ReadText(ctx context.Context) (string, error)
	// WriteText overwrites the resource entirely.
	WriteText(ctx context.Context, text string) error
	// ReadBytes and WriteBytes are byte-exact variants used by the undo
	// path.
	ReadBytes(ctx context.Context) ([]byte, error)
	WriteBytes(ctx context.Context, data []byte) error
}

// StorageError wraps an I/O or network failure against a backend.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return "ledger store: " + e.Backend + " " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
