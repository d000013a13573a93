package webdav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	ledger "autostrom/internal/ledger/domain"
)

// fileServer emulates a WebDAV host with one file slot.
type fileServer struct {
	mu      sync.Mutex
	content []byte
	exists  bool

	user     string
	password string
}

func (s *fileServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || user != s.user || password != s.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			if !s.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(s.content)
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			s.content = body
			s.exists = true
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func TestReadInitializesMissingRemoteFile(t *testing.T) {
	fs := &fileServer{user: "nc", password: "secret"}
	server := httptest.NewServer(fs.handler())
	defer server.Close()

	backend, err := New(server.URL, "nc", "secret", "Zaehlerstaende/Autostrom.csv")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	text, err := backend.ReadText(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != ledger.HeaderLine {
		t.Fatalf("expected header line, got %q", text)
	}
	if string(fs.content) != ledger.HeaderLine {
		t.Fatalf("expected remote file initialized, got %q", string(fs.content))
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fs := &fileServer{user: "nc", password: "secret"}
	server := httptest.NewServer(fs.handler())
	defer server.Close()

	backend, err := New(server.URL, "nc", "secret", "Autostrom.csv")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	content := ledger.HeaderLine + "01.01.2024\t1000\t0.300000\t0\t0.000000\n"
	if err := backend.WriteText(context.Background(), content); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := backend.ReadText(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != content {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestBadCredentialsSurfaceAsStorageError(t *testing.T) {
	fs := &fileServer{user: "nc", password: "secret"}
	server := httptest.NewServer(fs.handler())
	defer server.Close()

	backend, err := New(server.URL, "nc", "wrong", "Autostrom.csv")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	_, err = backend.ReadText(context.Background())
	var storage *ledger.StorageError
	if !errors.As(err, &storage) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	if err := backend.WriteText(context.Background(), "x"); !errors.As(err, &storage) {
		t.Fatalf("expected StorageError on write, got %v", err)
	}
}

func TestUnreachableHostSurfacesAsStorageError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	backend, err := New(url, "nc", "secret", "Autostrom.csv")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	_, err = backend.ReadText(context.Background())
	var storage *ledger.StorageError
	if !errors.As(err, &storage) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", "u", "p", "file"); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := New("http://host", "u", "p", ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestURLJoining(t *testing.T) {
	backend, err := New("http://host/remote.php/dav/files/nc/", "u", "p", "/Zaehlerstaende/Autostrom.csv")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	want := "http://host/remote.php/dav/files/nc/Zaehlerstaende/Autostrom.csv"
	if backend.url != want {
		t.Fatalf("url = %q, want %q", backend.url, want)
	}
}
