// Package archive uploads invoice documents to a paperless-ngx instance.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	ledger "autostrom/internal/ledger/domain"
)

const defaultTimeout = 30 * time.Second

// Client talks to the paperless-ngx document API.
type Client struct {
	baseURL       string
	token         string
	tags          []string
	correspondent string
	documentType  string
	client        *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithTags attaches tag IDs to every uploaded document.
func WithTags(tags []string) Option {
	return func(cl *Client) { cl.tags = tags }
}

// WithCorrespondent sets the correspondent ID for uploads.
func WithCorrespondent(id string) Option {
	return func(cl *Client) { cl.correspondent = id }
}

// WithDocumentType sets the document type ID for uploads.
func WithDocumentType(id string) Option {
	return func(cl *Client) { cl.documentType = id }
}

// NewClient constructs a paperless client for the given instance.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("archive: empty base url")
	}
	if token == "" {
		return nil, errors.New("archive: empty token")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UploadInvoice posts the invoice PDF for a record. Paperless consumes
// documents asynchronously, the returned message is the task reference.
func (c *Client) UploadInvoice(ctx context.Context, record ledger.ReadingRecord, pdfPath string) (string, error) {
	file, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("archive: open document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"title":   fmt.Sprintf("Autostrom %s", record.DateString()),
		"created": record.Date.Format("2006-01-02"),
	}
	if c.correspondent != "" {
		fields["correspondent"] = c.correspondent
	}
	if c.documentType != "" {
		fields["document_type"] = c.documentType
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("archive: encode field %s: %w", name, err)
		}
	}
	for _, tag := range c.tags {
		if err := writer.WriteField("tags", tag); err != nil {
			return "", fmt.Errorf("archive: encode tag: %w", err)
		}
	}

	part, err := writer.CreateFormFile("document", filepath.Base(pdfPath))
	if err != nil {
		return "", fmt.Errorf("archive: encode document: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("archive: encode document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("archive: finalize upload: %w", err)
	}

	url := c.baseURL + "/api/documents/post_document/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("archive: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("archive: upload: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("archive: upload rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return strings.Trim(strings.TrimSpace(string(payload)), `"`), nil
}
