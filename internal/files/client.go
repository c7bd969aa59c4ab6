// Package files is the typed client for the PDF storage endpoints: upload,
// listing, and deletion. Uploads are gated client-side on the viewer's
// remaining credit balance and invalidate the shared session on success.
package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"snappdf/internal/api"
	"snappdf/internal/infra"
	"snappdf/internal/session"
)

// MaxUploadBytes is the client-side PDF size ceiling.
const MaxUploadBytes = 2 << 20

// Sentinel errors surfaced before any network call is made.
var (
	ErrNoCredits    = errors.New("files: no credits left")
	ErrFileTooLarge = errors.New("files: pdf must be 2MB or smaller")
	ErrMissingTitle = errors.New("files: title is required")
	ErrEmptyFile    = errors.New("files: pdf data is required")
)

// File mirrors the backend storage resource.
type File struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client calls the /api/storage endpoints.
type Client struct {
	api      *api.Client
	sessions *session.Cache
	renew    session.RenewFunc
	logger   infra.Logger

	mu       sync.Mutex
	deleting map[string]struct{}
}

// Options configures the files client.
type Options struct {
	API      *api.Client
	Sessions *session.Cache
	Renew    session.RenewFunc
	Logger   *infra.Logger
}

// NewClient wraps the transport.
func NewClient(opts Options) *Client {
	l := zerolog.New(io.Discard)
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Client{
		api:      opts.API,
		sessions: opts.Sessions,
		renew:    opts.Renew,
		logger:   l,
		deleting: make(map[string]struct{}),
	}
}

// List fetches the viewer's uploaded PDFs.
func (c *Client) List(ctx context.Context) ([]File, error) {
	var out []File
	if err := c.api.Get(ctx, "/api/storage/all", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upload sends a PDF to storage. The credit gate runs before the network: a
// viewer whose consumed counter has reached the balance is refused locally
// with ErrNoCredits and no request is made. On success the credential is
// renewed and the shared session invalidated so the spent credit is visible
// immediately.
func (c *Client) Upload(ctx context.Context, title, filename string, data []byte) (*File, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrMissingTitle
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if c.sessions != nil {
		s, err := c.sessions.Get(ctx)
		if err != nil {
			return nil, err
		}
		if s != nil && !s.IsAdmin() && s.CreditsLeft() == 0 {
			return nil, ErrNoCredits
		}
	}

	var out File
	err := c.api.PostMultipart(ctx, "/api/storage/create",
		map[string]string{"title": title},
		[]api.FilePart{{Field: "path", Filename: filename, Reader: bytes.NewReader(data)}},
		&out,
	)
	if err != nil {
		return nil, err
	}

	if c.renew != nil {
		if err := c.renew(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("files: credential renewal after upload failed")
		}
	}
	if c.sessions != nil {
		c.sessions.Invalidate()
	}
	return &out, nil
}

// Delete removes one file. Until the server confirms, Deleting reports the
// id as in flight so callers can disable the entry rather than hide it.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("files: id is required")
	}
	c.mu.Lock()
	c.deleting[id] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.deleting, id)
		c.mu.Unlock()
	}()
	return c.api.Delete(ctx, "/api/storage/"+id, nil)
}

// Deleting reports whether a destructive action for id is still in flight.
func (c *Client) Deleting(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deleting[id]
	return ok
}

// UploadLogo sends a profile image and returns its public URL.
func (c *Client) UploadLogo(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("files: image data is required")
	}
	var out struct {
		URL string `json:"url"`
	}
	err := c.api.PostMultipart(ctx, "/api/storage/upload-logo",
		nil,
		[]api.FilePart{{Field: "image", Filename: filename, Reader: bytes.NewReader(data)}},
		&out,
	)
	if err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("files: upload returned no url")
	}
	return out.URL, nil
}
