// Package account covers the user-facing auth surface: signup, login,
// logout, session resolution, credential renewal, and profile updates.
package account

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"snappdf/internal/api"
	"snappdf/internal/infra"
	"snappdf/internal/session"
)

// Sentinel validation errors surfaced before any network call is made.
var (
	ErrMissingEmail    = errors.New("account: email is required")
	ErrMissingPassword = errors.New("account: password is required")
	ErrMissingFullname = errors.New("account: full name is required")
)

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the registration payload. Field names match the backend
// user schema.
type SignupRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// Client calls the /api/user endpoints.
type Client struct {
	api    *api.Client
	logger infra.Logger
}

// NewClient wraps the transport.
func NewClient(apiClient *api.Client, logger *infra.Logger) *Client {
	l := zerolog.New(io.Discard)
	if logger != nil {
		l = *logger
	}
	return &Client{api: apiClient, logger: l}
}

// Login authenticates and receives the credential cookies.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" {
		return ErrMissingEmail
	}
	if creds.Password == "" {
		return ErrMissingPassword
	}
	if err := c.api.Post(ctx, "/api/user/login", creds, nil); err != nil {
		return err
	}
	c.logger.Debug().Str("email", creds.Email).Msg("account: logged in")
	return nil
}

// Signup registers a new account. The caller logs in separately afterwards.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Email = strings.TrimSpace(req.Email)
	if req.Fullname == "" {
		return ErrMissingFullname
	}
	if req.Email == "" {
		return ErrMissingEmail
	}
	if req.Password == "" {
		return ErrMissingPassword
	}
	return c.api.Post(ctx, "/api/user/signup", req, nil)
}

// Logout invalidates the credential server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.api.Post(ctx, "/api/user/logout", nil, nil)
}

// FetchSession resolves the current session. It is the Cache's fetch
// function; an unauthenticated response surfaces as an error the cache
// degrades to absent.
func (c *Client) FetchSession(ctx context.Context) (*session.Session, error) {
	var s session.Session
	if err := c.api.Get(ctx, "/api/user/session", &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// RefreshToken silently renews the credential cookie.
func (c *Client) RefreshToken(ctx context.Context) error {
	return c.api.Get(ctx, "/api/user/refresh-token", nil)
}

// UpdateImage points the profile at a new uploaded image reference.
func (c *Client) UpdateImage(ctx context.Context, imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return errors.New("account: image url is required")
	}
	body := map[string]string{"image": imageURL}
	return c.api.Put(ctx, "/api/user/update-image", body, nil)
}
