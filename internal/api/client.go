// Package api wraps outbound calls to the SnapPdf backend with a fixed base
// address, automatic cookie credential propagation, response envelope
// decoding, and a single normalized error shape.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"snappdf/internal/infra"
)

// Error is the normalized failure shape for backend calls. Status is zero
// when the request never reached the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "api: " + e.Message
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// IsStatus reports whether err is an *Error carrying the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Options configures the backend client.
type Options struct {
	BaseURL    string
	CookiePath string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Timeout    time.Duration
}

// Client performs HTTP calls against the backend API. Credentials travel as
// cookies in the attached jar; no token is held in application memory.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	jar        *cookiejar.Jar
	store      *cookieStore
	serverURL  *url.URL
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("api: base url is required")
	}
	serverURL, err := url.Parse(baseURL)
	if err != nil || serverURL.Scheme == "" {
		return nil, fmt.Errorf("api: invalid base url: %s", opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("api: cookie jar: %w", err)
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	// The jar belongs to this client even when the transport is injected.
	clone := *httpClient
	clone.Jar = jar
	httpClient = &clone

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		jar:        jar,
		serverURL:  serverURL,
	}
	if opts.CookiePath != "" {
		c.store = newCookieStore(opts.CookiePath)
		if cookies, err := c.store.load(); err != nil {
			logger.Debug().Err(err).Msg("api: cookie restore failed")
		} else if len(cookies) > 0 {
			jar.SetCookies(serverURL, cookies)
		}
	}
	return c, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// Post issues a POST request with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	r, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", r, out)
}

// Put issues a PUT request with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	r, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, "application/json", r, out)
}

// Delete issues a DELETE request and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, out)
}

// FilePart names one file field of a multipart request.
type FilePart struct {
	Field    string
	Filename string
	Reader   io.Reader
}

// PostMultipart issues a POST request with multipart form fields and files.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []FilePart, out any) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("api: encode form field: %w", err)
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("api: encode form file: %w", err)
		}
		if _, err := io.Copy(w, f.Reader); err != nil {
			return fmt.Errorf("api: copy form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("api: finalize form: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), body, out)
}

func encodeJSON(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("api: encode request: %w", err)
	}
	return bytes.NewReader(raw), nil
}

// envelope matches the backend's `{ "data": ... }` response shape. Some
// endpoints respond with the payload at the top level instead; decoding
// falls back to the raw body when no data key is present.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Message: "no response from server"}
	}
	defer resp.Body.Close()

	if c.store != nil {
		if err := c.store.save(c.jar.Cookies(c.serverURL)); err != nil {
			c.logger.Debug().Err(err).Msg("api: cookie persist failed")
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
			msg = env.Message
		}
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("api: request failed")
		return &Error{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}
