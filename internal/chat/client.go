// Package chat is the typed client for per-document AI chat transcripts:
// asking questions, loading history, deleting entries, and exporting a
// transcript in the product's plain-text format.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"snappdf/internal/api"
	"snappdf/internal/infra"
)

// Message is one question/answer exchange in a document's transcript.
type Message struct {
	ID        string `json:"_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	FileTitle string `json:"fileTitle"`
}

// Question is the payload for asking about a document. PDFText carries the
// locally extracted document text the backend answers from.
type Question struct {
	UserQuestion string `json:"userQuestion"`
	PDFText      string `json:"pdfText"`
	FileID       string `json:"fileId"`
	FileTitle    string `json:"fileTitle"`
}

// Client calls the /api/chat endpoints.
type Client struct {
	api    *api.Client
	logger infra.Logger

	mu       sync.Mutex
	deleting map[string]struct{}
}

// NewClient wraps the transport.
func NewClient(apiClient *api.Client, logger *infra.Logger) *Client {
	l := zerolog.New(io.Discard)
	if logger != nil {
		l = *logger
	}
	return &Client{api: apiClient, logger: l, deleting: make(map[string]struct{})}
}

// History loads the stored transcript for a document.
func (c *Client) History(ctx context.Context, fileID string) ([]Message, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, errors.New("chat: file id is required")
	}
	var out struct {
		Chats []Message `json:"chats"`
	}
	if err := c.api.Get(ctx, "/api/chat/"+fileID, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// Ask submits one question and returns the stored exchange. The backend
// accepts a batch; this client always sends a single-element batch, matching
// the product flow.
func (c *Client) Ask(ctx context.Context, q Question) (*Message, error) {
	if strings.TrimSpace(q.UserQuestion) == "" {
		return nil, errors.New("chat: question is required")
	}
	if strings.TrimSpace(q.FileID) == "" {
		return nil, errors.New("chat: file id is required")
	}
	var out []Message
	if err := c.api.Post(ctx, "/api/chat/", []Question{q}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("chat: empty answer from backend")
	}
	return &out[0], nil
}

// Delete removes one transcript entry. Until the server confirms, Deleting
// reports the id as in flight.
func (c *Client) Delete(ctx context.Context, chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return errors.New("chat: chat id is required")
	}
	c.mu.Lock()
	c.deleting[chatID] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.deleting, chatID)
		c.mu.Unlock()
	}()
	return c.api.Delete(ctx, "/api/chat/"+chatID, nil)
}

// Deleting reports whether a delete for chatID is still in flight.
func (c *Client) Deleting(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deleting[chatID]
	return ok
}

// WriteTranscript renders messages in the downloadable transcript format.
func WriteTranscript(w io.Writer, msgs []Message) error {
	for i, m := range msgs {
		source := m.FileTitle
		if source == "" {
			source = "unknown"
		}
		_, err := fmt.Fprintf(w, "Question %d: %s\nAnswer: %s\nSource: %s\n\n",
			i+1, m.Question, m.Answer, source)
		if err != nil {
			return fmt.Errorf("chat: write transcript: %w", err)
		}
	}
	return nil
}
