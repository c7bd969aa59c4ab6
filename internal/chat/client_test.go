package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"snappdf/internal/api"
)

// chatServer is a minimal in-memory /api/chat backend for client tests.
type chatServer struct {
	mu    sync.Mutex
	next  int
	chats map[string][]Message // fileID -> transcript
}

func newChatServer() *chatServer {
	return &chatServer{chats: map[string][]Message{}}
}

func (s *chatServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"chats": s.chats[r.PathValue("id")]})
	})
	mux.HandleFunc("POST /api/chat/", func(w http.ResponseWriter, r *http.Request) {
		var qs []Question
		_ = json.NewDecoder(r.Body).Decode(&qs)
		s.mu.Lock()
		var out []Message
		for _, q := range qs {
			s.next++
			m := Message{
				ID:        fmt.Sprintf("c%d", s.next),
				Question:  q.UserQuestion,
				Answer:    "Answer about " + q.UserQuestion,
				FileTitle: q.FileTitle,
			}
			s.chats[q.FileID] = append(s.chats[q.FileID], m)
			out = append(out, m)
		}
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"data": out})
	})
	mux.HandleFunc("DELETE /api/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.mu.Lock()
		for fileID, msgs := range s.chats {
			kept := msgs[:0]
			for _, m := range msgs {
				if m.ID != id {
					kept = append(kept, m)
				}
			}
			s.chats[fileID] = kept
		}
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	apiClient, err := api.NewClient(api.Options{BaseURL: srvURL})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return NewClient(apiClient, nil)
}

func TestAskAppendsToHistory(t *testing.T) {
	backend := newChatServer()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	msg, err := client.Ask(context.Background(), Question{
		UserQuestion: "what is chapter 2 about",
		PDFText:      "chapter 2 covers routing",
		FileID:       "f1",
		FileTitle:    "manual",
	})
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if msg.ID == "" || msg.Question != "what is chapter 2 about" {
		t.Fatalf("message mismatch: %+v", msg)
	}

	history, err := client.History(context.Background(), "f1")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 1 || history[0].ID != msg.ID {
		t.Fatalf("history mismatch: %+v", history)
	}
}

func TestDeleteRemovesExactlyOneEntry(t *testing.T) {
	backend := newChatServer()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	var ids []string
	for _, q := range []string{"first", "second", "third"} {
		m, err := client.Ask(context.Background(), Question{UserQuestion: q, FileID: "f1", FileTitle: "manual"})
		if err != nil {
			t.Fatalf("Ask returned error: %v", err)
		}
		ids = append(ids, m.ID)
	}

	if err := client.Delete(context.Background(), ids[1]); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	history, err := client.History(context.Background(), "f1")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries after delete, got %d", len(history))
	}
	for _, m := range history {
		if m.ID == ids[1] {
			t.Fatalf("deleted entry %s still present", ids[1])
		}
	}
	if history[0].ID != ids[0] || history[1].ID != ids[2] {
		t.Fatalf("delete removed the wrong entries: %+v", history)
	}
}

func TestAskValidatesLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("invalid question must not reach the network")
	}))
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	if _, err := client.Ask(context.Background(), Question{UserQuestion: "  ", FileID: "f1"}); err == nil {
		t.Fatalf("expected error for blank question")
	}
	if _, err := client.Ask(context.Background(), Question{UserQuestion: "q", FileID: ""}); err == nil {
		t.Fatalf("expected error for missing file id")
	}
}

func TestWriteTranscriptFormat(t *testing.T) {
	msgs := []Message{
		{ID: "c1", Question: "what is this", Answer: "a manual", FileTitle: "manual"},
		{ID: "c2", Question: "who wrote it", Answer: "nobody knows"},
	}
	var buf bytes.Buffer
	if err := WriteTranscript(&buf, msgs); err != nil {
		t.Fatalf("WriteTranscript returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Question 1: what is this",
		"Answer: a manual",
		"Source: manual",
		"Question 2: who wrote it",
		"Source: unknown",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("transcript missing %q:\n%s", want, out)
		}
	}
}
