package files

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"snappdf/internal/api"
	"snappdf/internal/session"
)

func newCacheWith(s *session.Session) *session.Cache {
	return session.NewCache(session.CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*session.Session, error) {
			return s, nil
		},
	})
}

func TestUploadBlockedWithoutCreditsMakesNoNetworkCall(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	apiClient, err := api.NewClient(api.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	exhausted := &session.Session{ID: "u1", Role: session.RoleUser, Credit: 5, UsedCredits: 5}
	client := NewClient(Options{API: apiClient, Sessions: newCacheWith(exhausted)})

	_, err = client.Upload(context.Background(), "notes", "notes.pdf", []byte("%PDF-1.4"))
	if !errors.Is(err, ErrNoCredits) {
		t.Fatalf("expected ErrNoCredits, got %v", err)
	}
	if got := requests.Load(); got != 0 {
		t.Fatalf("expected zero network calls to the upload endpoint, got %d", got)
	}
}

func TestUploadRejectsOversizedFileLocally(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	apiClient, _ := api.NewClient(api.Options{BaseURL: srv.URL})
	viewer := &session.Session{ID: "u1", Role: session.RoleUser, Credit: 5}
	client := NewClient(Options{API: apiClient, Sessions: newCacheWith(viewer)})

	_, err := client.Upload(context.Background(), "big", "big.pdf", make([]byte, MaxUploadBytes+1))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if requests.Load() != 0 {
		t.Fatalf("oversized upload must not reach the network")
	}
}

func TestUploadRenewsCredentialAndInvalidatesSession(t *testing.T) {
	var renewed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("title"); got != "notes" {
			t.Errorf("title = %q, want notes", got)
		}
		if _, _, err := r.FormFile("path"); err != nil {
			t.Errorf("missing pdf form file: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"_id": "f1", "title": "notes", "path": "/static/f1.pdf"},
		})
	}))
	defer srv.Close()

	apiClient, _ := api.NewClient(api.Options{BaseURL: srv.URL})
	viewer := &session.Session{ID: "u1", Role: session.RoleUser, Credit: 5, UsedCredits: 1}
	cache := newCacheWith(viewer)
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	client := NewClient(Options{
		API:      apiClient,
		Sessions: cache,
		Renew: func(ctx context.Context) error {
			renewed.Add(1)
			return nil
		},
	})

	f, err := client.Upload(context.Background(), "notes", "notes.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if f.ID != "f1" {
		t.Fatalf("uploaded file = %+v", f)
	}
	if renewed.Load() != 1 {
		t.Fatalf("expected credential renewal after upload")
	}
	if _, st := cache.Peek(); st != session.StatePending {
		t.Fatalf("session cache not invalidated after upload: %v", st)
	}
}

func TestDeleteTracksInFlightState(t *testing.T) {
	inHandler := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(inHandler)
		<-release
	}))
	defer srv.Close()

	apiClient, _ := api.NewClient(api.Options{BaseURL: srv.URL})
	client := NewClient(Options{API: apiClient})

	done := make(chan error, 1)
	go func() { done <- client.Delete(context.Background(), "f1") }()
	<-inHandler

	if !client.Deleting("f1") {
		t.Fatalf("expected f1 to be marked as deleting while in flight")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if client.Deleting("f1") {
		t.Fatalf("f1 still marked deleting after confirmation")
	}
}

func TestListDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"_id":"f1","title":"notes","path":"/static/f1.pdf"}]}`))
	}))
	defer srv.Close()

	apiClient, _ := api.NewClient(api.Options{BaseURL: srv.URL})
	client := NewClient(Options{API: apiClient})

	list, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "f1" {
		t.Fatalf("list mismatch: %+v", list)
	}
}
