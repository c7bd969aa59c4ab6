package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		remoteAddr string
		want       string
	}{
		{
			name:       "single ip",
			header:     "203.0.113.1",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "multiple ips use first",
			header:     " 203.0.113.1 , 198.51.100.2 ",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "invalid forwarded falls back",
			header:     "invalid",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "empty forwarded uses remote host",
			header:     "",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "ipv6 forwarded",
			header:     "2001:db8::1",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::1",
		},
		{
			name:       "remote without port",
			header:     "invalid",
			remoteAddr: "203.0.113.1",
			want:       "203.0.113.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.header != "" {
				req.Header.Set("X-Forwarded-For", tc.header)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("clientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimitRefusesWithJSONMessage(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/user/login", nil)
		req.RemoteAddr = "203.0.113.1:555"
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", nil)
	req.RemoteAddr = "203.0.113.1:555"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
	if body := rec.Body.String(); body != `{"message":"too many requests, slow down"}` {
		t.Fatalf("unexpected body %q", body)
	}

	// A different client is not affected by the exhausted bucket.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/user/login", nil)
	req.RemoteAddr = "198.51.100.7:555"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client got status %d", rec.Code)
	}
}

func TestRateLimitPrunesExpiredBuckets(t *testing.T) {
	l := newLimiter(1, 15*time.Millisecond)
	for i := 0; i < 50; i++ {
		l.allow(fmt.Sprintf("203.0.113.%d", i))
	}
	l.mu.Lock()
	before := len(l.buckets)
	l.mu.Unlock()
	if before != 50 {
		t.Fatalf("expected 50 tracked clients, got %d", before)
	}

	// Let every window expire, then trigger the sweep with a new client.
	time.Sleep(40 * time.Millisecond)
	l.allow("198.51.100.1")

	l.mu.Lock()
	after := len(l.buckets)
	l.mu.Unlock()
	if after != 1 {
		t.Fatalf("expected stale buckets to be evicted, still tracking %d", after)
	}
}
