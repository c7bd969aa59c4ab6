package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"snappdf/internal/account"
	"snappdf/internal/api"
	"snappdf/internal/chat"
	"snappdf/internal/devserver"
	"snappdf/internal/files"
	"snappdf/internal/infra"
	"snappdf/internal/plans"
	"snappdf/internal/session"
)

// cliTestEnv runs a command app against an embedded devserver. The renews
// counter tracks hits on the credential renewal endpoint.
type cliTestEnv struct {
	app    *app
	renews *atomic.Int32
}

func newTestApp(t *testing.T) *cliTestEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &infra.Config{
		AppEnv:          "test",
		JWTSecret:       "test-secret",
		CheckoutSecret:  "test-checkout",
		StoragePath:     filepath.Join(dir, "assets"),
		StorageBaseURL:  "http://assets.test/static",
		SessionTTL:      time.Minute,
		RefreshInterval: time.Minute,
		HTTPTimeout:     10 * time.Second,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		MaxUploadBytes:  2 << 20,
		RateLimitPerMin: 1000,
	}
	logger := zerolog.New(io.Discard)

	backend, err := devserver.NewApp(cfg, logger)
	if err != nil {
		t.Fatalf("devserver.NewApp returned error: %v", err)
	}
	router := devserver.NewRouter(backend)
	var renews atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/user/refresh-token" {
			renews.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	apiClient, err := api.NewClient(api.Options{
		BaseURL:    srv.URL,
		CookiePath: filepath.Join(dir, "cookies.json"),
	})
	if err != nil {
		t.Fatalf("api.NewClient returned error: %v", err)
	}
	acct := account.NewClient(apiClient, nil)
	sessions := session.NewCache(session.CacheOptions{Fetch: acct.FetchSession, TTL: cfg.SessionTTL})

	a := &app{
		cfg:     cfg,
		logger:  logger,
		account: acct,
		plans: plans.NewClient(plans.Options{
			API:      apiClient,
			Sessions: sessions,
			Renew:    acct.RefreshToken,
		}),
		files: files.NewClient(files.Options{
			API:      apiClient,
			Sessions: sessions,
			Renew:    acct.RefreshToken,
		}),
		chat:     chat.NewClient(apiClient, nil),
		sessions: sessions,
		gate:     session.NewGate(sessions),
	}
	return &cliTestEnv{app: a, renews: &renews}
}

func (env *cliTestEnv) loginAdmin(t *testing.T) {
	t.Helper()
	err := env.app.account.Login(context.Background(), account.Credentials{
		Email:    "admin@snappdf.test",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	env.app.sessions.Invalidate()
}
