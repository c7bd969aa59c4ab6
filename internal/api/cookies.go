package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// cookieStore persists jar cookies across CLI invocations so a login survives
// process restarts, the way a browser keeps its cookies. Only name/value
// pairs are stored; the server re-stamps attributes on the next response.
type cookieStore struct {
	path string
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func newCookieStore(path string) *cookieStore {
	return &cookieStore{path: path}
}

func (s *cookieStore) load() ([]*http.Cookie, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("api: read cookie file: %w", err)
	}
	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("api: decode cookie file: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		if sc.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	return cookies, nil
}

func (s *cookieStore) save(cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("api: encode cookie file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("api: ensure state dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("api: write cookie file: %w", err)
	}
	return nil
}
