package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names mirror the hosted backend so the same client works against
// both.
const (
	accessCookie  = "token"
	refreshCookie = "refreshToken"
)

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

type claims struct {
	Kind tokenKind `json:"kind"`
	jwt.RegisteredClaims
}

func (a *App) signToken(userID string, kind tokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "snappdf-devserver",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("devserver: sign token: %w", err)
	}
	return signed, nil
}

func (a *App) parseToken(raw string, kind tokenKind) (string, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("devserver: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	if !tok.Valid || c.Kind != kind || c.Subject == "" {
		return "", errors.New("devserver: invalid token")
	}
	return c.Subject, nil
}

// issueCookies sets a fresh access/refresh cookie pair for the user.
func (a *App) issueCookies(w http.ResponseWriter, userID string) error {
	access, err := a.signToken(userID, kindAccess, a.cfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	refresh, err := a.signToken(userID, kindRefresh, a.cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, authCookie(accessCookie, access, a.cfg.AccessTokenTTL))
	http.SetCookie(w, authCookie(refreshCookie, refresh, a.cfg.RefreshTokenTTL))
	return nil
}

// clearCookies expires both credential cookies.
func (a *App) clearCookies(w http.ResponseWriter) {
	http.SetCookie(w, authCookie(accessCookie, "", -time.Hour))
	http.SetCookie(w, authCookie(refreshCookie, "", -time.Hour))
}

func authCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// currentUser resolves the access cookie to a user record, or nil when the
// request is unauthenticated.
func (a *App) currentUser(r *http.Request) *User {
	c, err := r.Cookie(accessCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	userID, err := a.parseToken(c.Value, kindAccess)
	if err != nil {
		return nil
	}
	u, err := a.store.UserByID(userID)
	if err != nil {
		return nil
	}
	return u
}

// requireAuth wraps a handler with the access-cookie check.
func (a *App) requireAuth(next func(http.ResponseWriter, *http.Request, *User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := a.currentUser(r)
		if u == nil {
			a.error(w, http.StatusUnauthorized, "please login to continue")
			return
		}
		next(w, r, u)
	}
}

// requireAdmin additionally checks the admin role. Non-admins get 403, not
// 401; the two must stay distinguishable for the client's route guards.
func (a *App) requireAdmin(next func(http.ResponseWriter, *http.Request, *User)) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request, u *User) {
		if u.Role != "admin" {
			a.error(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r, u)
	})
}
