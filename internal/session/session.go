// Package session owns the shared viewer-session state: a deduplicated
// read-through cache over the session endpoint, a background credential
// refresh loop, and the capability gate decisions derived from both.
package session

import "errors"

// Role enumerates the authorization roles the backend assigns.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Session is the authenticated viewer's identity and entitlement state as
// resolved from the backend. There is exactly one shared cached instance per
// process; consumers observe it through the Cache and never mutate it.
type Session struct {
	ID          string `json:"_id"`
	Fullname    string `json:"fullname"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	Credit      int    `json:"credit"`
	UsedCredits int    `json:"usedCredits"`
	Image       string `json:"image,omitempty"`
}

// ErrInvalidSession indicates a session payload violating its invariants.
var ErrInvalidSession = errors.New("session: invalid session payload")

// Validate checks the session invariants: role is one of the enumerated
// values and the consumed-credit counter never exceeds the balance.
func (s *Session) Validate() error {
	if s == nil {
		return ErrInvalidSession
	}
	if s.Role != RoleUser && s.Role != RoleAdmin {
		return ErrInvalidSession
	}
	if s.Credit < 0 || s.UsedCredits < 0 || s.UsedCredits > s.Credit {
		return ErrInvalidSession
	}
	return nil
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// CreditsLeft returns the remaining credit balance.
func (s *Session) CreditsLeft() int {
	if s == nil {
		return 0
	}
	if left := s.Credit - s.UsedCredits; left > 0 {
		return left
	}
	return 0
}
