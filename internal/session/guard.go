package session

import "context"

// Capability is what a protected operation requires of the viewer.
type Capability int

const (
	// CapabilityPublic operations are open to everyone.
	CapabilityPublic Capability = iota
	// CapabilityAuthenticated operations require any logged-in session.
	CapabilityAuthenticated
	// CapabilityAdmin operations additionally require the admin role.
	CapabilityAdmin
)

// Decision is the closed set of guard outcomes. Loading occurs only while
// the underlying session read is unresolved; every guarded navigation leaves
// Loading exactly once, into one of the terminal variants.
type Decision int

const (
	// Loading: session read pending. Render nothing, neither protected
	// content nor a redirect.
	Loading Decision = iota
	// Authorized: render the protected content.
	Authorized
	// Unauthenticated: no session; redirect to the login entry point.
	Unauthenticated
	// Forbidden: session present but the role is insufficient; redirect to
	// the forbidden view, never the login view.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Authorized:
		return "authorized"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decide is the pure guard function over (session state, session value,
// required capability). "Not logged in" and "logged in but insufficient
// privilege" map to distinct variants and are never conflated.
func Decide(state State, s *Session, cap Capability) Decision {
	if cap == CapabilityPublic {
		return Authorized
	}
	if state == StatePending {
		return Loading
	}
	if state == StateAbsent || s == nil {
		return Unauthenticated
	}
	if cap == CapabilityAdmin && !s.IsAdmin() {
		return Forbidden
	}
	return Authorized
}

// Gate binds guard decisions to the shared session cache.
type Gate struct {
	cache *Cache
}

// NewGate wraps the cache.
func NewGate(cache *Cache) *Gate {
	return &Gate{cache: cache}
}

// Check decides from the cache's current knowledge without blocking. While a
// read is pending it returns Loading.
func (g *Gate) Check(cap Capability) Decision {
	s, state := g.cache.Peek()
	return Decide(state, s, cap)
}

// Resolve drives the blocking path: it waits for the session read to settle
// and never returns Loading. The session is returned alongside so callers
// authorized by it do not re-read the cache.
func (g *Gate) Resolve(ctx context.Context, cap Capability) (Decision, *Session, error) {
	if cap == CapabilityPublic {
		s, _ := g.cache.Peek()
		return Authorized, s, nil
	}
	s, err := g.cache.Get(ctx)
	if err != nil {
		return Loading, nil, err
	}
	if s == nil {
		return Unauthenticated, nil, nil
	}
	if cap == CapabilityAdmin && !s.IsAdmin() {
		return Forbidden, s, nil
	}
	return Authorized, s, nil
}
