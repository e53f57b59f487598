// Package session tracks which uploaded table each browser is looking at.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"hoursboard/internal/cache"
)

// CookieName is the session cookie.
const CookieName = "hb_session"

// State is what a session remembers between interactions.
type State struct {
	Fingerprint string
	Filename    string
	LoadedAt    time.Time
}

// Store keeps session state in memory with a sliding TTL.
type Store struct {
	states *cache.LRUCache[State]
	ttl    time.Duration
	secure bool
}

// NewStore creates a store holding at most maxSessions sessions.
func NewStore(maxSessions int, ttl time.Duration, secureCookies bool) *Store {
	return &Store{
		states: cache.NewLRUCache[State](maxSessions, ttl),
		ttl:    ttl,
		secure: secureCookies,
	}
}

// ID returns the session id from the request, issuing a new cookie when
// the request has none or an invalid one.
func (s *Store) ID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Get returns the state of a session and refreshes its TTL.
func (s *Store) Get(id string) (State, bool) {
	st, ok := s.states.Get(id)
	if ok {
		s.states.Set(id, st)
	}
	return st, ok
}

// Set records the table a session is looking at.
func (s *Store) Set(id string, st State) {
	s.states.Set(id, st)
}

// Clear forgets a session.
func (s *Store) Clear(id string) {
	s.states.Delete(id)
}

// Cleaner exposes the session cache to a cache.Manager.
func (s *Store) Cleaner() cache.Cleaner {
	return s.states
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.states.Size()
}
