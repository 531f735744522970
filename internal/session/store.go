package session

import (
	"sync"
	"time"
)

// Store keeps sessions in memory. Sessions idle longer than the TTL are
// dropped on the next access.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store. A non-positive ttl keeps sessions forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session for id, creating a fresh one when id is unknown or
// expired. The second return value reports whether a new session was created.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.sweepLocked(now)

	if s, ok := st.sessions[id]; ok && id != "" {
		s.Touch(now)
		return s, false
	}

	s := New()
	s.Touch(now)
	st.sessions[s.ID] = s
	return s, true
}

// Delete ends a session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *Store) sweepLocked(now time.Time) {
	if st.ttl <= 0 {
		return
	}
	for id, s := range st.sessions {
		if now.Sub(s.LastSeen()) > st.ttl {
			delete(st.sessions, id)
		}
	}
}
