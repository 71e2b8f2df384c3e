package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxSessions bounds the session table when no limit is configured.
const DefaultMaxSessions = 1000

// Handle is one entry of the session table.
type Handle struct {
	ID        string
	Vendor    string
	Operator  string
	Runtime   *Runtime
	CreatedAt time.Time

	lastActive atomic.Int64

	// mu is held for a whole manager turn, archive included, and by the
	// end path, so an ended session never archives another turn.
	mu    sync.Mutex
	ended bool
}

// NewHandle creates a handle marked active at createdAt.
func NewHandle(id, vendor, operator string, rt *Runtime, createdAt time.Time) *Handle {
	h := &Handle{ID: id, Vendor: vendor, Operator: operator, Runtime: rt, CreatedAt: createdAt}
	h.lastActive.Store(createdAt.UnixNano())
	return h
}

// LastActive reports when the session was last used.
func (h *Handle) LastActive() time.Time {
	return time.Unix(0, h.lastActive.Load())
}

func (h *Handle) touch(t time.Time) {
	h.lastActive.Store(t.UnixNano())
}

// Store is the table of live sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Handle
	max      int
}

// NewStore creates a table holding at most max sessions.
func NewStore(max int) *Store {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Store{
		sessions: make(map[string]*Handle),
		max:      max,
	}
}

// Full reports whether the table is at capacity.
func (s *Store) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions) >= s.max
}

// Add inserts h. It fails with ErrCapacity when the table is full.
func (s *Store) Add(h *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.max {
		return ErrCapacity
	}
	s.sessions[h.ID] = h
	return nil
}

// Get returns the handle for id and marks it active at now.
func (s *Store) Get(id string, now time.Time) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	h.touch(now)
	return h, nil
}

// Peek returns the handle for id without marking it active.
func (s *Store) Peek(id string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// Delete removes and returns the handle for id.
func (s *Store) Delete(id string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.sessions, id)
	return h, nil
}

// Sweep removes and returns every session idle for longer than idle.
func (s *Store) Sweep(now time.Time, idle time.Duration) []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*Handle
	for id, h := range s.sessions {
		if now.Sub(h.LastActive()) > idle {
			expired = append(expired, h)
			delete(s.sessions, id)
		}
	}
	return expired
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
