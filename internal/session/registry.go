package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"cv-parser/internal/shared/telemetry"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = time.Hour

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Registry keeps sessions in memory. Nothing is written to disk.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry returns an empty registry. now may be nil.
func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{sessions: make(map[string]*Session), ttl: ttl, now: now}
}

// TTL reports the idle expiry.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create starts a new empty session.
func (r *Registry) Create() *Session {
	s := newSession(uuid.NewString(), r.now())
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok && r.expired(s, now) {
		delete(r.sessions, id)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		if s != nil {
			s.Reset()
		}
		return nil, ErrSessionNotFound
	}
	s.touch(now)
	return s, nil
}

// Delete resets and forgets a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Reset()
	return nil
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops idle sessions and returns how many were removed. Sessions with
// a running batch are kept.
func (r *Registry) Sweep() int {
	now := r.now()
	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if r.expired(s, now) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range expired {
		s.Reset()
	}
	return len(expired)
}

// StartJanitor sweeps every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					telemetry.Info("session.expired", map[string]any{"count": n, "remaining": r.Len()})
				}
			}
		}
	}()
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return !s.Running() && now.Sub(s.idleSince()) > r.ttl
}
