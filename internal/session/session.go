package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"cv-parser/internal/batch"
	"cv-parser/internal/results"
	"cv-parser/internal/resume"
)

// ErrBusy is returned when a batch is already running in the session.
var ErrBusy = errors.New("a batch is already running in this session")

// Progress is the completed/total counter of the current or last batch.
type Progress struct {
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
	Running   bool `json:"running"`
}

// Session holds one user's ResultSet and transient credential. Only one batch
// runs at a time; reads are allowed while it runs.
type Session struct {
	ID        string
	CreatedAt time.Time

	results *results.Aggregator
	run     sync.Mutex

	mu         sync.Mutex
	credential string
	lastUsed   time.Time
	progress   Progress
	generation uint64
	cancel     context.CancelFunc
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, lastUsed: now, results: results.NewAggregator()}
}

// SetCredential replaces the in-memory credential. It is never persisted.
func (s *Session) SetCredential(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = key
}

// HasCredential reports whether a credential is held.
func (s *Session) HasCredential() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != ""
}

// Results exposes the session's ResultSet for reads.
func (s *Session) Results() *results.Aggregator {
	return s.results
}

// Progress returns the current batch counter.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Running reports whether a batch is in flight.
func (s *Session) Running() bool {
	return s.Progress().Running
}

// Run processes items with the session credential and appends each record to
// the ResultSet as it completes. Reset during a run stops it between items,
// and records finished after the reset are discarded.
func (s *Session) Run(ctx context.Context, p *batch.Processor, items []batch.Item) ([]resume.Record, error) {
	if !s.run.TryLock() {
		return nil, ErrBusy
	}
	defer s.run.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	credential := s.credential
	gen := s.generation
	s.cancel = cancel
	s.progress = Progress{Total: len(items), Running: true}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.generation == gen {
			s.progress.Running = false
		}
		s.cancel = nil
		s.mu.Unlock()
	}()

	return p.Process(ctx, items, credential, sink{s: s, gen: gen}, func(completed, total int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == gen {
			s.progress = Progress{Completed: completed, Total: total, Running: completed < total}
		}
	})
}

// Reset clears the ResultSet, the credential and the progress counter, and
// stops a running batch before its next item.
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	s.credential = ""
	s.progress = Progress{}
	cancel := s.cancel
	s.results.Clear()
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

type sink struct {
	s   *Session
	gen uint64
}

// Append holds the session lock so a concurrent Reset cannot interleave.
func (k sink) Append(rec resume.Record) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	if k.s.generation == k.gen {
		k.s.results.Append(rec)
	}
}
