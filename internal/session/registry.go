package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Registry keeps live sessions by id.
type Registry struct {
	deps Dependencies

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a registry whose sessions share deps.
func NewRegistry(deps Dependencies) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new idle session.
func (r *Registry) Create() *Session {
	s := New(r.deps)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	return s
}

// Get returns a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// Delete resets and removes a session. It fails with ErrBusy while the
// session is importing.
func (r *Registry) Delete(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := s.Reset(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// List returns snapshots of all sessions, most recently updated first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
	})
	return snaps
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions not updated within ttl. Sessions with an operation
// in flight are kept. It returns the number removed.
func (r *Registry) Sweep(ttl time.Duration) int {
	now := time.Now
	if r.deps.Now != nil {
		now = r.deps.Now
	}
	cutoff := now().Add(-ttl)

	r.mu.RLock()
	var expired []*Session
	for _, s := range r.sessions {
		if s.stale(cutoff) {
			expired = append(expired, s)
		}
	}
	r.mu.RUnlock()

	removed := 0
	for _, s := range expired {
		if err := r.Delete(s.ID()); err == nil {
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ttl); n > 0 {
				r.deps.Logger.Info().Int("removed", n).Int("live", r.Len()).Msg("Swept expired import sessions")
			}
		}
	}
}
