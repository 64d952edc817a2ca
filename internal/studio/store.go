package studio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/snappy-loop/charstudio/internal/metrics"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Store keeps browser sessions in memory and drops idle ones.
type Store struct {
	ctx     context.Context
	gen     Generator
	ttl     time.Duration
	metrics *metrics.Collector
	now     func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewStore creates an empty store. Sessions created by it run generations under ctx.
func NewStore(ctx context.Context, gen Generator, ttl time.Duration, m *metrics.Collector) *Store {
	return &Store{
		ctx:      ctx,
		gen:      gen,
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a new session.
func (st *Store) Create() *Session {
	sess := NewSession(st.ctx, st.gen, st.metrics)
	sess.touch(st.now())

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	n := len(st.sessions)
	st.mu.Unlock()

	st.metrics.SetSessions(n)
	log.Debug().Str("session_id", sess.ID.String()).Msg("Session created")
	return sess
}

// Get returns the session and marks it as used.
func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(st.now())
	return sess, nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep closes and removes sessions idle for longer than the TTL.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	var expired []*Session
	for id, sess := range st.sessions {
		if sess.idle(cutoff) {
			expired = append(expired, sess)
			delete(st.sessions, id)
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	if len(expired) > 0 {
		st.metrics.SetSessions(n)
		log.Info().Int("expired", len(expired)).Int("active", n).Msg("Idle sessions removed")
	}
	return len(expired)
}

// Run sweeps on every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}

// Close closes every session.
func (st *Store) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[uuid.UUID]*Session)
	st.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	st.metrics.SetSessions(0)
}
