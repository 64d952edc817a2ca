package studio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/snappy-loop/charstudio/internal/metrics"
	"github.com/snappy-loop/charstudio/internal/models"
)

// ErrSessionClosed is returned by actions on an evicted session.
var ErrSessionClosed = errors.New("session closed")

// Generator produces a character image from a photo.
type Generator interface {
	GenerateCharacter(ctx context.Context, img models.ImagePayload, age models.AgeGroup) (*models.ImagePayload, error)
}

// Snapshot is the JSON view of a session sent to the browser.
type Snapshot struct {
	ID                string            `json:"id"`
	Status            Status            `json:"status"`
	AgeGroup          models.AgeGroup   `json:"age_group"`
	AgeGroups         []models.AgeGroup `json:"age_groups"`
	View              View              `json:"view"`
	Error             string            `json:"error,omitempty"`
	HasOriginalImage  bool              `json:"has_original_image"`
	HasGeneratedImage bool              `json:"has_generated_image"`
	Token             uint64            `json:"token"`
}

// Session applies user actions to one State. At most one generation runs at a
// time; results for superseded requests are discarded.
type Session struct {
	ID uuid.UUID

	gen     Generator
	metrics *metrics.Collector
	baseCtx context.Context

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	watchers map[chan Snapshot]struct{}
	lastSeen time.Time
	closed   bool

	wg sync.WaitGroup
}

// NewSession creates a session in the initial state. Generation requests run
// under ctx and stop when it is cancelled.
func NewSession(ctx context.Context, gen Generator, m *metrics.Collector) *Session {
	return &Session{
		ID:       uuid.New(),
		gen:      gen,
		metrics:  m,
		baseCtx:  ctx,
		state:    NewState(),
		watchers: make(map[chan Snapshot]struct{}),
		lastSeen: time.Now(),
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current JSON view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:                s.ID.String(),
		Status:            s.state.Status,
		AgeGroup:          s.state.AgeGroup,
		AgeGroups:         models.AgeGroups,
		View:              s.state.View,
		Error:             s.state.Error,
		HasOriginalImage:  s.state.OriginalImage != nil,
		HasGeneratedImage: s.state.GeneratedImage != nil,
		Token:             s.state.Token,
	}
}

// Upload sets a new original photo, cancelling any in-flight generation.
func (s *Session) Upload(img models.ImagePayload) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snapshotLocked(), ErrSessionClosed
	}

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = s.state.Upload(img)
	s.metrics.Uploaded()
	s.broadcastLocked()
	return s.snapshotLocked(), nil
}

// SelectAge changes the age group.
func (s *Session) SelectAge(age models.AgeGroup) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snapshotLocked(), ErrSessionClosed
	}

	s.state = s.state.SelectAge(age)
	s.broadcastLocked()
	return s.snapshotLocked(), nil
}

// ResetView goes back to the setup screen.
func (s *Session) ResetView() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.ResetView()
	s.broadcastLocked()
	return s.snapshotLocked()
}

// Download exports the generated image, if any.
func (s *Session) Download() (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Download()
}

// OriginalImage returns the uploaded photo, if any.
func (s *Session) OriginalImage() (*models.ImagePayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.OriginalImage, s.state.OriginalImage != nil
}

// Generate starts a generation for the current photo and age group and
// returns the loading snapshot. The request settles in the background.
func (s *Session) Generate() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return s.snapshotLocked(), ErrSessionClosed
	}

	next, ticket, err := s.state.Begin()
	if err != nil {
		defer s.mu.Unlock()
		return s.snapshotLocked(), err
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.state = next
	s.broadcastLocked()
	snap := s.snapshotLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.GenerationStarted()
	log.Info().
		Str("session_id", s.ID.String()).
		Uint64("token", ticket.Token).
		Str("age_group", string(ticket.AgeGroup)).
		Msg("Generation started")

	go s.run(ctx, cancel, ticket)
	return snap, nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, ticket Ticket) {
	defer s.wg.Done()
	defer cancel()

	start := time.Now()
	img, err := s.gen.GenerateCharacter(ctx, ticket.Image, ticket.AgeGroup)
	s.settle(Outcome{Token: ticket.Token, Image: img, Err: err}, ticket.AgeGroup, time.Since(start))
}

func (s *Session) settle(o Outcome, age models.AgeGroup, elapsed time.Duration) {
	s.mu.Lock()
	next, applied := s.state.Apply(o)
	if applied {
		s.state = next
		s.cancel = nil
		s.broadcastLocked()
	}
	s.mu.Unlock()

	outcome := metrics.OutcomeDiscarded
	switch {
	case !applied:
	case o.Err != nil || o.Image == nil:
		outcome = metrics.OutcomeError
	default:
		outcome = metrics.OutcomeSuccess
	}
	s.metrics.GenerationSettled(outcome, string(age), elapsed)

	ev := log.Info()
	if outcome == metrics.OutcomeError {
		ev = log.Warn().Err(o.Err)
	}
	ev.Str("session_id", s.ID.String()).
		Uint64("token", o.Token).
		Str("outcome", outcome).
		Dur("elapsed", elapsed).
		Msg("Generation settled")
}

// Watch subscribes to snapshots. The channel holds only the latest snapshot;
// call the returned func to unsubscribe.
func (s *Session) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[ch]; ok {
				delete(s.watchers, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.watchers {
		// Replace any unread snapshot so slow readers only see the latest.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Close cancels any in-flight request and ends all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
}

// Wait blocks until every started generation has settled.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// idle reports whether nobody has used the session since cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers) == 0 && s.lastSeen.Before(cutoff)
}
