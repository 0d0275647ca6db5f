package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/scatty/backend/internal/metrics"
	"github.com/zhouzirui/scatty/backend/internal/model/chat"
)

// DefaultIdleTimeout is how long a session may go untouched before it becomes evictable.
const DefaultIdleTimeout = 30 * time.Minute

type record struct {
	id           string
	messages     []chat.Message
	createdAt    time.Time
	lastActivity time.Time
	seq          uint64
	lastStamp    int64
	holds        int
}

func (r *record) snapshot() chat.Session {
	return chat.Session{
		ID:           r.id,
		Messages:     copyMessages(r.messages),
		CreatedAt:    r.createdAt.UnixMilli(),
		LastActivity: r.lastActivity.UnixMilli(),
	}
}

// Store keeps per-session conversation history in memory. It is the only shared mutable
// state of the server; every method is safe for concurrent use and touching a session
// (read or write) refreshes its activity time under the same lock, so an append can never
// race with eviction.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*record
	idleTimeout time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. A non-positive idleTimeout selects DefaultIdleTimeout.
func NewStore(idleTimeout time.Duration, logger zerolog.Logger, opts ...Option) *Store {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	s := &Store{
		sessions:    make(map[string]*record),
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger.With().Str("component", "store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdleTimeout returns the eviction threshold.
func (s *Store) IdleTimeout() time.Duration {
	return s.idleTimeout
}

// GetOrCreate returns the session, creating an empty one for an unknown id.
func (s *Store) GetOrCreate(_ context.Context, sessionID string) chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchLocked(sessionID).snapshot()
}

// Get returns the session if it exists, refreshing its activity time.
func (s *Store) Get(_ context.Context, sessionID string) (chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, false
	}
	rec.lastActivity = s.now()
	return rec.snapshot(), true
}

// AddMessage appends a message, creating the session if needed. Sequence numbers increase
// by one per message and timestamps never go backwards within a session.
func (s *Store) AddMessage(_ context.Context, sessionID string, role chat.Role, content string, hasImage bool) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.touchLocked(sessionID)
	stamp := rec.lastActivity.UnixMilli()
	if stamp < rec.lastStamp {
		stamp = rec.lastStamp
	}
	rec.seq++
	rec.lastStamp = stamp

	msg := chat.Message{
		ID:        uuid.NewString(),
		Seq:       rec.seq,
		Role:      role,
		Content:   content,
		Timestamp: stamp,
		HasImage:  hasImage,
	}
	rec.messages = append(rec.messages, msg)
	return msg
}

// History returns a copy of every message in order; unknown sessions yield nil.
func (s *Store) History(_ context.Context, sessionID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	rec.lastActivity = s.now()
	return copyMessages(rec.messages)
}

// Delete removes the session. Deleting an unknown id is a no-op.
func (s *Store) Delete(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

// Hold keeps the session (creating it if needed) out of eviction until release is called.
// Release refreshes the activity time, so the idle clock restarts when the turn ends.
// Calling release more than once has no further effect.
func (s *Store) Hold(_ context.Context, sessionID string) (release func()) {
	s.mu.Lock()
	rec := s.touchLocked(sessionID)
	rec.holds++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			rec.holds--
			rec.lastActivity = s.now()
		})
	}
}

// EvictStale removes every session idle for longer than the threshold and returns how
// many were removed. Held sessions are skipped.
func (s *Store) EvictStale(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, rec := range s.sessions {
		if rec.holds == 0 && now.Sub(rec.lastActivity) > s.idleTimeout {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.SessionsEvicted.Add(float64(evicted))
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.logger.Info().Int("evicted", evicted).Int("remaining", len(s.sessions)).Msg("evicted idle sessions")
	}
	return evicted
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) touchLocked(sessionID string) *record {
	now := s.now()
	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = &record{
			id:           sessionID,
			messages:     make([]chat.Message, 0, 16),
			createdAt:    now,
			lastActivity: now,
		}
		s.sessions[sessionID] = rec
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.logger.Debug().Str("session", sessionID).Msg("session created")
		return rec
	}
	rec.lastActivity = now
	return rec
}

func copyMessages(messages []chat.Message) []chat.Message {
	if len(messages) == 0 {
		return nil
	}
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied
}
