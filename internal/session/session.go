// Package session keeps the consumer instances served over the API. Each
// session owns one binder, and so at most one live background context.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/offload/internal/binder"
	"github.com/phrazzld/offload/internal/events"
	"github.com/phrazzld/offload/internal/execctx"
	"github.com/phrazzld/offload/internal/task"
)

// Common errors returned by the Store
var (
	ErrNotFound     = errors.New("session not found")
	ErrLimitReached = errors.New("session limit reached")
	ErrClosed       = errors.New("session store is closed")
)

// Session is one consumer instance.
type Session struct {
	// ID is the session's unique identifier
	ID uuid.UUID

	// CreatedAt is when the session was created
	CreatedAt time.Time

	// Binder runs the session's background computation
	Binder *binder.Binder

	// Stats counts the lifecycle events of the session's contexts
	Stats *events.Counter
}

// Store creates, finds and tears down sessions. It is safe for concurrent use.
type Store struct {
	host        execctx.Host
	serializer  *task.Serializer
	maxSessions int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	closed   bool
}

// NewStore creates an empty Store. A non-positive maxSessions means no limit.
func NewStore(host execctx.Host, serializer *task.Serializer, maxSessions int, logger *slog.Logger) *Store {
	return &Store{
		host:        host,
		serializer:  serializer,
		maxSessions: maxSessions,
		logger:      logger.With("component", "session_store"),
		sessions:    make(map[uuid.UUID]*Session),
	}
}

// Create starts a new idle session
func (s *Store) Create() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return nil, fmt.Errorf("%w: %d sessions open", ErrLimitReached, len(s.sessions))
	}

	id := uuid.New()
	logger := s.logger.With("session_id", id)

	emitter := events.NewInMemoryEventEmitter(logger)
	stats := events.NewCounter()
	emitter.RegisterHandler(stats)

	sess := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Binder:    binder.New(s.host, s.serializer, logger, binder.WithEmitter(emitter)),
		Stats:     stats,
	}
	s.sessions[id] = sess

	logger.Info("session created", "session_count", len(s.sessions))
	return sess, nil
}

// Get returns the session with the given ID
func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Delete tears the session down and forgets it
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := sess.Binder.Close(); err != nil {
		return fmt.Errorf("failed to close session %s: %w", id, err)
	}
	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// Len returns the number of open sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close tears every session down and refuses new ones. It returns the
// first teardown error.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	var firstErr error
	for _, sess := range sessions {
		if err := sess.Binder.Close(); err != nil {
			s.logger.Error("failed to close session", "session_id", sess.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.logger.Info("session store closed", "closed_sessions", len(sessions))
	return firstErr
}
