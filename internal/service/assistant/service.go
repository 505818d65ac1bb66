// Package assistant runs conversations on top of a session store: it records
// user turns, asks the responder for a reply and records the reply.
package assistant

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"aumchat/internal/models"
	"aumchat/internal/service/ai"
	"aumchat/internal/session"
)

var (
	// ErrEmptyContent is returned when a submitted turn has no text.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrGeneration wraps responder failures; the user turn is already stored.
	ErrGeneration = errors.New("generate reply failed")
)

// Responder produces the assistant reply for a history.
type Responder interface {
	Respond(ctx context.Context, history []models.Message) (*ai.Reply, error)
}

// Service coordinates the store and the responder.
type Service struct {
	store     session.Store
	responder Responder
	logger    zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService builds a conversation service.
func NewService(store session.Store, responder Responder, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		responder: responder,
		logger:    logger.With().Str("component", "assistant").Logger(),
		locks:     make(map[int64]*sessionLock),
	}
}

// lockSession serializes work on one session and returns the unlock func.
func (s *Service) lockSession(sessionID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}
