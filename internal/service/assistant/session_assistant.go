package assistant

import (
	"context"
	"strings"

	"aumchat/internal/models"
)

// CreateSession starts an empty conversation.
func (s *Service) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	return s.store.CreateSession(ctx, strings.TrimSpace(title))
}

// ListSessions returns all sessions ordered by last activity.
func (s *Service) ListSessions(ctx context.Context) ([]models.Session, error) {
	return s.store.ListSessions(ctx)
}

// GetSession returns one session without its history.
func (s *Service) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// GetSessionWithMessages returns one session and its ordered messages.
func (s *Service) GetSessionWithMessages(ctx context.Context, sessionID int64) (*models.Session, []models.Message, error) {
	se, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return se, messages, nil
}

// DeleteSession removes a session and its history. It waits for an in-flight turn.
func (s *Service) DeleteSession(ctx context.Context, sessionID int64) error {
	unlock := s.lockSession(sessionID)
	defer unlock()
	return s.store.DeleteSession(ctx, sessionID)
}
