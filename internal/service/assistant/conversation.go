package assistant

import (
	"context"
	"fmt"
	"strings"

	"aumchat/internal/models"
)

type acceptedHandlerKey struct{}

// WithAcceptedHandler registers fn to run once the user turn is stored,
// before the reply is generated.
func WithAcceptedHandler(ctx context.Context, fn func(*models.Message)) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, acceptedHandlerKey{}, fn)
}

// Exchange is the result of one submitted turn.
type Exchange struct {
	UserMessage      *models.Message
	AssistantMessage *models.Message
	// Title is set when this turn renamed the session.
	Title    string
	Warnings []string
}

// Submit records a user turn and the reply to it. Turns on the same session
// never overlap. When the responder fails the returned Exchange still carries
// the stored user turn and the error wraps ErrGeneration.
func (s *Service) Submit(ctx context.Context, sessionID int64, content string) (*Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	unlock := s.lockSession(sessionID)
	defer unlock()

	se, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	userMsg, err := s.store.AppendMessage(ctx, sessionID, models.RoleUser, content)
	if err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	exchange := &Exchange{UserMessage: userMsg}
	if fn, ok := ctx.Value(acceptedHandlerKey{}).(func(*models.Message)); ok {
		fn(userMsg)
	}

	if se.Title == models.DefaultSessionTitle {
		title := models.TitleFromContent(content)
		if err := s.store.UpdateTitle(ctx, sessionID, title); err != nil {
			s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("update session title failed")
		} else {
			exchange.Title = title
		}
	}

	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		return exchange, fmt.Errorf("load history: %w", err)
	}
	reply, err := s.responder.Respond(ctx, history)
	if err != nil {
		s.logger.Error().Err(err).Int64("session_id", sessionID).Msg("generate reply failed")
		return exchange, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	exchange.Warnings = reply.Warnings

	aiMsg, err := s.store.AppendMessage(ctx, sessionID, models.RoleAssistant, reply.Text)
	if err != nil {
		return exchange, fmt.Errorf("store assistant message: %w", err)
	}
	exchange.AssistantMessage = aiMsg
	return exchange, nil
}
