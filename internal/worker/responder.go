package worker

import (
	"context"

	"aumchat/internal/models"
	"aumchat/internal/service/ai"
	"aumchat/internal/service/assistant"
)

// Responder runs another responder's turns on the dispatcher's workers.
type Responder struct {
	dispatcher *Dispatcher
	next       assistant.Responder
}

// NewResponder wraps next so each reply is generated on a dispatcher worker.
func NewResponder(d *Dispatcher, next assistant.Responder) *Responder {
	return &Responder{dispatcher: d, next: next}
}

// Respond queues the turn under the session of the latest message and waits
// for it. Dispatcher errors such as ErrDispatcherBusy are returned as is.
func (r *Responder) Respond(ctx context.Context, history []models.Message) (*ai.Reply, error) {
	var sessionID int64
	if len(history) > 0 {
		sessionID = history[len(history)-1].SessionID
	}
	var (
		reply *ai.Reply
		err   error
	)
	if derr := r.dispatcher.Do(ctx, sessionID, func(ctx context.Context) {
		reply, err = r.next.Respond(ctx, history)
	}); derr != nil {
		return nil, derr
	}
	return reply, err
}

var _ assistant.Responder = (*Responder)(nil)
