package assistant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aumchat/internal/models"
	"aumchat/internal/service/ai"
	"aumchat/internal/session"
)

type fakeResponder struct {
	mu        sync.Mutex
	histories [][]models.Message
	reply     *ai.Reply
	err       error
}

func (f *fakeResponder) Respond(ctx context.Context, history []models.Message) (*ai.Reply, error) {
	f.mu.Lock()
	f.histories = append(f.histories, history)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func newTestService(t *testing.T, r Responder) (*Service, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return NewService(store, r, zerolog.Nop()), store
}

func TestSubmitStoresBothTurns(t *testing.T) {
	ctx := context.Background()
	responder := &fakeResponder{reply: &ai.Reply{Text: "AUM is in Ulaanbaatar.", Warnings: []string{"web search failed: x"}}}
	svc, store := newTestService(t, responder)

	se, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	ex, err := svc.Submit(ctx, se.ID, "What is AUM?")
	require.NoError(t, err)

	assert.Equal(t, "What is AUM?", ex.UserMessage.Content)
	assert.Equal(t, models.RoleUser, ex.UserMessage.Role)
	require.NotNil(t, ex.AssistantMessage)
	assert.Equal(t, "AUM is in Ulaanbaatar.", ex.AssistantMessage.Content)
	assert.Equal(t, "What is AUM?", ex.Title)
	assert.Equal(t, []string{"web search failed: x"}, ex.Warnings)

	require.Len(t, responder.histories, 1)
	require.Len(t, responder.histories[0], 1)
	assert.Equal(t, "What is AUM?", responder.histories[0][0].Content)

	history, err := store.History(ctx, se.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleAssistant, history[1].Role)

	got, _, err := svc.GetSessionWithMessages(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is AUM?", got.Title)
}

func TestSubmitKeepsTitleAfterFirstTurn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeResponder{reply: &ai.Reply{Text: "ok"}})

	se, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, se.ID, "Hello")
	require.NoError(t, err)
	ex, err := svc.Submit(ctx, se.ID, "How to apply?")
	require.NoError(t, err)
	assert.Empty(t, ex.Title)

	got, messages, err := svc.GetSessionWithMessages(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)
	assert.Len(t, messages, 4)
}

func TestSubmitGenerationFailureAppendsNoAssistantTurn(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("quota exceeded")
	svc, store := newTestService(t, &fakeResponder{err: cause})

	se, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	ex, err := svc.Submit(ctx, se.ID, "What is AUM?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, cause)
	require.NotNil(t, ex)
	assert.Nil(t, ex.AssistantMessage)
	assert.Equal(t, "What is AUM?", ex.UserMessage.Content)

	history, err := store.History(ctx, se.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.RoleUser, history[0].Role)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeResponder{reply: &ai.Reply{Text: "ok"}})

	_, err := svc.Submit(ctx, 1, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = svc.Submit(ctx, 999, "hi")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

type blockingResponder struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (b *blockingResponder) Respond(ctx context.Context, history []models.Message) (*ai.Reply, error) {
	if b.active.Add(1) > 1 {
		b.overlap.Store(true)
	}
	time.Sleep(10 * time.Millisecond)
	b.active.Add(-1)
	return &ai.Reply{Text: "ok"}, nil
}

func TestSubmitSerializesSameSession(t *testing.T) {
	ctx := context.Background()
	responder := &blockingResponder{}
	svc, store := newTestService(t, responder)

	se, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, se.ID, "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, responder.overlap.Load())
	history, err := store.History(ctx, se.ID)
	require.NoError(t, err)
	require.Len(t, history, 10)
	for i, msg := range history {
		if i%2 == 0 {
			assert.Equal(t, models.RoleUser, msg.Role)
		} else {
			assert.Equal(t, models.RoleAssistant, msg.Role)
		}
	}
	assert.Empty(t, svc.locks)
}

func TestListAndDeleteSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeResponder{reply: &ai.Reply{Text: "ok"}})

	first, err := svc.CreateSession(ctx, "first")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "second")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	sessions, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, svc.DeleteSession(ctx, first.ID))
	assert.ErrorIs(t, svc.DeleteSession(ctx, first.ID), session.ErrNotFound)
	_, _, err = svc.GetSessionWithMessages(ctx, first.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = svc.GetSession(ctx, first.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSubmitNotifiesAcceptedBeforeResponding(t *testing.T) {
	ctx := context.Background()
	responder := &fakeResponder{reply: &ai.Reply{Text: "ok"}}
	svc, _ := newTestService(t, responder)

	se, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	var accepted *models.Message
	var respondedBefore int
	ctx = WithAcceptedHandler(ctx, func(m *models.Message) {
		accepted = m
		respondedBefore = len(responder.histories)
	})
	ex, err := svc.Submit(ctx, se.ID, "Hi")
	require.NoError(t, err)

	require.NotNil(t, accepted)
	assert.Equal(t, ex.UserMessage.ID, accepted.ID)
	assert.Equal(t, 0, respondedBefore)
}
