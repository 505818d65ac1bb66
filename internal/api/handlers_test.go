package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aumchat/internal/models"
	"aumchat/internal/service/ai"
	"aumchat/internal/service/assistant"
	"aumchat/internal/service/search"
	"aumchat/internal/session"
	"aumchat/internal/worker"
)

func TestHandlersEndToEndFlow(t *testing.T) {
	router, store, responder := newTestServer(t, "")

	createResp := doJSONRequest(t, router, http.MethodPost, "/api/sessions", nil, nil)
	assertStatus(t, createResp, http.StatusCreated)
	var created models.Session
	decodeJSON(t, createResp.Body.Bytes(), &created)
	assert.Positive(t, created.ID)
	assert.Equal(t, models.DefaultSessionTitle, created.Title)

	firstMessage := "What is the AUM library?"
	sendResp := postSSE(t, router, fmt.Sprintf("/api/sessions/%d/messages", created.ID),
		map[string]any{"content": firstMessage}, nil)
	assertStatus(t, sendResp, http.StatusOK)
	assert.Equal(t, "text/event-stream", sendResp.Header().Get("Content-Type"))

	events := parseSSE(t, sendResp.Body.String())
	require.Len(t, events, 2, sendResp.Body.String())
	require.Equal(t, "ack", events[0].Name)
	var ackPayload struct {
		Message models.Message `json:"message"`
	}
	decodeJSON(t, []byte(events[0].Data), &ackPayload)
	assert.Equal(t, firstMessage, ackPayload.Message.Content)
	assert.Equal(t, models.RoleUser, ackPayload.Message.Role)

	require.Equal(t, "done", events[1].Name)
	var donePayload struct {
		Title string         `json:"title"`
		User  models.Message `json:"user_message"`
		AI    models.Message `json:"ai_message"`
	}
	decodeJSON(t, []byte(events[1].Data), &donePayload)
	assert.Equal(t, firstMessage, donePayload.Title)
	assert.Equal(t, "Mock response to \"What is the AUM library?\"", donePayload.AI.Content)
	assert.Equal(t, models.RoleAssistant, donePayload.AI.Role)
	assert.Equal(t, 1, responder.calls)

	history, err := store.History(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	listResp := doJSONRequest(t, router, http.MethodGet, "/api/sessions", nil, nil)
	assertStatus(t, listResp, http.StatusOK)
	var listBody struct {
		SessionList []models.Session `json:"session_list"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &listBody)
	require.Len(t, listBody.SessionList, 1)
	assert.Equal(t, firstMessage, listBody.SessionList[0].Title)

	msgResp := doJSONRequest(t, router, http.MethodGet, fmt.Sprintf("/api/sessions/%d/messages", created.ID), nil, nil)
	assertStatus(t, msgResp, http.StatusOK)
	var msgBody struct {
		Session  models.Session   `json:"session"`
		Messages []models.Message `json:"messages"`
	}
	decodeJSON(t, msgResp.Body.Bytes(), &msgBody)
	assert.Len(t, msgBody.Messages, 2)

	delResp := doJSONRequest(t, router, http.MethodDelete, fmt.Sprintf("/api/sessions/%d", created.ID), nil, nil)
	assertStatus(t, delResp, http.StatusNoContent)

	missingResp := doJSONRequest(t, router, http.MethodGet, fmt.Sprintf("/api/sessions/%d/messages", created.ID), nil, nil)
	assertStatus(t, missingResp, http.StatusNotFound)
}

func TestEmptySessionList(t *testing.T) {
	router, _, _ := newTestServer(t, "")
	resp := doJSONRequest(t, router, http.MethodGet, "/api/sessions", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	assert.JSONEq(t, `{"session_list":[]}`, resp.Body.String())
}

func TestCaptureInputValidation(t *testing.T) {
	router, store, _ := newTestServer(t, "")
	se, err := store.CreateSession(context.Background(), "")
	require.NoError(t, err)

	cases := []struct {
		name string
		path string
		body any
		want int
	}{
		{"bad session id", "/api/sessions/abc/messages", map[string]any{"content": "hi"}, http.StatusBadRequest},
		{"unknown session", "/api/sessions/999/messages", map[string]any{"content": "hi"}, http.StatusNotFound},
		{"empty content", fmt.Sprintf("/api/sessions/%d/messages", se.ID), map[string]any{"content": "  "}, http.StatusBadRequest},
		{"bad body", fmt.Sprintf("/api/sessions/%d/messages", se.ID), "not an object", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postSSE(t, router, tc.path, tc.body, nil)
			assertStatus(t, resp, tc.want)
		})
	}

	history, err := store.History(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCaptureInputSSEError(t *testing.T) {
	router, store, responder := newTestServer(t, "")
	responder.err = errors.New("gemini: quota exceeded")

	se, err := store.CreateSession(context.Background(), "")
	require.NoError(t, err)

	resp := postSSE(t, router, fmt.Sprintf("/api/sessions/%d/messages", se.ID), map[string]any{"content": "Hello"}, nil)
	assertStatus(t, resp, http.StatusOK)
	events := parseSSE(t, resp.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "ack", events[0].Name)
	assert.Equal(t, "error", events[1].Name)
	var payload struct {
		Message string `json:"message"`
	}
	decodeJSON(t, []byte(events[1].Data), &payload)
	assert.Contains(t, payload.Message, "quota exceeded")

	history, err := store.History(context.Background(), se.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.RoleUser, history[0].Role)

	// the turn can be retried once the provider recovers
	responder.err = nil
	retry := postSSE(t, router, fmt.Sprintf("/api/sessions/%d/messages", se.ID), map[string]any{"content": "Hello"}, nil)
	events = parseSSE(t, retry.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "done", events[len(events)-1].Name)
}

func TestCaptureInputBusyDispatcher(t *testing.T) {
	router, store, responder := newTestServer(t, "")
	responder.err = worker.ErrDispatcherBusy

	se, err := store.CreateSession(context.Background(), "")
	require.NoError(t, err)

	resp := postSSE(t, router, fmt.Sprintf("/api/sessions/%d/messages", se.ID), map[string]any{"content": "Hello"}, nil)
	events := parseSSE(t, resp.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].Name)
	assert.JSONEq(t, `{"message":"server is busy, please retry"}`, events[1].Data)
}

func TestCaptureInputStreamsWarnings(t *testing.T) {
	router, store, responder := newTestServer(t, "")
	responder.warning = "web search failed: brave: http 500"

	se, err := store.CreateSession(context.Background(), "")
	require.NoError(t, err)

	resp := postSSE(t, router, fmt.Sprintf("/api/sessions/%d/messages", se.ID), map[string]any{"content": "What is AUM?"}, nil)
	events := parseSSE(t, resp.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, []string{"ack", "warning", "done"}, []string{events[0].Name, events[1].Name, events[2].Name})
	assert.JSONEq(t, `{"message":"web search failed: brave: http 500"}`, events[1].Data)
}

// blockingSearch holds the search open until the request context ends.
type blockingSearch struct {
	searching chan struct{}
}

func (b *blockingSearch) Name() string { return "blocking" }

func (b *blockingSearch) Search(ctx context.Context, req search.Request) (*search.Result, error) {
	close(b.searching)
	<-ctx.Done()
	return nil, errors.New("search aborted")
}

// signalModel reports when generation starts, which is after any search warning.
type signalModel struct {
	called chan struct{}
}

func (m *signalModel) Generate(ctx context.Context, req *ai.GenerateRequest) (string, error) {
	close(m.called)
	return "", ctx.Err()
}

// trackingRecorder keeps writes that arrive after ServeHTTP returned out of the body.
type trackingRecorder struct {
	*httptest.ResponseRecorder
	mu       sync.Mutex
	returned bool
	late     []string
}

func (r *trackingRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.returned {
		r.late = append(r.late, string(p))
		return len(p), nil
	}
	return r.ResponseRecorder.Write(p)
}

func (r *trackingRecorder) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

func (r *trackingRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.returned {
		r.ResponseRecorder.Flush()
	}
}

func (r *trackingRecorder) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returned = true
}

func (r *trackingRecorder) lateWrites() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.late...)
}

func TestCaptureInputClientGoneDuringSearch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := session.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	provider := &blockingSearch{searching: make(chan struct{})}
	model := &signalModel{called: make(chan struct{})}
	responder := ai.NewService(model, provider, ai.Options{}, zerolog.Nop())
	dispatcher := worker.NewDispatcher(worker.Config{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, zerolog.Nop())
	t.Cleanup(dispatcher.Close)

	asst := assistant.NewService(store, worker.NewResponder(dispatcher, responder), zerolog.Nop())
	router := gin.New()
	NewHandler(asst, "", zerolog.Nop()).RegisterRoutes(router)

	se, err := store.CreateSession(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-provider.searching
		cancel()
	}()

	body := strings.NewReader(`{"content":"What is AUM?"}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/sessions/%d/messages", se.ID), body).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := &trackingRecorder{ResponseRecorder: httptest.NewRecorder()}
	router.ServeHTTP(rec, req)
	rec.finish()

	select {
	case <-model.called:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "worker never reached generation")
	}
	assert.Empty(t, rec.lateWrites())

	// the search warning may still land before the handler returns
	events := parseSSE(t, rec.Body.String())
	require.GreaterOrEqual(t, len(events), 2, rec.Body.String())
	assert.Equal(t, "ack", events[0].Name)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.Name)
	assert.Contains(t, last.Data, context.Canceled.Error())
}

func TestAccessToken(t *testing.T) {
	router, _, _ := newTestServer(t, "secret")

	resp := doJSONRequest(t, router, http.MethodGet, "/api/sessions", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/sessions", nil, map[string]string{"Authorization": "Bearer secret"})
	assertStatus(t, resp, http.StatusOK)

	health := doJSONRequest(t, router, http.MethodGet, "/healthz", nil, nil)
	assertStatus(t, health, http.StatusOK)
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, payload string) []sseEvent {
	t.Helper()
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	chunks := strings.Split(payload, "\n\n")
	var events []sseEvent
	for _, chunk := range chunks {
		lines := strings.Split(strings.TrimSpace(chunk), "\n")
		if len(lines) == 0 {
			continue
		}
		var evt sseEvent
		for _, line := range lines {
			switch {
			case strings.HasPrefix(line, "event:"):
				evt.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if evt.Data == "" {
					evt.Data = data
				} else {
					evt.Data += "\n" + data
				}
			}
		}
		events = append(events, evt)
	}
	return events
}

// mockResponder answers without calling a model and can emit one warning.
type mockResponder struct {
	calls   int
	err     error
	warning string
}

func (m *mockResponder) Respond(ctx context.Context, history []models.Message) (*ai.Reply, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	reply := &ai.Reply{Text: fmt.Sprintf("Mock response to %q", models.LastUserContent(history))}
	if m.warning != "" {
		reply.Warnings = []string{m.warning}
		// Respond reports warnings through the context handler as they happen.
		ai.EmitWarning(ctx, m.warning)
	}
	return reply, nil
}

func newTestServer(t *testing.T, token string) (*gin.Engine, session.Store, *mockResponder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	responder := &mockResponder{}
	asst := assistant.NewService(store, responder, zerolog.Nop())
	handler := NewHandler(asst, token, zerolog.Nop())

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, store, responder
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postSSE(t *testing.T, router *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONRequest(t, router, http.MethodPost, path, body, headers)
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, v), string(data))
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
