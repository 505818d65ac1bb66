package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"aumchat/internal/auth"
	"aumchat/internal/models"
	"aumchat/internal/service/ai"
	"aumchat/internal/service/assistant"
	"aumchat/internal/session"
	"aumchat/internal/worker"
)

// Handler wires HTTP routes to the conversation service.
type Handler struct {
	assistant   *assistant.Service
	accessToken string
	logger      zerolog.Logger
}

// NewHandler constructs a Handler instance. An empty accessToken leaves the API open.
func NewHandler(service *assistant.Service, accessToken string, logger zerolog.Logger) *Handler {
	return &Handler{
		assistant:   service,
		accessToken: accessToken,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	api.Use(auth.Middleware(h.accessToken))
	api.POST("/sessions", h.createSession)
	api.GET("/sessions", h.getSessionList)
	api.GET("/sessions/:session_id/messages", h.getSessionMessages)
	api.DELETE("/sessions/:session_id", h.deleteSession)
	api.POST("/sessions/:session_id/messages", h.captureInput)
}

// RequestLogger logs one line per request through zerolog.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	se, err := h.assistant.CreateSession(c.Request.Context(), req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, se)
}

func (h *Handler) getSessionList(c *gin.Context) {
	seList, err := h.assistant.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if seList == nil {
		seList = make([]models.Session, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"session_list": seList,
	})
}

func sessionIDParam(c *gin.Context) (int64, bool) {
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return sessionID, true
}

func (h *Handler) deleteSession(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	if err := h.assistant.DeleteSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getSessionMessages(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	se, messages, err := h.assistant.GetSessionWithMessages(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  se,
		"messages": messages,
	})
}

// User input interface
type inputRequest struct {
	Content string `json:"content"`
}

func (h *Handler) captureInput(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.assistant.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// SSE Request construction
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	// The worker can still emit warnings after the request is gone, so every
	// write holds mu and stops once closed is set.
	var (
		mu      sync.Mutex
		started bool
		closed  bool
	)
	start := func() {
		if started {
			return
		}
		started = true
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}
	writeEvent := func(event string, payload any) {
		start()
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error().Err(err).Str("event", event).Msg("encode sse payload")
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			h.logger.Debug().Err(err).Msg("client went away")
			return
		}
		flusher.Flush()
	}
	sendEvent := func(event string, payload any) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			h.logger.Debug().Str("event", event).Msg("dropping event after request ended")
			return
		}
		writeEvent(event, payload)
	}

	ctx = assistant.WithAcceptedHandler(ctx, func(m *models.Message) {
		sendEvent("ack", gin.H{"message": m})
	})
	ctx = ai.WithWarningHandler(ctx, func(msg string) {
		sendEvent("warning", gin.H{"message": msg})
	})

	exchange, err := h.assistant.Submit(ctx, sessionID, req.Content)

	mu.Lock()
	defer mu.Unlock()
	closed = true
	if err != nil {
		if !started {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, assistant.ErrEmptyContent):
				status = http.StatusBadRequest
			case errors.Is(err, session.ErrNotFound):
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		msg := err.Error()
		if errors.Is(err, worker.ErrDispatcherBusy) {
			msg = "server is busy, please retry"
		}
		writeEvent("error", gin.H{"message": msg})
		return
	}
	payload := gin.H{
		"user_message": exchange.UserMessage,
		"ai_message":   exchange.AssistantMessage,
	}
	if exchange.Title != "" {
		payload["title"] = exchange.Title
	}
	writeEvent("done", payload)
}
