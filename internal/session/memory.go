package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"aumchat/internal/models"
)

// MemoryStore keeps sessions in process memory. History lives as long as the process.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	nextMsgID int64
	sessions  map[int64]*models.Session
	history   map[int64][]models.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*models.Session),
		history:  make(map[int64][]models.Message),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, title string) (*models.Session, error) {
	if title == "" {
		title = models.DefaultSessionTitle
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	se := &models.Session{ID: s.nextID, Title: title, CreatedAt: now, UpdatedAt: now}
	s.sessions[se.ID] = se
	s.history[se.ID] = nil
	copied := *se
	return &copied, nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID int64) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	se, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *se
	return &copied, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]models.Session, error) {
	s.mu.RLock()
	sessions := make([]models.Session, 0, len(s.sessions))
	for _, se := range s.sessions {
		sessions = append(sessions, *se)
	}
	s.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *MemoryStore) History(_ context.Context, sessionID int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	history := s.history[sessionID]
	out := make([]models.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, sessionID int64, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.nextMsgID++
	msg := models.Message{
		ID:        s.nextMsgID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	s.history[sessionID] = append(s.history[sessionID], msg)
	se.UpdatedAt = now
	return &msg, nil
}

func (s *MemoryStore) UpdateTitle(_ context.Context, sessionID int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	se.Title = title
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	delete(s.history, sessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
