// Package session stores conversation sessions and their ordered message history.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aumchat/internal/config"
	"aumchat/internal/models"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidRole is returned when appending a message with an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
)

// Store owns sessions and their append-only history.
type Store interface {
	CreateSession(ctx context.Context, title string) (*models.Session, error)
	GetSession(ctx context.Context, sessionID int64) (*models.Session, error)
	// ListSessions returns sessions ordered by last activity, newest first.
	ListSessions(ctx context.Context) ([]models.Session, error)
	// History returns the session's messages in insertion order. The slice is a copy.
	History(ctx context.Context, sessionID int64) ([]models.Message, error)
	AppendMessage(ctx context.Context, sessionID int64, role models.Role, content string) (*models.Message, error)
	UpdateTitle(ctx context.Context, sessionID int64, title string) error
	DeleteSession(ctx context.Context, sessionID int64) error
	Close() error
}

// Open builds the store selected by cfg.Session.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Session.Driver))
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3", "mysql":
		db, err := OpenDB(driver, cfg.Databases[normalizeDriver(driver)])
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, db, driver); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported session driver: %s", cfg.Session.Driver)
	}
}

func normalizeDriver(driver string) string {
	if driver == "sqlite" {
		return "sqlite3"
	}
	return driver
}
