package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultSessionTitle is used until the first user turn arrives.
const DefaultSessionTitle = "New Conversation"

const maxTitleRunes = 40

// Session groups a sequence of conversation turns.
type Session struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TitleFromContent derives a session title from the first user turn.
func TitleFromContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return DefaultSessionTitle
	}
	if utf8.RuneCountInString(content) <= maxTitleRunes {
		return content
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
}
