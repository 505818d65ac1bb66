// Package search fetches web results used to augment a user's question.
//
// Results are kept in the provider's raw form; callers only serialize them
// to text and append them to the outgoing prompt.
package search

import (
	"bytes"
	"context"
	"encoding/json"
)

// Request describes one web search.
type Request struct {
	Query string
	Count int
	// Raw asks the provider for its unprocessed result structure.
	Raw bool
}

// Result is the provider's "web" results section, kept as raw JSON.
type Result struct {
	Provider string          `json:"provider"`
	Web      json.RawMessage `json:"web"`
}

// Provider is a web search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, req Request) (*Result, error)
}

// Empty reports whether the result carries nothing worth appending:
// no payload, null, an empty object, array or string.
func (r *Result) Empty() bool {
	if r == nil {
		return true
	}
	trimmed := bytes.TrimSpace(r.Web)
	if len(trimmed) == 0 {
		return true
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return false
	}
	switch v := decoded.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case string:
		return v == ""
	}
	return false
}

// String serializes the results as compact JSON text.
func (r *Result) String() string {
	if r == nil || len(r.Web) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.Web); err != nil {
		return string(r.Web)
	}
	return buf.String()
}

// rawJSON keeps text that is already JSON and quotes anything else.
func rawJSON(text string) json.RawMessage {
	trimmed := bytes.TrimSpace([]byte(text))
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(text)
	return quoted
}
