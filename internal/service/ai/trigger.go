package ai

import "strings"

// searchTriggers are matched as plain substrings, so "find" also fires on "findings".
var searchTriggers = []string{
	"what is",
	"who is",
	"how to",
	"tell me about",
	"search for",
	"find",
}

// ShouldSearch reports whether the user's text asks for information that
// web results could help with.
func ShouldSearch(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, trigger := range searchTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}
