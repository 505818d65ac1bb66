package ai

import (
	"context"

	"aumchat/internal/service/search"
)

// SearchResultsDelimiter separates the user's text from appended search results.
const SearchResultsDelimiter = "\n\nHere are some relevant web search results:\n"

// augment runs one search for query and returns contents with the results
// appended to a copy of the last element. The input slice is never modified.
// A search failure is returned alongside the untouched contents.
func augment(ctx context.Context, provider search.Provider, count int, query string, contents []string) ([]string, bool, error) {
	if provider == nil || len(contents) == 0 {
		return contents, false, nil
	}
	res, err := provider.Search(ctx, search.Request{Query: query, Count: count, Raw: true})
	if err != nil {
		return contents, false, err
	}
	if res.Empty() {
		return contents, false, nil
	}
	out := make([]string, len(contents))
	copy(out, contents)
	last := len(out) - 1
	out[last] = out[last] + SearchResultsDelimiter + res.String()
	return out, true, nil
}
