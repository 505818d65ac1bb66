package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldSearchTriggers(t *testing.T) {
	for _, trigger := range searchTriggers {
		for _, text := range []string{
			trigger,
			strings.ToUpper(trigger) + " the campus",
			"Please " + strings.ToUpper(trigger[:1]) + trigger[1:] + " admissions",
			"Can you, " + trigger,
		} {
			assert.True(t, ShouldSearch(text), text)
		}
	}
}

func TestShouldSearchExamples(t *testing.T) {
	cases := map[string]bool{
		"What is AUM?":              true,
		"Tell me about AUM library": true,
		"Thank you":                 false,
		"":                          false,
		"Hello there":               false,
		"Any findings yet?":         true,
		"WHO IS the president":      true,
	}
	for text, want := range cases {
		assert.Equal(t, want, ShouldSearch(text), text)
	}
}

func TestShouldSearchIsIdempotent(t *testing.T) {
	for _, text := range []string{"How to apply?", "Thanks"} {
		assert.Equal(t, ShouldSearch(text), ShouldSearch(text))
	}
}
