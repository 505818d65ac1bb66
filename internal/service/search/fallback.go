package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Fallback tries each provider in order and returns the first success.
type Fallback struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewFallback chains providers. A single provider is returned unwrapped.
func NewFallback(logger zerolog.Logger, providers ...Provider) Provider {
	live := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			live = append(live, p)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return &Fallback{providers: live, logger: logger}
}

func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (f *Fallback) Search(ctx context.Context, req Request) (*Result, error) {
	if len(f.providers) == 0 {
		return nil, errors.New("no search provider configured")
	}
	var errs []error
	for _, p := range f.providers {
		res, err := p.Search(ctx, req)
		if err == nil {
			return res, nil
		}
		f.logger.Warn().Err(err).Str("provider", p.Name()).Msg("search provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("no search provider succeeded: %w", errors.Join(errs...))
}
