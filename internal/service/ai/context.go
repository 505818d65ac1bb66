package ai

import "context"

type warningHandlerKey struct{}

// WarningHandler receives non-fatal problems raised while answering a turn.
type WarningHandler func(message string)

// WithWarningHandler attaches fn to ctx so Respond can report warnings as they occur.
func WithWarningHandler(ctx context.Context, fn WarningHandler) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, warningHandlerKey{}, fn)
}

// EmitWarning passes message to the handler attached to ctx, if any.
func EmitWarning(ctx context.Context, message string) {
	if fn, ok := ctx.Value(warningHandlerKey{}).(WarningHandler); ok {
		fn(message)
	}
}
