package tracing

import "context"

type spanContextKey struct{}

// ContextWithSpan stores a span in the context so nested agent runs can hang
// their spans under the caller's.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	if span == nil {
		return ctx
	}
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext returns the active span, or nil when tracing is disabled
// or no span was stored. A nil span is safe to use.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanContextKey{}).(*Span)
	return span
}
