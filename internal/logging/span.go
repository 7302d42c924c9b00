package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one composition or cascade inside a request. Spans started under
// a request reuse its request id as their trace id.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	attrs  []any
	err    error
}

// StartSpan derives a child span from ctx and returns the context carrying it.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := FromContext(ctx)

	if TraceIDFromContext(ctx) == "" {
		traceID := RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = withString(ctx, traceIDKey{}, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(slog.String("span_id", spanID), slog.String("span_name", name))
	if parent := SpanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(ctx, logger)
	ctx = withString(ctx, spanIDKey{}, spanID)
	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Set attaches key/value pairs to the completion entry.
func (s *Span) Set(args ...any) {
	if s == nil {
		return
	}
	s.attrs = append(s.attrs, args...)
}

// Fail marks the span as failed. The last non-nil error wins.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits the completion entry: debug on success, warn on failure.
func (s *Span) End() {
	if s == nil {
		return
	}
	args := append([]any{slog.Duration("duration", time.Since(s.start))}, s.attrs...)
	if s.err != nil {
		s.logger.Warn("span failed", append(args, "error", s.err)...)
		return
	}
	s.logger.Debug("span completed", args...)
}
