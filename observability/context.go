package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/iterpipe/errors"
)

// RunContext holds the observability state of one pipe run.
type RunContext struct {
	Pipe      string
	RunID     string
	StartTime time.Time
	Metrics   *PipeMetrics
}

// NewRunContext creates a run context.
// If metrics is nil, metric recording is silently skipped.
func NewRunContext(pipe, runID string, metrics *PipeMetrics) *RunContext {
	return &RunContext{
		Pipe:      pipe,
		RunID:     runID,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartRunSpan starts the span covering the whole run.
func (rc *RunContext) StartRunSpan(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanRun)
	span.SetAttributes(
		attribute.String(AttrPipe, rc.Pipe),
		attribute.String(AttrRunID, rc.RunID),
	)
	return WithRunContext(ctx, rc), span
}

// EndRun ends the run span and records the failure metric when err is set.
func (rc *RunContext) EndRun(ctx context.Context, span trace.Span, forward string, count int, err error) {
	duration := time.Since(rc.StartTime)

	status := StatusOK
	if err != nil {
		status = StatusError
		code := "UNKNOWN"
		if appErr, ok := errors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorCode, code))
		rc.Metrics.RecordError(ctx, rc.Pipe, code)
	} else {
		span.SetAttributes(attribute.String(AttrForward, forward))
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int(AttrCount, count),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()
}

// Duration returns the elapsed time since the run started.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
