package sender

import (
	"context"
	"time"

	"github.com/kbukum/iterpipe/logger"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/observability"
)

// WithTracing wraps every sender call in a span named "iterpipe.send",
// "iterpipe.send.open" or "iterpipe.send.close".
func WithTracing(d *Dispatcher) *Dispatcher {
	return Intercept(d, func(ctx context.Context, call Call, next func(context.Context) (*message.Message, error)) (*message.Message, error) {
		name := observability.SpanSend
		if call.Op != OpSend {
			name += "." + call.Op
		}
		ctx, span := observability.StartSpan(ctx, name)
		defer span.End()

		observability.SetSpanAttribute(ctx, observability.AttrSender, call.Sender)
		observability.SetSpanAttribute(ctx, observability.AttrMode, call.Kind.String())
		if item, ok := ItemFromContext(ctx); ok {
			observability.SetSpanAttribute(ctx, observability.AttrItem, item)
		}

		result, err := next(ctx)
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
		return result, err
	})
}

// WithMetrics records the duration and outcome of every send.
// Block open and close calls are not measured.
func WithMetrics(d *Dispatcher, metrics *observability.PipeMetrics) *Dispatcher {
	return Intercept(d, func(ctx context.Context, call Call, next func(context.Context) (*message.Message, error)) (*message.Message, error) {
		if call.Op != OpSend {
			return next(ctx)
		}
		start := time.Now()
		result, err := next(ctx)
		status := observability.StatusOK
		if err != nil {
			status = observability.StatusError
		}
		metrics.RecordDispatch(ctx, call.Sender, status, time.Since(start))
		return result, err
	})
}

// WithLogging logs every sender call with its duration.
func WithLogging(d *Dispatcher, log *logger.Logger) *Dispatcher {
	return Intercept(d, func(ctx context.Context, call Call, next func(context.Context) (*message.Message, error)) (*message.Message, error) {
		start := time.Now()
		result, err := next(ctx)

		fields := logger.Fields(
			logger.FieldSender, call.Sender,
			"op", call.Op,
		)
		if item, ok := ItemFromContext(ctx); ok {
			fields[logger.FieldItem] = item
		}
		fields = logger.MergeWithDuration(fields, time.Since(start))

		l := log.WithContext(ctx)
		if err != nil {
			fields[logger.FieldError] = err.Error()
			l.Warn("sender call failed", fields)
		} else {
			l.Debug("sender call completed", fields)
		}
		return result, err
	})
}
