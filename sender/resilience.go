package sender

import (
	"context"

	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/resilience"
)

// WithRateLimit makes every send wait for a token of rl. Block open and
// close calls are not limited. A wait that outlives ctx fails with the
// context error.
func WithRateLimit(d *Dispatcher, rl *resilience.RateLimiter) *Dispatcher {
	if rl == nil {
		return d
	}
	return Intercept(d, func(ctx context.Context, call Call, next func(context.Context) (*message.Message, error)) (*message.Message, error) {
		if call.Op == OpSend {
			if err := rl.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return next(ctx)
	})
}
