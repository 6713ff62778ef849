// Package resilience provides a token bucket rate limiter shared by the
// concurrent dispatch units of a pipe.
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 50, Burst: 10})
//	if err := rl.Wait(ctx); err != nil {
//	    return err
//	}
package resilience
