package pricing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// defaultRequestsPerMinute matches the CoinPaprika free tier with headroom.
const defaultRequestsPerMinute = 45

// Limiter throttles upstream calls to a requests-per-minute budget. One
// limiter is shared by all live sources so the combined call rate stays
// inside the budget even during fallback storms.
type Limiter struct {
	limiter *rate.Limiter
	name    string
	log     zerolog.Logger
}

// NewLimiter builds a limiter for the given per-minute budget. The burst
// is 10% of the budget so short spikes do not queue, with a floor of one.
func NewLimiter(name string, requestsPerMinute int, log zerolog.Logger) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	rps := float64(requestsPerMinute) / 60.0

	log.Debug().
		Str("limiter", name).
		Int("requests_per_minute", requestsPerMinute).
		Int("burst", burst).
		Msg("rate limiter configured")

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		log:     log.With().Str("limiter", name).Logger(),
	}
}

// Wait blocks until a slot is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pricing: rate limiter wait: %w", err)
	}
	return nil
}

// Allow reports whether a call may proceed immediately.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
