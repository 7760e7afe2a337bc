package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// ChannelLimiters holds one token bucket per delivery channel, protecting
// provider quotas (SES sending rate, SNS SMS throughput, push service
// throttling) across all workers in the process.
// Burst equals the rate so no capacity is saved up beyond one second's worth.
type ChannelLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// New creates a limiter per channel from per-second rates. A channel with a
// rate of zero or below, or absent from rates, is not limited.
func New(rates map[domain.Channel]int) *ChannelLimiters {
	limiters := make(map[domain.Channel]*rate.Limiter, len(rates))
	for ch, perSec := range rates {
		if perSec <= 0 {
			continue
		}
		limiters[ch] = rate.NewLimiter(rate.Limit(perSec), perSec)
	}
	return &ChannelLimiters{limiters: limiters}
}

// Wait blocks until the channel's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	l, ok := cl.limiters[ch]
	if !ok {
		return ctx.Err()
	}
	return l.Wait(ctx)
}
