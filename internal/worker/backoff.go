package worker

import "time"

// Backoff computes retry delays: Base * 2^(attempts-1), capped at Max.
//
//	attempts 1 → Base      (default 30 s)
//	attempts 2 → 2 × Base  (default 60 s)
//	attempts 3 → 4 × Base  (default 120 s)
//	...
//	attempts N → Max once the doubling passes it
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the next run after the given number of
// failed attempts.
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := b.Base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= b.Max || d <= 0 {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
