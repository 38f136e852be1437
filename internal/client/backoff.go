package client

import (
	"math/rand"
	"time"
)

// BackoffConfig controls the wait between dial attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Jitter scales each wait by a random factor in [0.5, 1.5).
	Jitter bool
}

// Delay returns the wait before retry n (1-based).
func (b BackoffConfig) Delay(n int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	mult := max(b.Multiplier, 1.0)
	wait := float64(b.InitialDelay)
	for i := 1; i < n; i++ {
		wait *= mult
		if b.MaxDelay > 0 && wait >= float64(b.MaxDelay) {
			wait = float64(b.MaxDelay)
			break
		}
	}
	if b.Jitter {
		scale := 0.5
		if rng != nil {
			scale += rng.Float64()
		}
		wait *= scale
	}
	return time.Duration(wait)
}
