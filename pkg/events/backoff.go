// Copyright 2024-2026 Aiku AI

package events

import (
	"math/rand/v2"
	"time"
)

const maxBackoffExponent = 16

// DefaultRetryDelay waits (2^failures - 1) seconds with ±20% jitter, so the
// first retry after a single drop is immediate.
func DefaultRetryDelay(failures int) time.Duration {
	if failures < 0 {
		failures = 0
	}
	if failures > maxBackoffExponent {
		failures = maxBackoffExponent
	}
	base := float64(uint64(1)<<failures-1) * float64(time.Second)
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(base * jitter)
}
