package database

import (
	"math"
	"time"
)

const maxShift = 62

// Backoff returns the delay before the next connection attempt after
// attempts consecutive failures: min(base * 2^attempts, max).
// A non-positive max disables the cap.
func Backoff(base, max time.Duration, attempts int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	} else if attempts > maxShift {
		attempts = maxShift
	}

	multiplier := int64(1) << attempts
	delay := time.Duration(math.MaxInt64)
	if int64(base) <= math.MaxInt64/multiplier {
		delay = time.Duration(int64(base) * multiplier)
	}

	if max > 0 && delay > max {
		return max
	}
	return delay
}
