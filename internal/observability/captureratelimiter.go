package observability

import (
	"hash/fnv"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// CaptureRateLimiter limits the rate at which messages are uploaded to
// Sentry.
//
// The last capture time of every message is tracked by message hash, and
// capturing is skipped for messages seen too recently. Memory usage is
// bounded by an LRU cache; if the cache is too small and too many distinct
// messages are captured frequently, repeats may still get through.
//
// A nil value lets all messages through.
type CaptureRateLimiter struct {
	cache       *lru.Cache
	minDuration time.Duration
}

// NewCaptureRateLimiter returns a CaptureRateLimiter using a cache of the
// given size and rate limiting each message to once per minDuration.
func NewCaptureRateLimiter(
	size int,
	minDuration time.Duration,
) (*CaptureRateLimiter, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &CaptureRateLimiter{cache, minDuration}, nil
}

// AllowCapture returns true if a message should be captured and if so,
// updates the message's last capture time to now.
func (rl *CaptureRateLimiter) AllowCapture(msg string) bool {
	if rl == nil {
		return true
	}

	h := fnv.New64a()
	h.Write([]byte(msg))
	key := h.Sum64()

	lastSent, inCache := rl.cache.Get(key)

	now := time.Now()
	if inCache && now.Sub(lastSent.(time.Time)) < rl.minDuration {
		return false
	}

	rl.cache.Add(key, now)
	return true
}
