// Package ratelimit gates per-device ingestion throughput with token
// buckets. Buckets live only in memory: a restart resets quotas, which is a
// documented degradation, not data loss.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter maintains one token bucket per device. Capacity equals the hourly
// event limit and refills at capacity/hour; refill is lazy, computed from
// elapsed time on each call. Buckets for different devices never contend;
// calls for the same device serialize on the bucket's own lock.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	perHour int
}

// New creates a limiter granting each device perHour events per hour.
func New(perHour int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		perHour: perHour,
	}
}

// Allow reports whether the device may submit one event at the given
// instant, consuming a token when it may. On rejection it returns the wait
// until the next token, suitable for a Retry-After hint. Rejection is a
// normal return value, never an error.
func (l *Limiter) Allow(deviceID string, now time.Time) (bool, time.Duration) {
	if deviceID == "" {
		return false, 0
	}

	bucket := l.bucket(deviceID)

	r := bucket.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Forget drops the device's bucket. Called when a device is revoked so its
// state does not linger in memory.
func (l *Limiter) Forget(deviceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, deviceID)
}

func (l *Limiter) bucket(deviceID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[deviceID]
	if !ok {
		b = rate.NewLimiter(rate.Limit(float64(l.perHour)/3600.0), l.perHour)
		l.buckets[deviceID] = b
	}
	return b
}
