package scan

import (
	"context"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// ScanLimiter throttles candidate visits with a token bucket so a large
// universe scan cannot saturate disk I/O at process start. The limiter can be
// reconfigured at runtime without racing in-flight scans.
type ScanLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewScanLimiter creates a token bucket limiter allowing limit visits per
// second with the given burst.
func NewScanLimiter(limit int, burst int) *ScanLimiter {
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	if limiter == nil {
		return nil
	}
	self := &ScanLimiter{}
	self.limiter.Store(limiter)
	return self
}

// Take blocks until a token is available.
func (l *ScanLimiter) Take() error {
	return l.limiter.Load().Wait(context.Background())
}

// Reload replaces the limiter configuration at runtime.
func (l *ScanLimiter) Reload(limit int, burst int) {
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	if limiter == nil {
		return
	}
	l.limiter.Store(limiter)
}

// FunnelScanLimiter throttles candidate visits with a leaky bucket, giving a
// smoother pacing than the token bucket at the cost of burst tolerance.
type FunnelScanLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelScanLimiter creates a leaky bucket limiter allowing limit visits
// per second.
func NewFunnelScanLimiter(limit int) *FunnelScanLimiter {
	limiter := ratelimit.New(limit)
	if limiter == nil {
		return nil
	}
	self := &FunnelScanLimiter{}
	self.limiter.Store(&limiter)
	return self
}

// Take blocks until the pace allows the next visit.
func (l *FunnelScanLimiter) Take() {
	_ = (*l.limiter.Load()).Take()
}

// Reload replaces the limiter configuration at runtime.
func (l *FunnelScanLimiter) Reload(limit int) {
	limiter := ratelimit.New(limit)
	if limiter == nil {
		return
	}
	l.limiter.Store(&limiter)
}
