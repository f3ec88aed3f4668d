package parser

import (
	"time"
)

// RateLimiter spaces out sequential operations by a fixed interval. Used
// between page-image fetches so a chapter download never hammers a site.
//
//	limiter := parser.NewRateLimiter(500 * time.Millisecond)
//	defer limiter.Stop()
//	for _, url := range urls {
//	    limiter.Wait()
//	    // fetch url
//	}
type RateLimiter struct {
	ticker   *time.Ticker
	interval time.Duration
}

// NewRateLimiter creates a rate limiter with the given minimum interval
// between operations.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		ticker:   time.NewTicker(interval),
		interval: interval,
	}
}

// Wait blocks until the next tick. Call before each rate-limited operation.
func (rl *RateLimiter) Wait() {
	<-rl.ticker.C
}

// Stop releases the limiter's resources. Typically deferred.
func (rl *RateLimiter) Stop() {
	rl.ticker.Stop()
}
