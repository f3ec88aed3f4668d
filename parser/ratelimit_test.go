package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSpacesCalls(t *testing.T) {
	limiter := NewRateLimiter(20 * time.Millisecond)
	defer limiter.Stop()

	start := time.Now()
	for i := 0; i < 3; i++ {
		limiter.Wait()
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
