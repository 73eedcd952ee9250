package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit puts a single token bucket in front of the routes it wraps.
// Every dashboard hit fans out to paid upstream APIs, so the bucket is
// global rather than per client. rps == 0 disables limiting.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		r := limiter.Reserve()
		if !r.OK() {
			tooMany(c, time.Second)
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			tooMany(c, delay)
			return
		}
		c.Next()
	}
}

func tooMany(c *gin.Context, retryAfter time.Duration) {
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":     "too many requests",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
