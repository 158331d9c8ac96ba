package httpapi

import (
	"net/http"
	"sync"
	"time"

	"voicebill/pkg/logger"
	"voicebill/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimit throttles the public endpoints (register, login, funding
// webhook) per client IP. With Redis configured the limit is enforced
// cluster-wide via a fixed window counter; without it, a local token
// bucket per IP. A Redis failure fails open: billing correctness never
// depends on the limiter.
func RateLimit(rdb *redis.Client, name string, limit int, window time.Duration) gin.HandlerFunc {
	local := newLocalLimiter(limit, window)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed := true
		if rdb != nil {
			ok, err := utils.AllowFixedWindow(c.Request.Context(), rdb, "ratelimit:"+name+":"+ip, limit, window)
			if err != nil {
				logger.FromGin(c).Warn("rate limiter unavailable", "name", name, "err", err)
			} else {
				allowed = ok
			}
		} else {
			allowed = local.allow(ip)
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"code": "RATE_LIMITED", "message": "Too many requests, slow down"},
			})
			return
		}
		c.Next()
	}
}

// localLimiter is the in-process fallback: one token bucket per IP.
// Buckets are pruned lazily so the map cannot grow without bound.
type localLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	rate    rate.Limit
	burst   int
}

type localBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{
		buckets: make(map[string]*localBucket),
		rate:    rate.Every(window / time.Duration(limit)),
		burst:   limit,
	}
}

func (l *localLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[ip]
	if !ok {
		if len(l.buckets) > 10000 {
			l.prune(now)
		}
		b = &localBucket{lim: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim.Allow()
}

func (l *localLimiter) prune(now time.Time) {
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > 10*time.Minute {
			delete(l.buckets, ip)
		}
	}
}
