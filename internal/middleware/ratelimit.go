package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"discussable/internal/utils"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const limiterTableSize = 10000

// RateLimiter 按用户（匿名按 IP）限制写请求频率。
// 限流器放在 LRU 中，长时间不活跃的用户会被淘汰。
type RateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	l, _ := lru.New[string, *rate.Limiter](limiterTableSize)
	return &RateLimiter{limiters: l, rps: rate.Limit(rps), burst: burst}
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(r.rps, r.burst)
	r.limiters.Add(key, l)
	return l
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id := UserID(c); id != 0 {
			key = "user:" + strconv.FormatUint(uint64(id), 10)
		}
		if !r.limiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  utils.ErrTooManyRequests,
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
