package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hums/backend/pkg/redis"
	"hums/backend/pkg/response"
)

// localLimiter 进程内令牌桶，按 key 保存，闲置一段时间后由 go-cache 清理
type localLimiter struct {
	limiters *cache.Cache
	r        rate.Limit
	b        int
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{
		limiters: cache.New(2*window, 4*window),
		r:        rate.Limit(float64(limit) / window.Seconds()),
		b:        limit,
	}
}

func (l *localLimiter) allow(key string) bool {
	if v, ok := l.limiters.Get(key); ok {
		l.limiters.SetDefault(key, v)
		return v.(*rate.Limiter).Allow()
	}
	limiter := rate.NewLimiter(l.r, l.b)
	// 并发首次访问时以先写入者为准
	if err := l.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter).Allow()
		}
	}
	return limiter.Allow()
}

// RateLimit 速率限制中间件
// limit: 窗口内允许的最大请求数
// window: 滑动窗口时长
// 优先使用 Redis 滑动窗口（多实例共享）；rdb 为 nil 或 Redis 出错时退化为进程内令牌桶。
// 已认证请求按用户计数，否则按 IP
func RateLimit(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	fallback := newLocalLimiter(limit, window)

	return func(c *gin.Context) {
		subject := c.ClientIP()
		if uid := c.GetString("user_id"); uid != "" {
			subject = uid
		}
		key := fmt.Sprintf("hums:rate_limit:%s:%s", subject, c.FullPath())

		var allowed bool
		if rdb != nil {
			ok, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
			if err != nil {
				logger.Warn("Redis 限流失败，使用本地限流", zap.Error(err))
				allowed = fallback.allow(key)
			} else {
				allowed = ok
			}
		} else {
			allowed = fallback.allow(key)
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
