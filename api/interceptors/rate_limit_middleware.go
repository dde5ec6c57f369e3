package interceptors

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis_rate/v10"
	"github.com/mailio/go-keyless-server/global"
)

type routeLimit struct {
	path  *regexp.Regexp
	class string
	limit redis_rate.Limit
}

// first match wins, everything else gets defaultLimit
var routeLimits = []routeLimit{
	{regexp.MustCompile("^/api/v[0-9]+/auth/(login|callback)$"), "auth", redis_rate.PerSecond(1)},
	{regexp.MustCompile("^/api/v[0-9]+/transactions$"), "tx", redis_rate.PerMinute(30)},
	{regexp.MustCompile("^/api/v[0-9]+/media"), "media", redis_rate.PerMinute(20)},
	{regexp.MustCompile("^/api/v[0-9]+/communities$"), "community", redis_rate.PerMinute(10)},
}

var defaultLimit = routeLimit{class: "api", limit: redis_rate.PerSecond(5)}

func limitFor(method, path string) routeLimit {
	if method == http.MethodGet && !strings.HasSuffix(path, "/auth/login") {
		return defaultLimit
	}
	for _, rl := range routeLimits {
		if rl.path.MatchString(path) {
			return rl
		}
	}
	return defaultLimit
}

// client fingerprint: ip, browser headers and cookies
func fingerprint(c *gin.Context) uint64 {
	ip, ipErr := getIP(c)
	if ipErr != nil || ip == nil {
		unkn := "unknown"
		ip = &unkn
	}
	var sb strings.Builder
	sb.WriteString(*ip)
	sb.WriteString(c.GetHeader("User-Agent"))
	sb.WriteString(c.GetHeader("Accept-Language"))
	sb.WriteString(c.GetHeader("Referer"))
	for _, cookie := range c.Request.Cookies() {
		sb.WriteString(cookie.Name)
		sb.WriteString(cookie.Value)
	}
	return xxhash.Sum64String(sb.String())
}

// RateLimitMiddleware limits requests per client fingerprint and route class (disabled without a limiter)
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if global.RateLimiter == nil {
			c.Next()
			return
		}
		rl := limitFor(c.Request.Method, c.Request.URL.Path)
		key := rl.class + ":" + strconv.FormatUint(fingerprint(c), 10)

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second*5)
		defer cancel()

		result, err := global.RateLimiter.Allow(ctx, key, rl.limit)
		if err != nil {
			level.Error(global.Logger).Log("msg", "rate limit check failed", "err", err)
			c.AbortWithError(http.StatusInternalServerError, errors.New("failed to perform rate limit check"))
			return
		}

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit.Rate))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Writer.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(result.ResetAfter.Milliseconds())))
		if result.Allowed <= 0 {
			c.Writer.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": http.StatusTooManyRequests, "message": "too many requests"})
			return
		}
		c.Next()
	}
}
