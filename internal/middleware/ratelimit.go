package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"citymap/internal/logger"
)

// 文档注释：令牌桶限流中间件（每秒）
// 背景：点击请求会触发外部要素查询与缓存写入，峰值时在入口限速
// 约束：不做排队，超出即返回 429；探活与指标路径不计数
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 200
	}
	return &TokenBucket{capacity: qps, tokens: qps, now: time.Now}
}

func (tb *TokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimit：enabled 为 false 时原样返回 next
func RateLimit(enabled bool, qps int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		tb := NewTokenBucket(qps)
		return wrap(tb, next)
	}
}

func wrap(tb *TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !tb.allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path, "method", r.Method)
			w.Header().Set("retry-after", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func exempt(path string) bool {
	return strings.HasSuffix(path, "/healthz") || strings.HasSuffix(path, "/metrics")
}
