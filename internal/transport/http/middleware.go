package http

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/duo-ledger/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChatIDHeader carries the caller's chat id.
const ChatIDHeader = "X-Chat-ID"

// LoggingMiddleware prints request/response metrics.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"chat", c.GetHeader(ChatIDHeader),
			"latency", time.Since(start),
		)
	}
}

// RateLimitMiddleware simple token bucket per IP.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)
	newLimiter := func() *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), burst) }
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		mu.Lock()
		lim, ok := buckets[ip]
		if !ok {
			lim = newLimiter()
			buckets[ip] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// AllowListMiddleware only admits the configured chats. A request on a
// session must come from that session's own chat.
func AllowListMiddleware(allowed func(chatID string) bool, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		chat := c.GetHeader(ChatIDHeader)
		if !allowed(chat) {
			log.Warnw("rejected chat", "chat", chat, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "chat is not allowed"})
			return
		}
		if id := c.Param("id"); id != "" && id != chat {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "session belongs to another chat"})
			return
		}
		c.Next()
	}
}

// MetricsMiddleware counts requests per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
