package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
)

const (
	HeaderAPIKey       = "X-API-Key"
	HeaderClientKey    = "X-Client-Key"
	HeaderClientSecret = "X-Client-Secret"
	HeaderRequestID    = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxPrincipal = "principal"
)

var errAuthUnavailable = errors.New("credential authority not configured")

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("client_ip", c.ClientIP()),
		}
		if p, ok := principalFrom(c); ok {
			fields = append(fields, zap.String("username", p.Username))
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func CORS(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		if allowAll {
			h.Set("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type,"+HeaderAPIKey+","+HeaderClientKey+","+HeaderClientSecret+","+HeaderRequestID)
		h.Set("Access-Control-Expose-Headers", HeaderRequestID+",Retry-After")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Timeout bounds every downstream store call through the request context.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// Guard authenticates requests and applies per-tier rate limits.
type Guard struct {
	Auth    *auth.Authority
	Limiter ratelimit.Limiter
	Rules   map[string]ratelimit.Rule
	Logger  *zap.Logger
}

// Authenticate verifies the credential headers and, when schemes are given,
// requires the principal to have used one of them.
func (g *Guard) Authenticate(schemes ...auth.Scheme) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g == nil || g.Auth == nil {
			Error(c, apperr.Internal("authenticate", errAuthUnavailable))
			return
		}
		p, err := g.Auth.Verify(c.Request.Context(), auth.Headers{
			APIKey:       c.GetHeader(HeaderAPIKey),
			ClientKey:    c.GetHeader(HeaderClientKey),
			ClientSecret: c.GetHeader(HeaderClientSecret),
		})
		if err != nil {
			Error(c, err)
			return
		}
		if len(schemes) > 0 {
			if err := auth.RequireScheme(p, schemes...); err != nil {
				Error(c, err)
				return
			}
		}
		c.Set(ctxPrincipal, p)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// Limit applies the named tier, keyed by principal when authenticated and by
// client IP otherwise. Limiter failures let the request through.
func (g *Guard) Limit(tier string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g == nil || g.Limiter == nil {
			c.Next()
			return
		}
		rule, ok := g.Rules[tier]
		if !ok || !rule.Enabled() {
			c.Next()
			return
		}
		key := tier + ":ip:" + c.ClientIP()
		if p, ok := principalFrom(c); ok {
			key = tier + ":user:" + p.Username
		}
		d, err := g.Limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			if g.Logger != nil {
				g.Logger.Warn("rate limiter unavailable", zap.String("tier", tier), zap.Error(err))
			}
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			Error(c, apperr.RateLimited(int((d.RetryAfter + time.Second - 1) / time.Second)))
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// mustPrincipal is only used behind Authenticate.
func mustPrincipal(c *gin.Context) auth.Principal {
	p, _ := principalFrom(c)
	return p
}
