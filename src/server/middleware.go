package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	app "silkyroad/src/app"
	db "silkyroad/src/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	identityKey     = "identity"
	loggerKey       = "logger"
)

var (
	registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "silkyroad",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "silkyroad",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "silkyroad",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		},
		[]string{"route"},
	)
)

func init() {
	registry.MustRegister(
		httpRequests,
		httpDuration,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// instrument records request count and latency per route template.
func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if route == "/metrics" {
			return
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// requestLogger tags each request with an id and logs it once it completes.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Set(loggerKey, log.WithField("request_id", id))
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	log      logrus.FieldLogger
}

func NewRateLimiter(perMinute, burst int, log logrus.FieldLogger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		// Bound memory; a reset only forgives clients.
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.limiter(key).Allow() {
			rateLimited.WithLabelValues(c.FullPath()).Inc()
			rl.log.WithFields(logrus.Fields{"client_ip": key, "path": c.Request.URL.Path}).Warn("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later."})
			return
		}
		c.Next()
	}
}

// sessionReader resolves the caller's identity from a bearer token or the
// access-token cookie. Resolution is lazy so that rejected requests never
// reach the auth store.
type sessionReader struct {
	verifier   db.AuthDB
	cookieName string
}

func newSessionReader(verifier db.AuthDB, cookieName string) *sessionReader {
	return &sessionReader{verifier: verifier, cookieName: cookieName}
}

func (s *sessionReader) token(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	cookie, err := c.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return cookie
}

// identity returns the verified caller, or an error wrapping app.ErrUnauthenticated.
func (s *sessionReader) identity(c *gin.Context) (*app.Identity, error) {
	if cached, ok := c.Get(identityKey); ok {
		return cached.(*app.Identity), nil
	}
	token := s.token(c)
	if token == "" || s.verifier == nil {
		return nil, app.ErrUnauthenticated
	}
	identity, err := s.verifier.VerifyUser(c.Request.Context(), token)
	if err != nil {
		return nil, err
	}
	c.Set(identityKey, identity)
	return identity, nil
}

// optional returns the caller, or nil for anonymous or invalid sessions.
func (s *sessionReader) optional(c *gin.Context) *app.Identity {
	identity, err := s.identity(c)
	if err != nil {
		return nil
	}
	return identity
}

func (s *sessionReader) require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.identity(c); err != nil {
			abortWithError(c, err, http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
