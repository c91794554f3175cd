package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"encounter/internal/config"
)

// ContextRequestID clé de contexte de l'identifiant de requête
const ContextRequestID = "request_id"

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter gère un limiteur de taux par joueur
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter crée un limiteur; ActionsPerMinute à 0 désactive la limitation
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	limit := rate.Inf
	if cfg.ActionsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.ActionsPerMinute))
	}
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}

	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		idle:     cfg.CleanupInterval,
		stop:     make(chan struct{}),
	}
}

// Start lance le nettoyage périodique des limiteurs inactifs
func (rl *RateLimiter) Start() {
	if rl.idle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(rl.idle)
		defer ticker.Stop()

		for {
			select {
			case <-rl.stop:
				return
			case now := <-ticker.C:
				rl.cleanup(now)
			}
		}
	}()
}

// Stop arrête le nettoyage
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow consomme un jeton pour key
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	return allowed, int(entry.limiter.TokensAt(now))
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idle {
			delete(rl.limiters, key)
		}
	}
}

// RateLimit limite les actions par joueur, ou par IP sans authentification
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := PlayerID(c)
		if key == "" {
			key = c.ClientIP()
		}

		allowed, remaining := rl.Allow(key)
		if !allowed {
			logrus.WithFields(logrus.Fields{
				"client_id":  key,
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"request_id": c.GetString(ContextRequestID),
			}).Warn("Encounter rate limit exceeded")

			c.Header("X-Rate-Limit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"message":    "Too many encounter actions, please slow down",
				"request_id": c.GetString(ContextRequestID),
			})
			return
		}

		if remaining >= 0 {
			c.Header("X-Rate-Limit-Remaining", strconv.Itoa(remaining))
		}
		c.Next()
	}
}

// RequestID middleware pour générer un ID unique par requête
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header("X-Request-ID", requestID)
		c.Set(ContextRequestID, requestID)
		c.Next()
	}
}
