package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig sets per-user token buckets for general API calls and
// for signing.
type RateLimiterConfig struct {
	GeneralRate     rate.Limit
	GeneralBurst    int
	SignRate        rate.Limit
	SignBurst       int
	CleanupInterval time.Duration
}

// PerMinute builds a config from requests-per-minute limits.
func PerMinute(general, sign int) RateLimiterConfig {
	if general <= 0 {
		general = 120
	}
	if sign <= 0 {
		sign = 20
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		SignRate:        rate.Limit(float64(sign) / 60.0),
		SignBurst:       sign,
		CleanupInterval: 5 * time.Minute,
	}
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*userLimiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{limit: limit, burst: burst, limiters: make(map[string]*userLimiter)}
}

func (s *limiterSet) get(userID string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ul, ok := s.limiters[userID]; ok {
		ul.lastAccess = now
		return ul.limiter
	}
	l := rate.NewLimiter(s.limit, s.burst)
	s.limiters[userID] = &userLimiter{limiter: l, lastAccess: now}
	return l
}

func (s *limiterSet) sweep(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ul := range s.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(s.limiters, id)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter keys buckets by the authenticated user id. It must run after
// Authenticate.
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	sign    *limiterSet
	logger  *slog.Logger
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter starts the bucket cleanup loop. A nil logger falls back to
// slog.Default.
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		config:  config,
		logger:  logger,
		general: newLimiterSet(config.GeneralRate, config.GeneralBurst),
		sign:    newLimiterSet(config.SignRate, config.SignBurst),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, rl.config.GeneralRate, "general")
}

// SignMiddleware applies the tighter signing limit.
func (rl *RateLimiter) SignMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.sign, rl.config.SignRate, "sign")
}

func (rl *RateLimiter) middleware(set *limiterSet, limit rate.Limit, kind string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal.Anonymous() {
				WriteError(w, ErrAuthenticationRequired)
				return
			}
			if !set.get(principal.ID, time.Now()).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limit)))
				WriteError(w, ErrRateLimited)
				rl.logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("user_id", principal.ID),
					slog.String("limit_type", kind),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.sweep(now, ttl)
	rl.sign.sweep(now, ttl)
}

func retryAfterSeconds(limit rate.Limit) int {
	if limit <= 0 {
		return 60
	}
	sec := int(math.Ceil(1.0 / float64(limit)))
	if sec < 1 {
		sec = 1
	}
	return sec
}
