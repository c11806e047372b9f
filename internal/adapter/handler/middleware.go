package handler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/metrics"
)

const healthPath = "/api/v1/health"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request and records its latency by route template.
func LoggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			elapsed := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, route, rec.status, elapsed)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
			)
		})
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket keyed by remote address.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

// NewRateLimiter allows perMinute requests per client and minute. Zero disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{clients: make(map[string]*clientLimiter), lastSweep: time.Now()}
	if perMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(perMinute))
		rl.burst = perMinute
	}
	return rl
}

func (rl *RateLimiter) allow(client string) bool {
	if rl.burst == 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	// Stale entries are swept lazily instead of by a background goroutine
	if now.Sub(rl.lastSweep) > 5*time.Minute {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > 10*time.Minute {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.Allow()
}

// Middleware rejects clients over their budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthMiddleware accepts either the static API token or an HS256 JWT signed
// with jwtSecret as a Bearer token. The health check is always public. When
// neither secret is configured every request is allowed (development mode).
func AuthMiddleware(token, jwtSecret string, logger *zap.Logger) mux.MiddlewareFunc {
	if token == "" && jwtSecret == "" {
		logger.Warn("REST_API_AUTH_TOKEN and JWT_SECRET not set - auth disabled")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == healthPath || (token == "" && jwtSecret == "") {
				next.ServeHTTP(w, r)
				return
			}

			bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || bearer == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if token != "" && bearer == token {
				next.ServeHTTP(w, r)
				return
			}
			if jwtSecret != "" {
				err := verifyJWT(bearer, jwtSecret)
				if err == nil {
					next.ServeHTTP(w, r)
					return
				}
				logger.Debug("rejected bearer token", zap.Error(err))
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func verifyJWT(tokenStr, secret string) error {
	tok, err := jwt.Parse(tokenStr,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	if !tok.Valid {
		return errors.New("invalid token")
	}
	return nil
}
