package handler

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/phbpx/crm/auth"
	"golang.org/x/time/rate"
)

// TokenVerifier resolves a bearer token to the user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// authenticated user id in the request context.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := bearerToken(r)
			if !ok {
				respondErr(ctx, rw, http.StatusUnauthorized, auth.ErrMissingToken)
				return
			}

			userID, err := v.Verify(token)
			if err != nil {
				respondErr(ctx, rw, http.StatusUnauthorized, auth.ErrInvalidToken)
				return
			}

			next.ServeHTTP(rw, r.WithContext(auth.WithUserID(ctx, userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// currentUser returns the id set by Authenticate. Routes that call it are
// always mounted behind that middleware.
func currentUser(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// CORS echoes allowed origins back with credentials enabled and answers
// preflight requests directly.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := map[string]struct{}{}
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		allow[origin] = struct{}{}
	}

	const (
		allowedHeaders = "Content-Type, Authorization"
		allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			_, allowed := allow[origin]
			if origin != "" && allowed {
				rw.Header().Set("Access-Control-Allow-Origin", origin)
				rw.Header().Add("Vary", "Origin")
				rw.Header().Set("Access-Control-Allow-Credentials", "true")
				rw.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				rw.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				rw.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				rw.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(rw, r)
		})
	}
}

// SecureHeaders sets the response headers browsers use to lock down an API.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		h := rw.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		next.ServeHTTP(rw, r)
	})
}

// MaxBytes caps the size of request bodies. decode reports an oversize body
// as 413.
func MaxBytes(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(rw, r.Body, n)
			}
			next.ServeHTTP(rw, r)
		})
	}
}

var errTooManyRequests = errors.New("too many requests from this IP, please try again later")

// RateLimiter hands out one token bucket per client IP. Requests refill at
// requests/window with the given burst.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*client
	swept   time.Time
}

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewRateLimiter(requests int, window time.Duration, burst int) *RateLimiter {
	if burst < 1 {
		burst = requests
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   burst,
		ttl:     window,
		now:     time.Now,
		clients: map[string]*client{},
	}
}

// Allow reports whether ip may make a request now.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.seen = now
	return c.limiter.AllowN(now, 1)
}

// sweep drops clients idle for longer than a window. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.swept) < rl.ttl {
		return
	}
	for ip, c := range rl.clients {
		if now.Sub(c.seen) > rl.ttl {
			delete(rl.clients, ip)
		}
	}
	rl.swept = now
}

// Handler answers 429 once the client IP has used up its budget. It expects
// RealIP to have already rewritten RemoteAddr.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			respondErr(r.Context(), rw, http.StatusTooManyRequests, errTooManyRequests)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var _ TokenVerifier = (*auth.Authenticator)(nil)
