package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phbpx/crm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// Config wires the services and the HTTP policy into the router.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	Log         *otelzap.SugaredLogger

	Users     crm.UserService
	Customers crm.CustomerService
	Leads     crm.LeadService
	Reports   crm.ReportService
	Tokens    interface {
		TokenIssuer
		TokenVerifier
	}

	AllowedOrigins  []string
	RequestTimeout  time.Duration
	MaxBodyBytes    int64
	RateLimit       int
	RateLimitWindow time.Duration
	RateLimitBurst  int

	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// prometheus default registry.
	Registry *prometheus.Registry
}

// API builds the router for the whole CRM API.
func API(cfg Config) http.Handler {
	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if cfg.Registry != nil {
		reg, gatherer = cfg.Registry, cfg.Registry
	}

	metrics := NewMetrics(reg)
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow, cfg.RateLimitBurst)

	authHandler := NewAuthHandler(cfg.Users, cfg.Tokens, cfg.Log)
	customerHandler := NewCustomerHandler(cfg.Customers, cfg.Log)
	leadHandler := NewLeadHandler(cfg.Leads, cfg.Log)
	reportHandler := NewReportHandler(cfg.Reports, cfg.Log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(cfg.ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(metrics.Handler)
	r.Use(SecureHeaders)
	r.Use(CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(MaxBytes(cfg.MaxBodyBytes))
	}

	r.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		respondMessage(r.Context(), rw, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path))
	})
	r.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		respondMessage(r.Context(), rw, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/", Index(cfg.Version))

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Handler)

		r.Get("/health", Health(cfg.Environment, time.Now))

		r.Route("/auth", func(r chi.Router) {
			authHandler.Routes(r)
			r.With(Authenticate(cfg.Tokens)).Get("/me", authHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.Tokens))

			r.Route("/customers", customerHandler.Routes)
			r.Route("/leads", leadHandler.Routes)
			r.Get("/reports/summary", reportHandler.Summary)
		})
	})

	return r
}
