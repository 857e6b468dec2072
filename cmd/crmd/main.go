package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/phbpx/crm/auth"
	"github.com/phbpx/crm/handler"
	"github.com/phbpx/crm/pkg/database"
	"github.com/phbpx/crm/postgres"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// build is set at link time with -ldflags "-X main.build=...".
var build = "develop"

func main() {

	log, err := newLog("crm-api")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run("crm-api", log); err != nil {
		log.Errorw("startup", "err", err)
		os.Exit(1)
	}
}

func run(serverName string, log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg := struct {
		Env string `conf:"default:development"`
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			RequestTimeout  time.Duration `conf:"default:30s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			Host            string        `conf:"default:0.0.0.0:5000"`
			CORSOrigins     []string      `conf:"default:http://localhost:3000;http://localhost:5173"`
			ClientURL       string
			MaxBodyBytes    int64         `conf:"default:10485760"`
			RateLimit       int           `conf:"default:1000"`
			RateLimitWindow time.Duration `conf:"default:15m"`
			RateLimitBurst  int           `conf:"default:0"`
		}
		Auth struct {
			JWTSecret string        `conf:"required,mask"`
			TokenTTL  time.Duration `conf:"default:720h"`
		}
		DB struct {
			User         string        `conf:"default:crm"`
			Password     string        `conf:"default:crm,mask"`
			Host         string        `conf:"default:localhost"`
			Name         string        `conf:"default:crm"`
			MaxIdleConns int           `conf:"default:0"`
			MaxOpenConns int           `conf:"default:0"`
			ConnLifetime time.Duration `conf:"default:30m"`
			DisableTLS   bool          `conf:"default:true"`
		}
		Jaeger struct {
			ReporterURI string  `conf:"default:http://localhost:14268/api/traces"`
			ServiceName string  `conf:"default:crm-api"`
			Probability float64 `conf:"default:0.5"`
		}
	}{}

	help, err := conf.Parse("CRM", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Database Support

	log.Infow("startup", "status", "initializing database support", "host", cfg.DB.Host)

	db, err := database.Open(database.Config{
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Host:            cfg.DB.Host,
		Name:            cfg.DB.Name,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		ConnMaxLifetime: cfg.DB.ConnLifetime,
		DisableTLS:      cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "stopping database support", "host", cfg.DB.Host)
		db.Close()
	}()

	// =========================================================================
	// Update database schema

	log.Infow("startup", "status", "updating database schema", "database", cfg.DB.Name, "host", cfg.DB.Host)

	if err := postgres.Migrate(context.Background(), db); err != nil {
		return fmt.Errorf("updating database schema: %w", err)
	}

	// =========================================================================
	// Start Tracing Support

	log.Infow("startup", "status", "initializing OT/Jaeger tracing support")

	traceProvider, err := startTracing(
		cfg.Jaeger.ServiceName,
		cfg.Jaeger.ReporterURI,
		cfg.Jaeger.Probability,
	)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer traceProvider.Shutdown(context.Background())

	// =========================================================================
	// Create router

	log.Infow("startup", "status", "initializing router")

	tokens, err := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	origins := cfg.Web.CORSOrigins
	if url := strings.TrimSpace(cfg.Web.ClientURL); url != "" {
		origins = append(origins, url)
	}

	otelLog := otelzap.New(log.Desugar(),
		otelzap.WithStackTrace(true),
		otelzap.WithTraceIDField(true),
	).Sugar()

	api := handler.API(handler.Config{
		ServiceName:     serverName,
		Version:         build,
		Environment:     cfg.Env,
		Log:             otelLog,
		Users:           postgres.NewUserService(db),
		Customers:       postgres.NewCustomerService(db),
		Leads:           postgres.NewLeadService(db),
		Reports:         postgres.NewReportService(db),
		Tokens:          tokens,
		AllowedOrigins:  origins,
		RequestTimeout:  cfg.Web.RequestTimeout,
		MaxBodyBytes:    cfg.Web.MaxBodyBytes,
		RateLimit:       cfg.Web.RateLimit,
		RateLimitWindow: cfg.Web.RateLimitWindow,
		RateLimitBurst:  cfg.Web.RateLimitBurst,
	})

	// =========================================================================
	// Start API Server

	log.Infow("startup", "status", "initializing http server", "host", cfg.Web.Host, "env", cfg.Env)

	server := &http.Server{
		Addr:         cfg.Web.Host,
		Handler:      api,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

func newLog(serviceName string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

func startTracing(serviceName, reporterURL string, probability float64) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(reporterURL)))
	if err != nil {
		return nil, fmt.Errorf("creating new exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(probability))),
		tracesdk.WithBatcher(exp,
			tracesdk.WithMaxExportBatchSize(tracesdk.DefaultMaxExportBatchSize),
			tracesdk.WithBatchTimeout(tracesdk.DefaultScheduleDelay*time.Millisecond),
		),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("exporter", "jaeger"),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}
