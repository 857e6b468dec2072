package handler

import (
	"net/http"
	"time"

	"github.com/phbpx/crm"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

type ReportHandler struct {
	service crm.ReportService
	log     *otelzap.SugaredLogger
}

func NewReportHandler(service crm.ReportService, log *otelzap.SugaredLogger) *ReportHandler {
	return &ReportHandler{
		service: service,
		log:     log,
	}
}

func (rh ReportHandler) Summary(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := rh.service.Summary(ctx, currentUser(r))
	if err != nil {
		fail(ctx, rw, rh.log, "report.Summary", err)
		return
	}

	respondData(ctx, rw, http.StatusOK, summary)
}

type health struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// Health reports liveness. It never touches the database.
func Health(env string, now func() time.Time) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		respond(r.Context(), rw, http.StatusOK, health{
			Success:     true,
			Message:     "CRM API is running",
			Timestamp:   now().UTC(),
			Environment: env,
		})
	}
}

type index struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Index lists the API entry points.
func Index(version string) http.HandlerFunc {
	body := index{
		Success: true,
		Message: "Welcome to the CRM API",
		Version: version,
		Endpoints: map[string]string{
			"auth":      "/api/auth",
			"customers": "/api/customers",
			"leads":     "/api/leads",
			"reports":   "/api/reports",
			"health":    "/api/health",
		},
	}
	return func(rw http.ResponseWriter, r *http.Request) {
		respond(r.Context(), rw, http.StatusOK, body)
	}
}
