package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/phbpx/crm"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	errInvalidBody  = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

// envelope is the body of every API response.
type envelope struct {
	Success    bool              `json:"success"`
	Data       interface{}       `json:"data,omitempty"`
	Pagination *crm.Pagination   `json:"pagination,omitempty"`
	Message    string            `json:"message,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func decode(r *http.Request, into interface{}) error {
	rawJson, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return errBodyTooLarge
		}
		return err
	}
	if err := json.Unmarshal(rawJson, into); err != nil {
		return errInvalidBody
	}
	return nil
}

func respond(ctx context.Context, rw http.ResponseWriter, status int, data interface{}) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "handler.respond")
	span.SetAttributes(attribute.Int("http.status", status))
	defer span.End()

	if status == http.StatusNoContent || data == nil {
		rw.WriteHeader(status)
		return
	}

	rawJson, err := json.Marshal(data)
	if err != nil {
		panic("respond-json-marshal:" + err.Error())
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	rw.Write(rawJson)
}

func respondData(ctx context.Context, rw http.ResponseWriter, status int, data interface{}) {
	respond(ctx, rw, status, envelope{Success: true, Data: data})
}

func respondMessage(ctx context.Context, rw http.ResponseWriter, status int, msg string) {
	respond(ctx, rw, status, envelope{Success: status < http.StatusBadRequest, Message: msg})
}

func respondErr(ctx context.Context, rw http.ResponseWriter, status int, err error) {
	respondMessage(ctx, rw, status, err.Error())
}

// fail maps err onto its HTTP status. Errors without a mapping are logged
// and reported as a generic 500 without the underlying detail.
func fail(ctx context.Context, rw http.ResponseWriter, log *otelzap.SugaredLogger, op string, err error) {
	var verr crm.ValidationError
	if errors.As(err, &verr) {
		respond(ctx, rw, http.StatusBadRequest, envelope{
			Message: verr.Error(),
			Errors:  verr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, crm.ErrEmailInUse):
		respondErr(ctx, rw, http.StatusBadRequest, err)

	case errors.Is(err, errBodyTooLarge):
		respondErr(ctx, rw, http.StatusRequestEntityTooLarge, err)

	case errors.Is(err, crm.ErrInvalidCredentials),
		errors.Is(err, crm.ErrUserNotFound):
		respondErr(ctx, rw, http.StatusUnauthorized, err)

	case errors.Is(err, crm.ErrLeadForbidden):
		respondErr(ctx, rw, http.StatusForbidden, err)

	case errors.Is(err, crm.ErrCustomerNotFound),
		errors.Is(err, crm.ErrCustomerNotAuthorized),
		errors.Is(err, crm.ErrNewCustomerNotAuthorized),
		errors.Is(err, crm.ErrLeadNotFound):
		respondErr(ctx, rw, http.StatusNotFound, err)

	default:
		log.Ctx(ctx).Errorw(op, "error", err.Error())
		respondMessage(ctx, rw, http.StatusInternalServerError, "internal server error")
	}
}

// pageParams reads the page and limit query parameters. Missing or
// malformed values fall back to the defaults.
func pageParams(r *http.Request) crm.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return crm.Page{Page: page, Limit: limit}.Normalize()
}
