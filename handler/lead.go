package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phbpx/crm"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

type LeadHandler struct {
	service crm.LeadService
	log     *otelzap.SugaredLogger
}

func NewLeadHandler(service crm.LeadService, log *otelzap.SugaredLogger) *LeadHandler {
	return &LeadHandler{
		service: service,
		log:     log,
	}
}

// Routes mounts the lead endpoints on r.
func (lh LeadHandler) Routes(r chi.Router) {
	r.Get("/", lh.List)
	r.Post("/", lh.Create)
	r.Get("/{id}", lh.GetByID)
	r.Put("/{id}", lh.Update)
	r.Delete("/{id}", lh.Delete)
}

func (lh LeadHandler) List(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := crm.LeadFilter{
		Status: r.URL.Query().Get("status"),
		Page:   pageParams(r),
	}

	leads, total, err := lh.service.List(ctx, currentUser(r), filter)
	if err != nil {
		fail(ctx, rw, lh.log, "lead.List", err)
		return
	}

	pagination := crm.NewPagination(filter.Page, total)
	respond(ctx, rw, http.StatusOK, envelope{
		Success:    true,
		Data:       leads,
		Pagination: &pagination,
	})
}

func (lh LeadHandler) GetByID(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lead, err := lh.service.Get(ctx, currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(ctx, rw, lh.log, "lead.GetByID", err)
		return
	}

	respondData(ctx, rw, http.StatusOK, lead)
}

func (lh LeadHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var nl crm.NewLead
	if err := decode(r, &nl); err != nil {
		fail(ctx, rw, lh.log, "lead.Create", err)
		return
	}

	lead, err := lh.service.Create(ctx, currentUser(r), nl)
	if err != nil {
		fail(ctx, rw, lh.log, "lead.Create", err)
		return
	}

	lh.log.Ctx(ctx).Infow("lead.Create", "id", lead.ID, "customer", lead.CustomerID)
	respondData(ctx, rw, http.StatusCreated, lead)
}

func (lh LeadHandler) Update(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ul crm.UpdateLead
	if err := decode(r, &ul); err != nil {
		fail(ctx, rw, lh.log, "lead.Update", err)
		return
	}

	lead, err := lh.service.Update(ctx, currentUser(r), chi.URLParam(r, "id"), ul)
	if err != nil {
		fail(ctx, rw, lh.log, "lead.Update", err)
		return
	}

	respondData(ctx, rw, http.StatusOK, lead)
}

func (lh LeadHandler) Delete(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := lh.service.Delete(ctx, currentUser(r), chi.URLParam(r, "id")); err != nil {
		fail(ctx, rw, lh.log, "lead.Delete", err)
		return
	}

	respondMessage(ctx, rw, http.StatusOK, "Lead deleted successfully")
}
