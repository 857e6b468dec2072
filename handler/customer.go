package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phbpx/crm"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

type CustomerHandler struct {
	service crm.CustomerService
	log     *otelzap.SugaredLogger
}

func NewCustomerHandler(service crm.CustomerService, log *otelzap.SugaredLogger) *CustomerHandler {
	return &CustomerHandler{
		service: service,
		log:     log,
	}
}

// Routes mounts the customer endpoints on r.
func (ch CustomerHandler) Routes(r chi.Router) {
	r.Get("/", ch.List)
	r.Post("/", ch.Create)
	r.Get("/{id}", ch.Get)
	r.Put("/{id}", ch.Update)
	r.Delete("/{id}", ch.Delete)
}

func (ch CustomerHandler) List(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := crm.CustomerFilter{
		Search: r.URL.Query().Get("search"),
		Page:   pageParams(r),
	}

	customers, total, err := ch.service.List(ctx, currentUser(r), filter)
	if err != nil {
		fail(ctx, rw, ch.log, "customer.List", err)
		return
	}

	pagination := crm.NewPagination(filter.Page, total)
	respond(ctx, rw, http.StatusOK, envelope{
		Success:    true,
		Data:       customers,
		Pagination: &pagination,
	})
}

func (ch CustomerHandler) Get(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customer, err := ch.service.Get(ctx, currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(ctx, rw, ch.log, "customer.Get", err)
		return
	}

	respondData(ctx, rw, http.StatusOK, customer)
}

func (ch CustomerHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var nc crm.NewCustomer
	if err := decode(r, &nc); err != nil {
		fail(ctx, rw, ch.log, "customer.Create", err)
		return
	}

	customer, err := ch.service.Create(ctx, currentUser(r), nc)
	if err != nil {
		fail(ctx, rw, ch.log, "customer.Create", err)
		return
	}

	ch.log.Ctx(ctx).Infow("customer.Create", "id", customer.ID, "owner", customer.OwnerID)
	respondData(ctx, rw, http.StatusCreated, customer)
}

func (ch CustomerHandler) Update(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var uc crm.UpdateCustomer
	if err := decode(r, &uc); err != nil {
		fail(ctx, rw, ch.log, "customer.Update", err)
		return
	}

	customer, err := ch.service.Update(ctx, currentUser(r), chi.URLParam(r, "id"), uc)
	if err != nil {
		fail(ctx, rw, ch.log, "customer.Update", err)
		return
	}

	respondData(ctx, rw, http.StatusOK, customer)
}

func (ch CustomerHandler) Delete(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	if err := ch.service.Delete(ctx, currentUser(r), id); err != nil {
		fail(ctx, rw, ch.log, "customer.Delete", err)
		return
	}

	ch.log.Ctx(ctx).Infow("customer.Delete", "id", id)
	respondMessage(ctx, rw, http.StatusOK, "Customer and associated leads deleted successfully")
}
