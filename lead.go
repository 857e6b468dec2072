package crm

import (
	"context"
	"strings"
	"time"
)

// Status is the pipeline stage of a lead. Any status may move to any other.
type Status string

const (
	StatusNew       Status = "New"
	StatusContacted Status = "Contacted"
	StatusConverted Status = "Converted"
	StatusLost      Status = "Lost"
)

// Statuses lists every lead status in pipeline order.
var Statuses = []Status{StatusNew, StatusContacted, StatusConverted, StatusLost}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Lead is a sales opportunity attached to one customer.
//
// OwnerID is a copy of the customer's owner taken at creation time. Access
// checks always go through the customer's current owner instead.
type Lead struct {
	ID          string           `json:"id" db:"id"`
	CustomerID  string           `json:"customerId" db:"customer_id"`
	Customer    *CustomerSummary `json:"customer,omitempty" db:"-"`
	Title       string           `json:"title" db:"title"`
	Description string           `json:"description" db:"description"`
	Status      Status           `json:"status" db:"status"`
	Value       float64          `json:"value" db:"value"`
	OwnerID     string           `json:"ownerId" db:"owner_id"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// CustomerSummary is the customer projection embedded in expanded leads.
type CustomerSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

type NewLead struct {
	CustomerID  string   `json:"customerId" validate:"required,uuid"`
	Title       string   `json:"title" validate:"required,min=5,max=200"`
	Description string   `json:"description" validate:"required,min=10,max=1000"`
	Status      Status   `json:"status" validate:"omitempty,oneof=New Contacted Converted Lost"`
	Value       *float64 `json:"value" validate:"required,gte=0"`
}

// Normalize trims the title and applies the default status.
func (nl *NewLead) Normalize() {
	nl.CustomerID = strings.TrimSpace(nl.CustomerID)
	nl.Title = strings.TrimSpace(nl.Title)
	if nl.Status == "" {
		nl.Status = StatusNew
	}
}

// UpdateLead is a partial update; nil fields are left untouched. Setting
// CustomerID moves the lead to another customer of the same owner.
type UpdateLead struct {
	CustomerID  *string  `json:"customerId" validate:"omitnil,uuid"`
	Title       *string  `json:"title" validate:"omitnil,min=5,max=200"`
	Description *string  `json:"description" validate:"omitnil,min=10,max=1000"`
	Status      *Status  `json:"status" validate:"omitnil,oneof=New Contacted Converted Lost"`
	Value       *float64 `json:"value" validate:"omitnil,gte=0"`
}

func (ul *UpdateLead) Normalize() {
	trimPtr(ul.CustomerID)
	trimPtr(ul.Title)
}

// LeadFilter narrows a lead listing. An empty status or "all" means any.
type LeadFilter struct {
	Status string
	Page
}

// StatusFilter returns the status to filter on, or "" for no filter.
func (f LeadFilter) StatusFilter() Status {
	s := strings.TrimSpace(f.Status)
	if s == "" || strings.EqualFold(s, "all") {
		return ""
	}
	return Status(s)
}

// LeadService manages leads reachable through customers owned by ownerID.
//
// A lead that does not exist is ErrLeadNotFound. A lead whose customer is
// missing or owned by someone else is ErrLeadForbidden.
type LeadService interface {
	List(ctx context.Context, ownerID string, filter LeadFilter) ([]Lead, int, error)
	Get(ctx context.Context, ownerID, id string) (Lead, error)
	Create(ctx context.Context, ownerID string, nl NewLead) (Lead, error)
	Update(ctx context.Context, ownerID, id string, ul UpdateLead) (Lead, error)
	Delete(ctx context.Context, ownerID, id string) error
}
