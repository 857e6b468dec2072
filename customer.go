package crm

import (
	"context"
	"strings"
	"time"
)

// Customer is a contact record owned by exactly one user. OwnerID is bound at
// creation and never changes.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Company   string    `json:"company" db:"company"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Leads is only populated when a single customer is fetched.
	Leads []Lead `json:"leads,omitempty" db:"-"`
}

// Summary returns the projection embedded in expanded leads.
func (c Customer) Summary() *CustomerSummary {
	return &CustomerSummary{
		ID:      c.ID,
		Name:    c.Name,
		Email:   c.Email,
		Company: c.Company,
	}
}

type NewCustomer struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email,max=100"`
	Phone   string `json:"phone" validate:"required,min=10,max=20"`
	Company string `json:"company" validate:"required,min=2,max=100"`
}

func (nc *NewCustomer) Normalize() {
	nc.Name = strings.TrimSpace(nc.Name)
	nc.Email = strings.TrimSpace(nc.Email)
	nc.Phone = strings.TrimSpace(nc.Phone)
	nc.Company = strings.TrimSpace(nc.Company)
}

// UpdateCustomer is a partial update; nil fields are left untouched.
type UpdateCustomer struct {
	Name    *string `json:"name" validate:"omitnil,min=2,max=100"`
	Email   *string `json:"email" validate:"omitnil,email,max=100"`
	Phone   *string `json:"phone" validate:"omitnil,min=10,max=20"`
	Company *string `json:"company" validate:"omitnil,min=2,max=100"`
}

func (uc *UpdateCustomer) Normalize() {
	trimPtr(uc.Name)
	trimPtr(uc.Email)
	trimPtr(uc.Phone)
	trimPtr(uc.Company)
}

// CustomerFilter narrows a customer listing. Search matches name, email or
// company as a case-insensitive substring; empty means no filter.
type CustomerFilter struct {
	Search string
	Page
}

// CustomerService manages customers on behalf of ownerID. A customer that
// exists but belongs to someone else is reported as ErrCustomerNotFound.
type CustomerService interface {
	List(ctx context.Context, ownerID string, filter CustomerFilter) ([]Customer, int, error)
	Get(ctx context.Context, ownerID, id string) (Customer, error)
	Create(ctx context.Context, ownerID string, nc NewCustomer) (Customer, error)
	Update(ctx context.Context, ownerID, id string, uc UpdateCustomer) (Customer, error)
	Delete(ctx context.Context, ownerID, id string) error
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
