// Package crm holds the domain types shared by the storage and transport
// layers of the CRM API.
package crm

import (
	"errors"
	"math"
)

var (
	ErrCustomerNotFound         = errors.New("customer not found")
	ErrCustomerNotAuthorized    = errors.New("customer not found or not authorized")
	ErrNewCustomerNotAuthorized = errors.New("new customer not found or not authorized")
	ErrLeadNotFound             = errors.New("lead not found")
	ErrLeadForbidden            = errors.New("not authorized to access this lead")
	ErrEmailInUse               = errors.New("user already exists with this email")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrUserNotFound             = errors.New("user not found")
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to sane bounds: page and limit below one fall back
// to the first page and the default size, limit is capped at MaxPageSize.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset is the number of rows to skip for this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata returned alongside a list page.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination builds the pagination metadata for total matching rows.
func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Pagination{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
		Pages: pages,
	}
}
