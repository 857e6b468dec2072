package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phbpx/crm"
)

const leadColumns = `id, customer_id, owner_id, title, description, status, value, created_at, updated_at`

// leadRow is a lead joined with the projection of its customer.
type leadRow struct {
	crm.Lead
	CustomerName    string `db:"customer_name"`
	CustomerEmail   string `db:"customer_email"`
	CustomerCompany string `db:"customer_company"`
}

func (r leadRow) expand() crm.Lead {
	lead := r.Lead
	lead.Customer = &crm.CustomerSummary{
		ID:      r.CustomerID,
		Name:    r.CustomerName,
		Email:   r.CustomerEmail,
		Company: r.CustomerCompany,
	}
	return lead
}

type LeadService struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewLeadService(db *sqlx.DB) *LeadService {
	return &LeadService{
		db:  db,
		now: time.Now,
	}
}

// List returns one page of the leads attached to customers currently owned
// by ownerID, newest first, and the number of leads matching the filter.
func (ls *LeadService) List(ctx context.Context, ownerID string, filter crm.LeadFilter) ([]crm.Lead, int, error) {
	page := filter.Page.Normalize()

	where := `c.owner_id = $1`
	args := []interface{}{ownerID}
	if status := filter.StatusFilter(); status != "" {
		args = append(args, status)
		where += ` AND l.status = $2`
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM leads l JOIN customers c ON c.id = l.customer_id WHERE ` + where
	if err := ls.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("counting leads: %w", err)
	}

	query := fmt.Sprintf(`
	SELECT
		l.id, l.customer_id, l.owner_id, l.title, l.description, l.status, l.value, l.created_at, l.updated_at,
		c.name AS customer_name, c.email AS customer_email, c.company AS customer_company
	FROM leads l
	JOIN customers c ON c.id = l.customer_id
	WHERE %s
	ORDER BY l.created_at DESC, l.id DESC
	LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	var rows []leadRow
	if err := ls.db.SelectContext(ctx, &rows, query, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("selecting leads: %w", err)
	}

	leads := make([]crm.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.expand())
	}
	return leads, total, nil
}

// Get returns the lead expanded with its customer.
func (ls *LeadService) Get(ctx context.Context, ownerID, id string) (crm.Lead, error) {
	lead, customer, err := ls.authorize(ctx, ownerID, id)
	if err != nil {
		return crm.Lead{}, err
	}
	lead.Customer = customer.Summary()
	return lead, nil
}

// Create stores a new lead on one of the owner's customers.
func (ls *LeadService) Create(ctx context.Context, ownerID string, nl crm.NewLead) (crm.Lead, error) {
	nl.Normalize()
	if err := crm.Validate(nl); err != nil {
		return crm.Lead{}, err
	}

	customer, err := ownedCustomer(ctx, ls.db, ownerID, nl.CustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Lead{}, crm.ErrCustomerNotAuthorized
		}
		return crm.Lead{}, err
	}

	now := ls.now().UTC().Truncate(time.Microsecond)
	lead := crm.Lead{
		ID:          uuid.NewString(),
		CustomerID:  customer.ID,
		Customer:    customer.Summary(),
		Title:       nl.Title,
		Description: nl.Description,
		Status:      nl.Status,
		Value:       *nl.Value,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
	INSERT INTO leads (
		id, customer_id, owner_id, title, description, status, value, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9
	)`

	_, err = ls.db.ExecContext(ctx, query,
		lead.ID,
		lead.CustomerID,
		lead.OwnerID,
		lead.Title,
		lead.Description,
		lead.Status,
		lead.Value,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return crm.Lead{}, fmt.Errorf("inserting lead: %w", err)
	}

	return lead, nil
}

// Update overwrites the fields set in ul. Moving the lead to another customer
// requires that customer to belong to ownerID as well; otherwise nothing is
// written.
func (ls *LeadService) Update(ctx context.Context, ownerID, id string, ul crm.UpdateLead) (crm.Lead, error) {
	ul.Normalize()
	if err := crm.Validate(ul); err != nil {
		return crm.Lead{}, err
	}

	lead, customer, err := ls.authorize(ctx, ownerID, id)
	if err != nil {
		return crm.Lead{}, err
	}

	if ul.CustomerID != nil && *ul.CustomerID != lead.CustomerID {
		customer, err = ownedCustomer(ctx, ls.db, ownerID, *ul.CustomerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return crm.Lead{}, crm.ErrNewCustomerNotAuthorized
			}
			return crm.Lead{}, err
		}
	}

	query := `
	UPDATE leads SET
		customer_id = COALESCE($2, customer_id),
		title = COALESCE($3, title),
		description = COALESCE($4, description),
		status = COALESCE($5, status),
		value = COALESCE($6, value),
		updated_at = $7
	WHERE id = $1
	RETURNING ` + leadColumns

	var updated crm.Lead
	err = ls.db.GetContext(ctx, &updated, query,
		lead.ID,
		ul.CustomerID,
		ul.Title,
		ul.Description,
		ul.Status,
		ul.Value,
		ls.now().UTC().Truncate(time.Microsecond),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Lead{}, crm.ErrLeadNotFound
		}
		return crm.Lead{}, fmt.Errorf("updating lead: %w", err)
	}

	updated.Customer = customer.Summary()
	return updated, nil
}

// Delete removes a single lead.
func (ls *LeadService) Delete(ctx context.Context, ownerID, id string) error {
	lead, _, err := ls.authorize(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if _, err := ls.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, lead.ID); err != nil {
		return fmt.Errorf("deleting lead: %w", err)
	}
	return nil
}

// authorize loads the lead and its customer and checks that the customer is
// currently owned by ownerID. The owner_id copied onto the lead is ignored.
func (ls *LeadService) authorize(ctx context.Context, ownerID, id string) (crm.Lead, crm.Customer, error) {
	if !validID(id) {
		return crm.Lead{}, crm.Customer{}, crm.ErrLeadNotFound
	}

	var lead crm.Lead
	if err := ls.db.GetContext(ctx, &lead, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Lead{}, crm.Customer{}, crm.ErrLeadNotFound
		}
		return crm.Lead{}, crm.Customer{}, fmt.Errorf("selecting lead: %w", err)
	}

	var customer crm.Customer
	err := ls.db.GetContext(ctx, &customer, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, lead.CustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Lead{}, crm.Customer{}, crm.ErrLeadForbidden
		}
		return crm.Lead{}, crm.Customer{}, fmt.Errorf("selecting lead customer: %w", err)
	}
	if customer.OwnerID != ownerID {
		return crm.Lead{}, crm.Customer{}, crm.ErrLeadForbidden
	}

	return lead, customer, nil
}
