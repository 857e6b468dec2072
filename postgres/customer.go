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

const customerColumns = `id, owner_id, name, email, phone, company, created_at, updated_at`

type CustomerService struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewCustomerService(db *sqlx.DB) *CustomerService {
	return &CustomerService{
		db:  db,
		now: time.Now,
	}
}

// List returns one page of the owner's customers, newest first, and the
// number of customers matching the filter.
func (cs *CustomerService) List(ctx context.Context, ownerID string, filter crm.CustomerFilter) ([]crm.Customer, int, error) {
	page := filter.Page.Normalize()

	where := `owner_id = $1`
	args := []interface{}{ownerID}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		where += ` AND (name ILIKE $2 OR email ILIKE $2 OR company ILIKE $2)`
	}

	var total int
	if err := cs.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM customers WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("counting customers: %w", err)
	}

	query := fmt.Sprintf(`
	SELECT %s
	FROM customers
	WHERE %s
	ORDER BY created_at DESC, id DESC
	LIMIT $%d OFFSET $%d`, customerColumns, where, len(args)+1, len(args)+2)

	customers := []crm.Customer{}
	if err := cs.db.SelectContext(ctx, &customers, query, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("selecting customers: %w", err)
	}

	return customers, total, nil
}

// Get returns the owner's customer together with all of its leads.
func (cs *CustomerService) Get(ctx context.Context, ownerID, id string) (crm.Customer, error) {
	customer, err := ownedCustomer(ctx, cs.db, ownerID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Customer{}, crm.ErrCustomerNotFound
		}
		return crm.Customer{}, err
	}

	query := `
	SELECT ` + leadColumns + `
	FROM leads
	WHERE customer_id = $1
	ORDER BY created_at DESC, id DESC`

	leads := []crm.Lead{}
	if err := cs.db.SelectContext(ctx, &leads, query, customer.ID); err != nil {
		return crm.Customer{}, fmt.Errorf("selecting customer leads: %w", err)
	}
	customer.Leads = leads

	return customer, nil
}

// Create stores a new customer owned by ownerID.
func (cs *CustomerService) Create(ctx context.Context, ownerID string, nc crm.NewCustomer) (crm.Customer, error) {
	nc.Normalize()
	if err := crm.Validate(nc); err != nil {
		return crm.Customer{}, err
	}

	now := cs.now().UTC().Truncate(time.Microsecond)
	customer := crm.Customer{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		Email:     nc.Email,
		Phone:     nc.Phone,
		Company:   nc.Company,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
	INSERT INTO customers (
		id, owner_id, name, email, phone, company, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	)`

	_, err := cs.db.ExecContext(ctx, query,
		customer.ID,
		customer.OwnerID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Company,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if err != nil {
		return crm.Customer{}, fmt.Errorf("inserting customer: %w", err)
	}

	return customer, nil
}

// Update overwrites the fields set in uc on the owner's customer.
func (cs *CustomerService) Update(ctx context.Context, ownerID, id string, uc crm.UpdateCustomer) (crm.Customer, error) {
	uc.Normalize()
	if err := crm.Validate(uc); err != nil {
		return crm.Customer{}, err
	}
	if !validID(id) {
		return crm.Customer{}, crm.ErrCustomerNotFound
	}

	query := `
	UPDATE customers SET
		name = COALESCE($3, name),
		email = COALESCE($4, email),
		phone = COALESCE($5, phone),
		company = COALESCE($6, company),
		updated_at = $7
	WHERE id = $1 AND owner_id = $2
	RETURNING ` + customerColumns

	var customer crm.Customer
	err := cs.db.GetContext(ctx, &customer, query,
		id,
		ownerID,
		uc.Name,
		uc.Email,
		uc.Phone,
		uc.Company,
		cs.now().UTC().Truncate(time.Microsecond),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Customer{}, crm.ErrCustomerNotFound
		}
		return crm.Customer{}, fmt.Errorf("updating customer: %w", err)
	}

	return customer, nil
}

// Delete removes the owner's customer and every lead attached to it in one
// transaction. The customer row is locked first so no lead can be attached
// between the two deletes.
func (cs *CustomerService) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		return crm.ErrCustomerNotFound
	}

	tx, err := cs.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var found string
	err = tx.GetContext(ctx, &found, `SELECT id FROM customers WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.ErrCustomerNotFound
		}
		return fmt.Errorf("locking customer: %w", err)
	}

	// Leads go regardless of their own owner_id.
	if _, err := tx.ExecContext(ctx, `DELETE FROM leads WHERE customer_id = $1`, id); err != nil {
		return fmt.Errorf("deleting customer leads: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting customer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing customer delete: %w", err)
	}
	return nil
}

// ownedCustomer loads the customer matching both id and ownerID. A missing
// or foreign customer yields sql.ErrNoRows.
func ownedCustomer(ctx context.Context, q sqlx.QueryerContext, ownerID, id string) (crm.Customer, error) {
	if !validID(id) {
		return crm.Customer{}, sql.ErrNoRows
	}

	var customer crm.Customer
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND owner_id = $2`
	if err := sqlx.GetContext(ctx, q, &customer, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.Customer{}, err
		}
		return crm.Customer{}, fmt.Errorf("selecting customer: %w", err)
	}
	return customer, nil
}
