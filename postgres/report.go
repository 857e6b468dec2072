package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/phbpx/crm"
)

type ReportService struct {
	db *sqlx.DB
}

func NewReportService(db *sqlx.DB) *ReportService {
	return &ReportService{db: db}
}

// Summary aggregates the owner's pipeline. Leads are counted through their
// customer's current owner.
func (rs *ReportService) Summary(ctx context.Context, ownerID string) (crm.Summary, error) {
	var customers int
	if err := rs.db.GetContext(ctx, &customers, `SELECT COUNT(*) FROM customers WHERE owner_id = $1`, ownerID); err != nil {
		return crm.Summary{}, fmt.Errorf("counting customers: %w", err)
	}

	statusQuery := `
	SELECT l.status, COUNT(*) AS count, COALESCE(SUM(l.value), 0) AS value
	FROM leads l
	JOIN customers c ON c.id = l.customer_id
	WHERE c.owner_id = $1
	GROUP BY l.status`

	var statuses []crm.StatusTotal
	if err := rs.db.SelectContext(ctx, &statuses, statusQuery, ownerID); err != nil {
		return crm.Summary{}, fmt.Errorf("aggregating lead statuses: %w", err)
	}

	customerQuery := `
	SELECT c.id AS customer_id, c.name, COUNT(l.id) AS count, COALESCE(SUM(l.value), 0) AS value
	FROM customers c
	JOIN leads l ON l.customer_id = c.id
	WHERE c.owner_id = $1
	GROUP BY c.id, c.name
	ORDER BY c.created_at DESC, c.id`

	var totals []crm.CustomerTotal
	if err := rs.db.SelectContext(ctx, &totals, customerQuery, ownerID); err != nil {
		return crm.Summary{}, fmt.Errorf("aggregating customer leads: %w", err)
	}

	return crm.Summarize(customers, statuses, totals), nil
}
