package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phbpx/crm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportSummary(t *testing.T) {
	db, mock := newMock(t)
	rs := NewReportService(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customers WHERE owner_id = \$1`).
		WithArgs(ownerA).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT l.status, (.+) GROUP BY l.status`).
		WithArgs(ownerA).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "value"}).
			AddRow("New", 3, 300.0).
			AddRow("Converted", 1, 900.0))
	mock.ExpectQuery(`SELECT c.id AS customer_id, (.+) GROUP BY c.id, c.name ORDER BY c.created_at DESC, c.id`).
		WithArgs(ownerA).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "name", "count", "value"}).
			AddRow(customer1, "Acme", 1, 900.0).
			AddRow(customer2, "Globex", 3, 300.0))

	summary, err := rs.Summary(context.Background(), ownerA)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalCustomers)
	assert.Equal(t, 4, summary.TotalLeads)
	assert.Equal(t, 1200.0, summary.TotalValue)
	assert.Equal(t, 25.0, summary.ConversionRate)
	assert.Equal(t, 75.0, summary.StatusBreakdown[crm.StatusNew].Percentage)
	assert.Equal(t, "Globex", summary.TopCustomersByLeads[0].Name)
	assert.Equal(t, "Acme", summary.TopCustomersByValue[0].Name)
}
