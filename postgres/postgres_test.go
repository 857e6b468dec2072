package postgres

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/phbpx/crm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerA    = "0b5c1f3e-6a8d-4c1e-9f47-2f7d7a1c0a01"
	ownerB    = "0b5c1f3e-6a8d-4c1e-9f47-2f7d7a1c0b02"
	customer1 = "5f0e8a52-1d2c-4a57-8b11-6c2d9e3f1c01"
	customer2 = "5f0e8a52-1d2c-4a57-8b11-6c2d9e3f1c02"
	lead1     = "9a7d3c11-4b6e-4f20-a1d9-3e5b7c9d1e01"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func customerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "name", "email", "phone", "company", "created_at", "updated_at"})
}

func addCustomer(rows *sqlmock.Rows, id, owner, name string) *sqlmock.Rows {
	return rows.AddRow(id, owner, name, "jane@x.com", "5551234567", "Acme", fixedNow, fixedNow)
}

func leadRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "customer_id", "owner_id", "title", "description", "status", "value", "created_at", "updated_at"})
}

func addLead(rows *sqlmock.Rows, id, customerID, owner string, status crm.Status) *sqlmock.Rows {
	return rows.AddRow(id, customerID, owner, "Website redesign", "Full redesign of the marketing site", string(status), 1500.0, fixedNow, fixedNow)
}

func ptr[T any](v T) *T { return &v }

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%corp%", containsPattern("corp"))
	assert.Equal(t, `%50\%\_off\\%`, containsPattern(`50%_off\`))
}

func TestValidID(t *testing.T) {
	assert.True(t, validID(customer1))
	assert.False(t, validID("42"))
	assert.False(t, validID(""))
}
