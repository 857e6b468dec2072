package database

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigURL(t *testing.T) {
	cfg := Config{User: "crm", Password: "p@ss", Host: "db:5432", Name: "crm"}

	u, err := url.Parse(cfg.URL())
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/crm", u.Path)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss", pass)
	assert.Equal(t, "require", u.Query().Get("sslmode"))

	cfg.DisableTLS = true
	u, err = url.Parse(cfg.URL())
	require.NoError(t, err)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestStatusCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery(`SELECT true`).WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, StatusCheck(ctx, sqlx.NewDb(db, "sqlmock")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusCheck_RetriesUntilReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()
	mock.ExpectQuery(`SELECT true`).WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, StatusCheck(ctx, sqlx.NewDb(db, "sqlmock")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusCheck_GivesUpWhenContextEnds(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = StatusCheck(ctx, sqlx.NewDb(db, "sqlmock"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not ready")
}
