package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/phbpx/crm"
	"github.com/phbpx/crm/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T) (*UserService, sqlmock.Sqlmock) {
	auth.HashCost = bcrypt.MinCost
	t.Cleanup(func() { auth.HashCost = bcrypt.DefaultCost })

	db, mock := newMock(t)
	us := NewUserService(db)
	us.now = func() time.Time { return fixedNow }
	return us, mock
}

func userRows(hash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "created_at", "updated_at"}).
		AddRow(ownerA, "Ada Lovelace", "ada@example.com", hash, fixedNow, fixedNow)
}

func TestUserRegister(t *testing.T) {
	us, mock := newUserService(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "Ada Lovelace", "ada@example.com", sqlmock.AnyArg(), fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := us.Register(context.Background(), crm.NewUser{Name: "Ada Lovelace", Email: " Ada@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	ok, err := auth.CheckPassword(user.PasswordHash, "hunter22")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserRegister_Duplicate(t *testing.T) {
	us, mock := newUserService(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := us.Register(context.Background(), crm.NewUser{Name: "Ada Lovelace", Email: "ada@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, crm.ErrEmailInUse)
}

func TestUserRegister_Invalid(t *testing.T) {
	us, _ := newUserService(t)

	_, err := us.Register(context.Background(), crm.NewUser{Name: "Ada", Email: "ada", Password: "123"})
	var verr crm.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
}

func TestUserAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		us, mock := newUserService(t)
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE lower\(email\) = \$1`).
			WithArgs("ada@example.com").
			WillReturnRows(userRows(string(hash)))

		user, err := us.Authenticate(context.Background(), crm.Credentials{Email: "ADA@example.com", Password: "hunter22"})
		require.NoError(t, err)
		assert.Equal(t, ownerA, user.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		us, mock := newUserService(t)
		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("ada@example.com").
			WillReturnRows(userRows(string(hash)))

		_, err := us.Authenticate(context.Background(), crm.Credentials{Email: "ada@example.com", Password: "nope"})
		assert.ErrorIs(t, err, crm.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		us, mock := newUserService(t)
		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("ghost@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := us.Authenticate(context.Background(), crm.Credentials{Email: "ghost@example.com", Password: "hunter22"})
		assert.ErrorIs(t, err, crm.ErrInvalidCredentials)
	})
}

func TestUserGetByID(t *testing.T) {
	us, mock := newUserService(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs(ownerA).
		WillReturnRows(userRows("hash"))

	user, err := us.GetByID(context.Background(), ownerA)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)

	_, err = us.GetByID(context.Background(), "bogus")
	assert.ErrorIs(t, err, crm.ErrUserNotFound)
}
