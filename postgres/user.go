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
	"github.com/phbpx/crm/auth"
)

const userColumns = `id, name, email, password_hash, created_at, updated_at`

type UserService struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{
		db:  db,
		now: time.Now,
	}
}

// Register creates a user with a bcrypt hash of the supplied password.
func (us *UserService) Register(ctx context.Context, nu crm.NewUser) (crm.User, error) {
	nu.Normalize()
	if err := crm.Validate(nu); err != nil {
		return crm.User{}, err
	}

	hash, err := auth.HashPassword(nu.Password)
	if err != nil {
		return crm.User{}, err
	}

	now := us.now().UTC().Truncate(time.Microsecond)
	user := crm.User{
		ID:           uuid.NewString(),
		Name:         nu.Name,
		Email:        nu.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
	INSERT INTO users (
		id, name, email, password_hash, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6
	)`

	_, err = us.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return crm.User{}, crm.ErrEmailInUse
		}
		return crm.User{}, fmt.Errorf("inserting user: %w", err)
	}

	return user, nil
}

// Authenticate returns the user matching the credentials. An unknown email
// and a wrong password are indistinguishable to the caller.
func (us *UserService) Authenticate(ctx context.Context, cred crm.Credentials) (crm.User, error) {
	cred.Email = crm.NormalizeEmail(cred.Email)
	if err := crm.Validate(cred); err != nil {
		return crm.User{}, err
	}

	var user crm.User
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	if err := us.db.GetContext(ctx, &user, query, cred.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.User{}, crm.ErrInvalidCredentials
		}
		return crm.User{}, fmt.Errorf("selecting user: %w", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, cred.Password)
	if err != nil {
		return crm.User{}, fmt.Errorf("checking password: %w", err)
	}
	if !ok {
		return crm.User{}, crm.ErrInvalidCredentials
	}

	return user, nil
}

func (us *UserService) GetByID(ctx context.Context, id string) (crm.User, error) {
	if !validID(id) {
		return crm.User{}, crm.ErrUserNotFound
	}

	var user crm.User
	if err := us.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.User{}, crm.ErrUserNotFound
		}
		return crm.User{}, fmt.Errorf("selecting user: %w", err)
	}
	return user, nil
}
