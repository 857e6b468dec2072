package crm

import (
	"context"
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// NewUser is the registration payload.
type NewUser struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Normalize trims the name and lower-cases the email, which is unique per user.
func (nu *NewUser) Normalize() {
	nu.Name = strings.TrimSpace(nu.Name)
	nu.Email = NormalizeEmail(nu.Email)
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type UserService interface {
	Register(ctx context.Context, nu NewUser) (User, error)
	Authenticate(ctx context.Context, cred Credentials) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}
