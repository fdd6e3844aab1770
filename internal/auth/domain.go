package auth

import (
	"time"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
)

// User represents an authenticated user account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         authz.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
