package users

import (
	"time"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
)

// User represents a managed account as the admin surface sees it.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        authz.Role
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Detail is a user together with their explicit permission grants.
type Detail struct {
	User
	Grants []string
}
