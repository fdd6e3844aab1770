package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// Repository defines persistence operations for user management.
type Repository interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (*Detail, error)
	UpdateRole(ctx context.Context, id string, role authz.Role) error
	SetActive(ctx context.Context, id string, active bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListUsers returns every profile. Ordering is left to the service,
// which sorts by collated display name.
func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, display_name, role, is_active, created_at, updated_at FROM profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var (
			u       User
			rawRole string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &rawRole, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = authz.ParseRole(rawRole)
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUser fetches a single profile together with its explicit grants.
func (r *PGRepository) GetUser(ctx context.Context, id string) (*Detail, error) {
	var (
		detail  Detail
		rawRole string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, role, is_active, created_at, updated_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&detail.ID, &detail.Email, &detail.DisplayName, &rawRole, &detail.IsActive, &detail.CreatedAt, &detail.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	detail.Role = authz.ParseRole(rawRole)

	rows, err := r.pool.Query(ctx,
		`SELECT permission FROM user_permissions WHERE user_id = $1 ORDER BY permission`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		detail.Grants = append(detail.Grants, key)
	}
	return &detail, rows.Err()
}

// UpdateRole changes the profile role.
func (r *PGRepository) UpdateRole(ctx context.Context, id string, role authz.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive toggles the active flag on a profile.
func (r *PGRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
