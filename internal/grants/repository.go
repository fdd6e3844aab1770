package grants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/db"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
)

// Repository defines the permission-store operations consumed by the
// service layer. The relational schema behind it is an external
// contract; this layer only issues reads and row-level writes.
type Repository interface {
	FetchProfile(ctx context.Context, userID string) (Profile, error)
	FetchGrants(ctx context.Context, userID string) (map[string]struct{}, error)
	FetchAllGrants(ctx context.Context) (map[string][]string, error)
	FetchDefinitions(ctx context.Context) ([]authz.Definition, error)
	// InsertGrant adds one grant row. Inserting an already-held grant
	// is a no-op reported through the returned flag, not an error.
	InsertGrant(ctx context.Context, userID, key string) (bool, error)
	// DeleteGrant removes one grant row, reporting whether a row existed.
	DeleteGrant(ctx context.Context, userID, key string) (bool, error)
	// PromoteToAdmin flips the role and writes the audit record in one
	// transaction so a promotion is never visible without its trail.
	PromoteToAdmin(ctx context.Context, actorID, userID string) error
}

const uniqueViolation = "23505"

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *PGRepository {
	return &PGRepository{pool: pool, audit: audit}
}

// FetchProfile loads a single profile row.
func (r *PGRepository) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	var (
		p       Profile
		rawRole string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, role, is_active, created_at, updated_at FROM profiles WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.Email, &p.DisplayName, &rawRole, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, unavailable("fetch profile", err)
	}
	p.Role = authz.ParseRole(rawRole)
	return p, nil
}

// FetchGrants returns the explicit grant set for one user.
func (r *PGRepository) FetchGrants(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission FROM user_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, unavailable("fetch grants", err)
	}
	defer rows.Close()
	grants := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, unavailable("scan grant", err)
		}
		grants[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch grants", err)
	}
	return grants, nil
}

// FetchAllGrants returns every user's grant set for administrative list
// views.
func (r *PGRepository) FetchAllGrants(ctx context.Context) (map[string][]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, permission FROM user_permissions ORDER BY user_id, permission`)
	if err != nil {
		return nil, unavailable("fetch all grants", err)
	}
	defer rows.Close()
	all := make(map[string][]string)
	for rows.Next() {
		var userID, key string
		if err := rows.Scan(&userID, &key); err != nil {
			return nil, unavailable("scan grant", err)
		}
		all[userID] = append(all[userID], key)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch all grants", err)
	}
	return all, nil
}

// FetchDefinitions loads the permission catalog ordered for display.
func (r *PGRepository) FetchDefinitions(ctx context.Context) ([]authz.Definition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission, category, label, description FROM permission_definitions ORDER BY category, permission`)
	if err != nil {
		return nil, unavailable("fetch definitions", err)
	}
	defer rows.Close()
	var defs []authz.Definition
	for rows.Next() {
		var def authz.Definition
		if err := rows.Scan(&def.Key, &def.Category, &def.Label, &def.Description); err != nil {
			return nil, unavailable("scan definition", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch definitions", err)
	}
	return defs, nil
}

// InsertGrant adds one (user, permission) row. A unique violation means
// the grant is already held and is treated as a clean no-op.
func (r *PGRepository) InsertGrant(ctx context.Context, userID, key string) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission, created_at) VALUES ($1, $2, $3)`,
		userID, key, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, unavailable("insert grant", err)
	}
	return true, nil
}

// DeleteGrant removes one (user, permission) row if present.
func (r *PGRepository) DeleteGrant(ctx context.Context, userID, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission = $2`, userID, key)
	if err != nil {
		return false, unavailable("delete grant", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PromoteToAdmin performs the role flip and audit insert atomically.
func (r *PGRepository) PromoteToAdmin(ctx context.Context, actorID, userID string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`, userID, string(authz.RoleAdmin))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return r.audit.RecordTx(ctx, tx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.promote",
			Entity:   "profile",
			EntityID: userID,
			Meta:     map[string]any{"role": string(authz.RoleAdmin)},
		})
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return unavailable("promote to admin", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

var _ Repository = (*PGRepository)(nil)
