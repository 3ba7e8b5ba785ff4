package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

const userColumns = `id, organization_id, email, name, password_hash, role, is_active,
	created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(
		&u.ID, &u.Organization, &u.Email, &u.Name, &u.PasswordHash, &role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetUserByEmail finds a live user by email for login. Returns
// (nil, nil) when no live user carries the address.
func GetUserByEmail(ctx context.Context, q Querier, email string) (*model.User, error) {
	row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM users
		WHERE email = $1 AND deleted_at IS NULL`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserLive fetches a non-deleted user by id. The auth middleware
// calls this on every request so deleted users lose access immediately.
func GetUserLive(ctx context.Context, q Querier, id uuid.UUID) (*model.User, error) {
	row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM users
		WHERE id = $1 AND deleted_at IS NULL`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
