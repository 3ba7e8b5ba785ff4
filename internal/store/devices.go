package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskmesh/taskmesh-api/internal/model"
	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

const deviceColumns = `id, user_id, fingerprint, name, vector_clock, last_sync_at,
	is_active, created_at, updated_at`

func scanDevice(row pgx.Row) (*model.Device, error) {
	var d model.Device
	err := row.Scan(
		&d.ID, &d.User, &d.Fingerprint, &d.Name, &d.VectorClock, &d.LastSyncAt,
		&d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDeviceForUser fetches an active device owned by the given user.
// Returns (nil, nil) when the id is unknown, inactive, or belongs to
// someone else; callers turn that into INVALID_DEVICE.
func GetDeviceForUser(ctx context.Context, q Querier, user, id uuid.UUID) (*model.Device, error) {
	row := q.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices
		WHERE id = $1 AND user_id = $2 AND is_active`, id, user)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// FindOrCreateDevice returns the user's device with the given
// fingerprint, creating or reactivating it as needed. Login calls this
// so a reinstalled client keeps its device identity (and therefore its
// vector-clock component).
func FindOrCreateDevice(ctx context.Context, q Querier, user uuid.UUID, fingerprint, name string) (*model.Device, error) {
	now := time.Now().UTC()
	row := q.QueryRow(ctx, `
		INSERT INTO devices (id, user_id, fingerprint, name, vector_clock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '{}', TRUE, $5, $5)
		ON CONFLICT (user_id, fingerprint) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE devices.name END,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING `+deviceColumns,
		uuid.New(), user, fingerprint, name, now)
	d, err := scanDevice(row)
	if err != nil {
		return nil, fmt.Errorf("find or create device: %w", err)
	}
	return d, nil
}

// MergeDeviceClock folds the pushed clock into the device's stored
// clock and stamps last_sync_at. The merge keeps every component
// monotonically non-decreasing regardless of replayed pushes.
func MergeDeviceClock(ctx context.Context, q Querier, id uuid.UUID, pushed vclock.Clock, at time.Time) error {
	row := q.QueryRow(ctx, `SELECT vector_clock FROM devices WHERE id = $1 FOR UPDATE`, id)
	var stored vclock.Clock
	if err := row.Scan(&stored); err != nil {
		return fmt.Errorf("read device clock: %w", err)
	}
	merged := stored.Merge(pushed)
	_, err := q.Exec(ctx, `UPDATE devices SET vector_clock = $2, last_sync_at = $3, updated_at = $3
		WHERE id = $1`, id, merged, at)
	if err != nil {
		return fmt.Errorf("merge device clock: %w", err)
	}
	return nil
}

// TouchDeviceLastSync stamps last_sync_at without touching the clock;
// pull does not advance causality.
func TouchDeviceLastSync(ctx context.Context, q Querier, id uuid.UUID, at time.Time) error {
	_, err := q.Exec(ctx, `UPDATE devices SET last_sync_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch device last sync: %w", err)
	}
	return nil
}
