package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrLeaseHeld = errors.New("lease is held by another owner")

// LeaseRepository hands out short-lived lease records keyed by an arbitrary
// string. Leases replace in-process deduplication maps so mutual exclusion
// holds across service instances; an expired lease is silently reclaimable.
type LeaseRepository interface {
	// Acquire returns an opaque token on success, ErrLeaseHeld when an
	// unexpired lease exists for the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

type postgresLeaseRepository struct {
	db *sql.DB
}

func NewPostgresLeaseRepository(db *sql.DB) LeaseRepository {
	return &postgresLeaseRepository{db: db}
}

func (r *postgresLeaseRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	query := `
		INSERT INTO leases (key, token, expires_at)
		VALUES ($1, $2, now() + $3 * interval '1 second')
		ON CONFLICT (key) DO UPDATE
			SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
			WHERE leases.expires_at < now()
		RETURNING token`

	var granted string
	err := r.db.QueryRowContext(ctx, query, key, token, int(ttl.Seconds())).Scan(&granted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrLeaseHeld
		}
		return "", fmt.Errorf("failed to acquire lease %q: %w", key, err)
	}
	return granted, nil
}

func (r *postgresLeaseRepository) Release(ctx context.Context, key, token string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM leases WHERE key = $1 AND token = $2`, key, token)
	if err != nil {
		return fmt.Errorf("failed to release lease %q: %w", key, err)
	}
	// Releasing a lease that expired and was reclaimed is not an error.
	_, _ = result.RowsAffected()
	return nil
}
