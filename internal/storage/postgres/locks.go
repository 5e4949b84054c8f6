package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/models"
)

type lockRepo struct {
	q querier
}

func (r *lockRepo) Acquire(ctx context.Context, lock *models.SlotLock) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO slot_locks (event_id, swap_request_id, locked_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, lock.EventID, lock.SwapRequestID, lock.LockedAt, lock.ExpiresAt)
	return err
}

func (r *lockRepo) Release(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM slot_locks WHERE event_id = $1`, eventID)
	return err
}

func (r *lockRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]models.SlotLock, error) {
	rows, err := r.q.Query(ctx, `
		SELECT event_id, swap_request_id, locked_at, expires_at
		FROM slot_locks
		WHERE expires_at <= $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []models.SlotLock
	for rows.Next() {
		var lock models.SlotLock
		if err := rows.Scan(&lock.EventID, &lock.SwapRequestID, &lock.LockedAt, &lock.ExpiresAt); err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}
