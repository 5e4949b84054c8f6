package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slotswap/slotswap-api/internal/models"
	"github.com/slotswap/slotswap-api/internal/storage"
)

type swapRepo struct {
	q querier
}

const swapColumns = `id, requester_id, responder_id, offered_slot_id, requested_slot_id, status, created_at, updated_at`

func (r *swapRepo) Create(ctx context.Context, request *models.SwapRequest) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO swap_requests (id, requester_id, responder_id, offered_slot_id, requested_slot_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, request.ID, request.RequesterID, request.ResponderID,
		request.OfferedSlotID, request.RequestedSlotID, request.Status)
	return err
}

func (r *swapRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+swapColumns+` FROM swap_requests WHERE id = $1
	`, id)
	return scanSwap(row)
}

func (r *swapRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+swapColumns+` FROM swap_requests WHERE id = $1 FOR UPDATE
	`, id)
	return scanSwap(row)
}

func (r *swapRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE swap_requests SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *swapRepo) ListIncomingPending(ctx context.Context, responderID uuid.UUID) ([]models.SwapRequest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+swapColumns+` FROM swap_requests
		WHERE responder_id = $1 AND status = $2
		ORDER BY created_at DESC
	`, responderID, models.SwapStatusPending)
	if err != nil {
		return nil, err
	}
	return scanSwaps(rows)
}

func (r *swapRepo) ListOutgoing(ctx context.Context, requesterID uuid.UUID) ([]models.SwapRequest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+swapColumns+` FROM swap_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`, requesterID)
	if err != nil {
		return nil, err
	}
	return scanSwaps(rows)
}

func scanSwap(row pgx.Row) (*models.SwapRequest, error) {
	var request models.SwapRequest
	err := row.Scan(
		&request.ID, &request.RequesterID, &request.ResponderID,
		&request.OfferedSlotID, &request.RequestedSlotID, &request.Status,
		&request.CreatedAt, &request.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &request, nil
}

func scanSwaps(rows pgx.Rows) ([]models.SwapRequest, error) {
	defer rows.Close()

	var requests []models.SwapRequest
	for rows.Next() {
		var request models.SwapRequest
		if err := rows.Scan(
			&request.ID, &request.RequesterID, &request.ResponderID,
			&request.OfferedSlotID, &request.RequestedSlotID, &request.Status,
			&request.CreatedAt, &request.UpdatedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}
