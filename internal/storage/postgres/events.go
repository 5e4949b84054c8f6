package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/slotswap/slotswap-api/internal/models"
	"github.com/slotswap/slotswap-api/internal/storage"
)

type eventRepo struct {
	q querier
}

const eventColumns = `id, owner_id, title, start_time, end_time, status, created_at, updated_at`

func (r *eventRepo) Create(ctx context.Context, event *models.Event) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO events (id, owner_id, title, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.OwnerID, event.Title, event.StartTime, event.EndTime, event.Status)
	return err
}

func (r *eventRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM events WHERE id = $1
	`, id)
	return scanEvent(row)
}

func (r *eventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE
	`, id)
	return scanEvent(row)
}

func (r *eventRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE owner_id = $1
		ORDER BY start_time ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r *eventRepo) ListSwappableByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE owner_id = $1 AND status = $2
		ORDER BY start_time ASC
	`, ownerID, models.EventStatusSwappable)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (r *eventRepo) ListSwappableExcluding(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	rows, err := r.q.Query(ctx, `
		SELECT e.id, e.owner_id, e.title, e.start_time, e.end_time, e.status,
		       e.created_at, e.updated_at,
		       u.name, u.email, u.avatar_url
		FROM events e
		JOIN users u ON u.id = e.owner_id
		WHERE e.owner_id <> $1 AND e.status = $2
		ORDER BY e.start_time ASC
	`, ownerID, models.EventStatusSwappable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		var name string
		var email, avatarURL pgtype.Text
		if err := rows.Scan(
			&event.ID, &event.OwnerID, &event.Title,
			&event.StartTime, &event.EndTime, &event.Status,
			&event.CreatedAt, &event.UpdatedAt,
			&name, &email, &avatarURL,
		); err != nil {
			return nil, err
		}
		event.Owner = &models.User{
			ID:        event.OwnerID,
			Name:      name,
			Email:     email.String,
			AvatarURL: avatarURL.String,
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *eventRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *eventRepo) Transfer(ctx context.Context, id uuid.UUID, newOwnerID uuid.UUID, status string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE events SET owner_id = $1, status = $2, updated_at = NOW() WHERE id = $3
	`, newOwnerID, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	err := row.Scan(
		&event.ID, &event.OwnerID, &event.Title,
		&event.StartTime, &event.EndTime, &event.Status,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &event, nil
}

func scanEvents(rows pgx.Rows) ([]models.Event, error) {
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(
			&event.ID, &event.OwnerID, &event.Title,
			&event.StartTime, &event.EndTime, &event.Status,
			&event.CreatedAt, &event.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
