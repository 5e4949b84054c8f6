package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/slotswap/slotswap-api/internal/models"
)

type userRepo struct {
	q querier
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	var email, avatarURL pgtype.Text

	err := r.q.QueryRow(ctx, `
		SELECT id, name, email, avatar_url, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &email, &avatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	user.Email = email.String
	user.AvatarURL = avatarURL.String
	return &user, nil
}

func (r *userRepo) UpsertTelegram(ctx context.Context, profile *models.TelegramProfile) (*models.User, error) {
	var user models.User
	var email, avatarURL pgtype.Text

	// Обновляем имя и аватар при каждом входе, чтобы данные
	// не расходились с Telegram
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (telegram_id, name, username, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE
		SET name = EXCLUDED.name,
		    username = EXCLUDED.username,
		    avatar_url = EXCLUDED.avatar_url,
		    updated_at = NOW()
		RETURNING id, name, email, avatar_url, created_at, updated_at
	`, profile.TelegramID, profile.Name, profile.Username, profile.PhotoURL).Scan(
		&user.ID, &user.Name, &email, &avatarURL, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Email = email.String
	user.AvatarURL = avatarURL.String
	return &user, nil
}
