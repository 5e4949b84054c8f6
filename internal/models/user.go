package models

import (
	"time"

	"github.com/google/uuid"
)

// User представляет пользователя в системе
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TelegramProfile представляет данные пользователя из Telegram,
// используемые при создании или обновлении учетной записи
type TelegramProfile struct {
	TelegramID int64
	Name       string
	Username   string
	PhotoURL   string
}
