package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы события (тайм-слота)
const (
	EventStatusBusy        = "BUSY"
	EventStatusSwappable   = "SWAPPABLE"
	EventStatusSwapPending = "SWAP_PENDING"
)

// Event представляет тайм-слот в календаре пользователя
type Event struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"` // BUSY, SWAPPABLE, SWAP_PENDING
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Дополнительные поля для API
	Owner *User `json:"owner,omitempty"`
}

// SlotLock представляет блокировку тайм-слота на время обмена.
// Строка существует только пока слот находится в статусе SWAP_PENDING;
// expires_at позволяет вернуть слот, если обмен завис
type SlotLock struct {
	EventID       uuid.UUID `json:"event_id"`
	SwapRequestID uuid.UUID `json:"swap_request_id"`
	LockedAt      time.Time `json:"locked_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
