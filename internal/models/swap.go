package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы предложения обмена
const (
	SwapStatusPending  = "PENDING"
	SwapStatusAccepted = "ACCEPTED"
	SwapStatusRejected = "REJECTED"
)

// SwapRequest представляет предложение об обмене тайм-слотами
type SwapRequest struct {
	ID              uuid.UUID `json:"id"`
	RequesterID     uuid.UUID `json:"requester_id"`
	ResponderID     uuid.UUID `json:"responder_id"`
	OfferedSlotID   uuid.UUID `json:"offered_slot_id"`
	RequestedSlotID uuid.UUID `json:"requested_slot_id"`
	Status          string    `json:"status"` // PENDING, ACCEPTED, REJECTED
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Дополнительные поля для API
	OfferedSlot   *Event `json:"offered_slot,omitempty"`
	RequestedSlot *Event `json:"requested_slot,omitempty"`
	Requester     *User  `json:"requester,omitempty"`
	Responder     *User  `json:"responder,omitempty"`
}
