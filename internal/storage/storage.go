package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/models"
)

// ErrNotFound возвращается репозиториями, когда запись не существует
var ErrNotFound = errors.New("запись не найдена")

// EventRepository предоставляет доступ к тайм-слотам
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	// GetForUpdate читает слот с блокировкой строки; имеет смысл
	// только внутри WithinTx
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error)
	ListSwappableByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error)
	// ListSwappableExcluding возвращает обмениваемые слоты всех
	// пользователей, кроме указанного, вместе с данными владельца
	ListSwappableExcluding(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// Transfer атомарно меняет владельца и статус слота
	Transfer(ctx context.Context, id uuid.UUID, newOwnerID uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SwapRequestRepository предоставляет доступ к предложениям обмена
type SwapRequestRepository interface {
	Create(ctx context.Context, request *models.SwapRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// ListIncomingPending возвращает необработанные входящие предложения
	ListIncomingPending(ctx context.Context, responderID uuid.UUID) ([]models.SwapRequest, error)
	// ListOutgoing возвращает все исходящие предложения пользователя
	ListOutgoing(ctx context.Context, requesterID uuid.UUID) ([]models.SwapRequest, error)
}

// LockRepository предоставляет доступ к блокировкам слотов
type LockRepository interface {
	Acquire(ctx context.Context, lock *models.SlotLock) error
	Release(ctx context.Context, eventID uuid.UUID) error
	ListExpired(ctx context.Context, cutoff time.Time) ([]models.SlotLock, error)
}

// UserRepository предоставляет доступ к пользователям
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpsertTelegram создает пользователя по данным Telegram
	// или обновляет существующего
	UpsertTelegram(ctx context.Context, profile *models.TelegramProfile) (*models.User, error)
}

// Store объединяет репозитории и транзакционную границу.
// WithinTx выполняет fn в одной транзакции хранилища: все операции
// через переданный Store либо фиксируются целиком, либо не видны вовсе
type Store interface {
	Events() EventRepository
	Swaps() SwapRequestRepository
	Locks() LockRepository
	Users() UserRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}
