// Package core реализует протокол обмена тайм-слотами: реестр слотов
// со статусной машиной BUSY/SWAPPABLE/SWAP_PENDING и переговорщика,
// который проводит обмен как одну транзакцию хранилища.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/models"
	"github.com/slotswap/slotswap-api/internal/storage"
)

// Registry управляет тайм-слотами и их статусами
type Registry struct {
	store storage.Store
}

// NewRegistry создает новый экземпляр Registry
func NewRegistry(store storage.Store) *Registry {
	return &Registry{store: store}
}

// CreateSlot создает новый тайм-слот; слот всегда создается занятым
func (r *Registry) CreateSlot(ctx context.Context, ownerID uuid.UUID, title string, start, end time.Time) (*models.Event, error) {
	now := time.Now()
	event := &models.Event{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		StartTime: start,
		EndTime:   end,
		Status:    models.EventStatusBusy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.Events().Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// ListOwned возвращает все слоты пользователя по возрастанию времени начала
func (r *Registry) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	return r.store.Events().ListByOwner(ctx, ownerID)
}

// ListSwappable возвращает слоты пользователя, доступные для обмена
func (r *Registry) ListSwappable(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	return r.store.Events().ListSwappableByOwner(ctx, ownerID)
}

// ListSwappableExcluding возвращает обмениваемые слоты остальных
// пользователей вместе с данными владельцев
func (r *Registry) ListSwappableExcluding(ctx context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	return r.store.Events().ListSwappableExcluding(ctx, ownerID)
}

// SetStatus переключает статус слота между BUSY и SWAPPABLE.
// Слот, участвующий в обмене, менять нельзя
func (r *Registry) SetStatus(ctx context.Context, eventID, requesterID uuid.UUID, status string) (*models.Event, error) {
	if status != models.EventStatusBusy && status != models.EventStatusSwappable {
		return nil, ErrInvalidTransition
	}

	var updated *models.Event
	err := r.store.WithinTx(ctx, func(s storage.Store) error {
		event, err := s.Events().GetForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if event.OwnerID != requesterID {
			return ErrUnauthorized
		}
		if event.Status == models.EventStatusSwapPending {
			return ErrInvalidTransition
		}

		if err := s.Events().UpdateStatus(ctx, eventID, status); err != nil {
			return err
		}
		event.Status = status
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove удаляет слот. Владелец не может удалить слот,
// пока тот участвует в обмене
func (r *Registry) Remove(ctx context.Context, eventID, requesterID uuid.UUID) error {
	return r.store.WithinTx(ctx, func(s storage.Store) error {
		event, err := s.Events().GetForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if event.OwnerID != requesterID {
			return ErrUnauthorized
		}
		if event.Status == models.EventStatusSwapPending {
			return ErrInvalidTransition
		}

		return s.Events().Delete(ctx, eventID)
	})
}

// lockSlot переводит слот в SWAP_PENDING и записывает блокировку
// с привязкой к предложению обмена. Вызывается только переговорщиком
// внутри его транзакций
func lockSlot(ctx context.Context, s storage.Store, eventID, requestID uuid.UUID, ttl time.Duration) error {
	if err := s.Events().UpdateStatus(ctx, eventID, models.EventStatusSwapPending); err != nil {
		return err
	}
	now := time.Now()
	return s.Locks().Acquire(ctx, &models.SlotLock{
		EventID:       eventID,
		SwapRequestID: requestID,
		LockedAt:      now,
		ExpiresAt:     now.Add(ttl),
	})
}

// unlockSlot возвращает слот в SWAPPABLE и снимает блокировку
func unlockSlot(ctx context.Context, s storage.Store, eventID uuid.UUID) error {
	if err := s.Events().UpdateStatus(ctx, eventID, models.EventStatusSwappable); err != nil {
		return err
	}
	return s.Locks().Release(ctx, eventID)
}

// transferSlot атомарно передает слот новому владельцу со статусом BUSY
// и снимает блокировку
func transferSlot(ctx context.Context, s storage.Store, eventID, newOwnerID uuid.UUID) error {
	if err := s.Events().Transfer(ctx, eventID, newOwnerID, models.EventStatusBusy); err != nil {
		return err
	}
	return s.Locks().Release(ctx, eventID)
}
