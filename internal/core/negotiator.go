package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/models"
	"github.com/slotswap/slotswap-api/internal/storage"
)

// Negotiator проводит переговоры об обмене: создает предложения,
// обрабатывает ответы и выполняет сам обмен владельцами
type Negotiator struct {
	store   storage.Store
	lockTTL time.Duration
}

// NewNegotiator создает новый экземпляр Negotiator.
// lockTTL задает время жизни блокировки слота: по его истечении
// зависшее предложение снимается сборщиком
func NewNegotiator(store storage.Store, lockTTL time.Duration) *Negotiator {
	return &Negotiator{store: store, lockTTL: lockTTL}
}

// SwapRequests — входящие и исходящие предложения пользователя
type SwapRequests struct {
	Incoming []models.SwapRequest `json:"incoming"`
	Outgoing []models.SwapRequest `json:"outgoing"`
}

// Propose создает предложение обмена и блокирует оба слота.
// Проверки выполняются в фиксированном порядке, каждая дает свою ошибку;
// блокировка слотов и создание записи происходят в одной транзакции
func (n *Negotiator) Propose(ctx context.Context, requesterID, offeredID, requestedID uuid.UUID) (*models.SwapRequest, error) {
	var created *models.SwapRequest

	err := n.store.WithinTx(ctx, func(s storage.Store) error {
		offered, requested, err := getSlotsForUpdate(ctx, s, offeredID, requestedID)
		if err != nil {
			return err
		}

		if offered.OwnerID != requesterID {
			return ErrUnauthorized
		}
		if requested.OwnerID == requesterID {
			return ErrInvalidRequest
		}
		if offered.Status != models.EventStatusSwappable || requested.Status != models.EventStatusSwappable {
			return ErrInvalidState
		}

		now := time.Now()
		request := &models.SwapRequest{
			ID:              uuid.New(),
			RequesterID:     requesterID,
			ResponderID:     requested.OwnerID,
			OfferedSlotID:   offered.ID,
			RequestedSlotID: requested.ID,
			Status:          models.SwapStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.Swaps().Create(ctx, request); err != nil {
			return err
		}

		if err := lockSlot(ctx, s, offered.ID, request.ID, n.lockTTL); err != nil {
			return err
		}
		if err := lockSlot(ctx, s, requested.ID, request.ID, n.lockTTL); err != nil {
			return err
		}

		created = request
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return created, nil
}

// Respond обрабатывает ответ на предложение обмена. Отклонение
// возвращает оба слота в SWAPPABLE; принятие выполняет обмен:
// владельцы слотов меняются местами, оба слота становятся BUSY,
// предложение — ACCEPTED. И то, и другое — одна транзакция
func (n *Negotiator) Respond(ctx context.Context, responderID, requestID uuid.UUID, accept bool) (*models.SwapRequest, error) {
	var result *models.SwapRequest

	err := n.store.WithinTx(ctx, func(s storage.Store) error {
		request, err := s.Swaps().GetForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if request.ResponderID != responderID {
			return ErrUnauthorized
		}
		if request.Status != models.SwapStatusPending {
			return ErrAlreadyActioned
		}

		// Слоты обычно защищены от удаления блокировкой, но проверяем
		// их существование на случай внешнего вмешательства
		offered, requested, err := getSlotsForUpdate(ctx, s, request.OfferedSlotID, request.RequestedSlotID)
		if err != nil {
			return err
		}

		if !accept {
			if err := s.Swaps().UpdateStatus(ctx, request.ID, models.SwapStatusRejected); err != nil {
				return err
			}
			if err := unlockSlot(ctx, s, offered.ID); err != nil {
				return err
			}
			if err := unlockSlot(ctx, s, requested.ID); err != nil {
				return err
			}
			request.Status = models.SwapStatusRejected
			request.UpdatedAt = time.Now()
			result = request
			return nil
		}

		// Сам обмен: каждый слот уходит к владельцу встречного слота
		if err := transferSlot(ctx, s, offered.ID, requested.OwnerID); err != nil {
			return err
		}
		if err := transferSlot(ctx, s, requested.ID, offered.OwnerID); err != nil {
			return err
		}
		if err := s.Swaps().UpdateStatus(ctx, request.ID, models.SwapStatusAccepted); err != nil {
			return err
		}

		request.Status = models.SwapStatusAccepted
		request.UpdatedAt = time.Now()
		result = request
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return result, nil
}

// ListForUser возвращает предложения обмена пользователя: входящие —
// только необработанные, исходящие — все, для истории. Каждое
// предложение дополняется слотами и данными участников
func (n *Negotiator) ListForUser(ctx context.Context, userID uuid.UUID) (*SwapRequests, error) {
	incoming, err := n.store.Swaps().ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	outgoing, err := n.store.Swaps().ListOutgoing(ctx, userID)
	if err != nil {
		return nil, err
	}

	n.enrich(ctx, incoming)
	n.enrich(ctx, outgoing)

	return &SwapRequests{Incoming: incoming, Outgoing: outgoing}, nil
}

// ReclaimExpired снимает просроченные блокировки: зависшие предложения
// отклоняются, а их слоты возвращаются в SWAPPABLE. Возвращает число
// обработанных предложений
func (n *Negotiator) ReclaimExpired(ctx context.Context) (int, error) {
	expired, err := n.store.Locks().ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	requestIDs := make(map[uuid.UUID]bool)
	for _, lock := range expired {
		requestIDs[lock.SwapRequestID] = true
	}

	reclaimed := 0
	for requestID := range requestIDs {
		err := n.store.WithinTx(ctx, func(s storage.Store) error {
			request, err := s.Swaps().GetForUpdate(ctx, requestID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return nil
				}
				return err
			}
			if request.Status != models.SwapStatusPending {
				// Предложение уже обработано — снимаем только сами блокировки
				if err := s.Locks().Release(ctx, request.OfferedSlotID); err != nil {
					return err
				}
				return s.Locks().Release(ctx, request.RequestedSlotID)
			}

			if err := s.Swaps().UpdateStatus(ctx, request.ID, models.SwapStatusRejected); err != nil {
				return err
			}
			if err := unlockSlot(ctx, s, request.OfferedSlotID); err != nil {
				return err
			}
			if err := unlockSlot(ctx, s, request.RequestedSlotID); err != nil {
				return err
			}
			reclaimed++
			return nil
		})
		if err != nil {
			log.Printf("Ошибка возврата слотов по предложению %s: %v", requestID, err)
		}
	}

	return reclaimed, nil
}

// enrich дополняет предложения слотами и данными участников
func (n *Negotiator) enrich(ctx context.Context, requests []models.SwapRequest) {
	for i := range requests {
		r := &requests[i]

		if event, err := n.store.Events().GetByID(ctx, r.OfferedSlotID); err == nil {
			r.OfferedSlot = event
		} else {
			log.Printf("Ошибка получения слота %s: %v", r.OfferedSlotID, err)
		}
		if event, err := n.store.Events().GetByID(ctx, r.RequestedSlotID); err == nil {
			r.RequestedSlot = event
		} else {
			log.Printf("Ошибка получения слота %s: %v", r.RequestedSlotID, err)
		}
		if user, err := n.store.Users().GetByID(ctx, r.RequesterID); err == nil {
			r.Requester = user
		}
		if user, err := n.store.Users().GetByID(ctx, r.ResponderID); err == nil {
			r.Responder = user
		}
	}
}

// getSlotsForUpdate читает оба слота с блокировкой строк
// в фиксированном порядке идентификаторов, чтобы встречные
// транзакции не взяли их крест-накрест
func getSlotsForUpdate(ctx context.Context, s storage.Store, firstID, secondID uuid.UUID) (*models.Event, *models.Event, error) {
	ordered := []uuid.UUID{firstID, secondID}
	if ordered[1].String() < ordered[0].String() {
		ordered[0], ordered[1] = ordered[1], ordered[0]
	}

	slots := make(map[uuid.UUID]*models.Event, 2)
	for _, id := range ordered {
		event, err := s.Events().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil, ErrNotFound
			}
			return nil, nil, err
		}
		slots[id] = event
	}
	return slots[firstID], slots[secondID], nil
}

// wrapTxErr пропускает ошибки протокола как есть, остальные
// заворачивает в ErrTransactionFailed: транзакция откатилась,
// состояние не изменилось
func wrapTxErr(err error) error {
	for _, protocolErr := range []error{
		ErrNotFound, ErrUnauthorized, ErrInvalidRequest,
		ErrInvalidState, ErrInvalidTransition, ErrAlreadyActioned,
	} {
		if errors.Is(err, protocolErr) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}
