package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/models"
)

// proposeSwap готовит стандартный сценарий: слот Анны 10:00–11:00,
// слот Бориса 14:00–15:00, оба обмениваемые, Анна предлагает обмен
func proposeSwap(t *testing.T, env *testEnv) (*models.Event, *models.Event, *models.SwapRequest) {
	t.Helper()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mine := env.createSlot(t, env.userA.ID, "Утренняя смена", day.Add(10*time.Hour), true)
	theirs := env.createSlot(t, env.userB.ID, "Дневная смена", day.Add(14*time.Hour), true)

	request, err := env.negotiator.Propose(context.Background(), env.userA.ID, mine.ID, theirs.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	return mine, theirs, request
}

func TestProposeLocksBothSlots(t *testing.T) {
	env := newTestEnv(t)
	mine, theirs, request := proposeSwap(t, env)

	if request.Status != models.SwapStatusPending {
		t.Errorf("статус предложения %s, ожидали PENDING", request.Status)
	}
	if request.ResponderID != env.userB.ID {
		t.Errorf("отвечающий %s, ожидали владельца запрошенного слота %s", request.ResponderID, env.userB.ID)
	}

	for _, id := range []uuid.UUID{mine.ID, theirs.ID} {
		if got := env.getEvent(t, id).Status; got != models.EventStatusSwapPending {
			t.Errorf("слот %s в статусе %s, ожидали SWAP_PENDING", id, got)
		}
	}

	// Заблокированный слот участвует ровно в одном необработанном предложении
	incoming, err := env.store.Swaps().ListIncomingPending(context.Background(), env.userB.ID)
	if err != nil {
		t.Fatalf("ListIncomingPending: %v", err)
	}
	if len(incoming) != 1 || incoming[0].ID != request.ID {
		t.Fatalf("ожидали одно входящее предложение, получили %d", len(incoming))
	}
}

func TestProposeSlotNotFound(t *testing.T) {
	env := newTestEnv(t)
	mine := env.createSlot(t, env.userA.ID, "Мой", time.Now(), true)

	if _, err := env.negotiator.Propose(context.Background(), env.userA.ID, mine.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}

	if got := env.getEvent(t, mine.ID).Status; got != models.EventStatusSwappable {
		t.Errorf("слот изменился на %s, предложение не должно было ничего менять", got)
	}
}

func TestProposeRejectsForeignOfferedSlot(t *testing.T) {
	env := newTestEnv(t)

	// Оба слота принадлежат Борису; состояние запрошенного слота не важно
	offered := env.createSlot(t, env.userB.ID, "Не мой", time.Now(), true)
	requested := env.createSlot(t, env.userB.ID, "Чужой занятый", time.Now().Add(2*time.Hour), false)

	if _, err := env.negotiator.Propose(context.Background(), env.userA.ID, offered.ID, requested.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидали ErrUnauthorized, получили %v", err)
	}
}

func TestProposeRejectsSelfTrade(t *testing.T) {
	env := newTestEnv(t)

	first := env.createSlot(t, env.userA.ID, "Первый", time.Now(), true)
	second := env.createSlot(t, env.userA.ID, "Второй", time.Now().Add(2*time.Hour), true)

	if _, err := env.negotiator.Propose(context.Background(), env.userA.ID, first.ID, second.ID); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("ожидали ErrInvalidRequest, получили %v", err)
	}
}

func TestProposeRequiresSwappableSlots(t *testing.T) {
	env := newTestEnv(t)

	mine := env.createSlot(t, env.userA.ID, "Мой занятый", time.Now(), false)
	theirs := env.createSlot(t, env.userB.ID, "Чужой", time.Now().Add(2*time.Hour), true)

	if _, err := env.negotiator.Propose(context.Background(), env.userA.ID, mine.ID, theirs.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ожидали ErrInvalidState, получили %v", err)
	}

	// Ничего не изменилось
	if got := env.getEvent(t, mine.ID).Status; got != models.EventStatusBusy {
		t.Errorf("предлагаемый слот изменился на %s", got)
	}
	if got := env.getEvent(t, theirs.ID).Status; got != models.EventStatusSwappable {
		t.Errorf("запрошенный слот изменился на %s", got)
	}
	outgoing, err := env.store.Swaps().ListOutgoing(context.Background(), env.userA.ID)
	if err != nil {
		t.Fatalf("ListOutgoing: %v", err)
	}
	if len(outgoing) != 0 {
		t.Errorf("создано предложение при неуспешной проверке: %d", len(outgoing))
	}
}

func TestProposeRejectsLockedSlot(t *testing.T) {
	env := newTestEnv(t)
	_, theirs, _ := proposeSwap(t, env)

	// Третий пользователь пытается обменять свой слот на уже заблокированный
	userC := models.User{ID: uuid.New(), Name: "Вера"}
	env.store.AddUser(userC)
	other := env.createSlot(t, userC.ID, "Слот Веры", time.Now(), true)

	if _, err := env.negotiator.Propose(context.Background(), userC.ID, other.ID, theirs.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ожидали ErrInvalidState, получили %v", err)
	}
}

func TestAcceptExchangesOwnership(t *testing.T) {
	env := newTestEnv(t)
	mine, theirs, request := proposeSwap(t, env)

	result, err := env.negotiator.Respond(context.Background(), env.userB.ID, request.ID, true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Status != models.SwapStatusAccepted {
		t.Errorf("статус предложения %s, ожидали ACCEPTED", result.Status)
	}

	offered := env.getEvent(t, mine.ID)
	requested := env.getEvent(t, theirs.ID)

	if offered.OwnerID != env.userB.ID {
		t.Errorf("предложенный слот у %s, ожидали нового владельца %s", offered.OwnerID, env.userB.ID)
	}
	if requested.OwnerID != env.userA.ID {
		t.Errorf("запрошенный слот у %s, ожидали нового владельца %s", requested.OwnerID, env.userA.ID)
	}
	if offered.Status != models.EventStatusBusy || requested.Status != models.EventStatusBusy {
		t.Errorf("после обмена оба слота должны быть BUSY, получили %s и %s", offered.Status, requested.Status)
	}

	// Блокировки сняты: новый владелец может управлять слотом
	if _, err := env.registry.SetStatus(context.Background(), mine.ID, env.userB.ID, models.EventStatusSwappable); err != nil {
		t.Errorf("новый владелец не может сменить статус: %v", err)
	}
}

func TestRejectRestoresSlots(t *testing.T) {
	env := newTestEnv(t)
	mine, theirs, request := proposeSwap(t, env)

	result, err := env.negotiator.Respond(context.Background(), env.userB.ID, request.ID, false)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Status != models.SwapStatusRejected {
		t.Errorf("статус предложения %s, ожидали REJECTED", result.Status)
	}

	offered := env.getEvent(t, mine.ID)
	requested := env.getEvent(t, theirs.ID)

	if offered.OwnerID != env.userA.ID || requested.OwnerID != env.userB.ID {
		t.Error("владельцы слотов не должны меняться при отказе")
	}
	if offered.Status != models.EventStatusSwappable || requested.Status != models.EventStatusSwappable {
		t.Errorf("после отказа оба слота должны вернуться в SWAPPABLE, получили %s и %s",
			offered.Status, requested.Status)
	}
}

func TestRespondIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	mine, theirs, request := proposeSwap(t, env)

	if _, err := env.negotiator.Respond(context.Background(), env.userB.ID, request.ID, true); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	// Повторный ответ — в том числе с другим решением — отклоняется
	if _, err := env.negotiator.Respond(context.Background(), env.userB.ID, request.ID, false); !errors.Is(err, ErrAlreadyActioned) {
		t.Fatalf("ожидали ErrAlreadyActioned, получили %v", err)
	}

	// Эффект первого ответа не изменился
	if got := env.getEvent(t, mine.ID).OwnerID; got != env.userB.ID {
		t.Errorf("владелец слота изменился после повторного ответа: %s", got)
	}
	if got := env.getEvent(t, theirs.ID).OwnerID; got != env.userA.ID {
		t.Errorf("владелец слота изменился после повторного ответа: %s", got)
	}
}

func TestRespondRefreshesUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	_, _, request := proposeSwap(t, env)

	// Гарантируем, что время ответа отличимо от времени создания
	time.Sleep(5 * time.Millisecond)

	result, err := env.negotiator.Respond(context.Background(), env.userB.ID, request.ID, true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if !result.UpdatedAt.After(request.UpdatedAt) {
		t.Errorf("время обновления в ответе %v не позже времени создания %v",
			result.UpdatedAt, request.UpdatedAt)
	}
}

func TestRespondRejectsWrongResponder(t *testing.T) {
	env := newTestEnv(t)
	_, _, request := proposeSwap(t, env)

	// Инициатор не может ответить на собственное предложение
	if _, err := env.negotiator.Respond(context.Background(), env.userA.ID, request.ID, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидали ErrUnauthorized, получили %v", err)
	}

	if got, _ := env.store.Swaps().GetByID(context.Background(), request.ID); got.Status != models.SwapStatusPending {
		t.Errorf("статус предложения изменился на %s", got.Status)
	}
}

func TestRespondNotFound(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.negotiator.Respond(context.Background(), env.userB.ID, uuid.New(), true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestAcceptRollsBackOnCommitFailure(t *testing.T) {
	env := newTestEnv(t)
	mine, theirs, request := proposeSwap(t, env)

	// Вторая запись внутри транзакции обмена падает
	env.store.FailWrite = func(writeNum int) error {
		if writeNum == 2 {
			return errors.New("имитация сбоя записи")
		}
		return nil
	}

	_, err := env.negotiator.Respond(context.Background(), env.userB.ID, request.ID, true)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("ожидали ErrTransactionFailed, получили %v", err)
	}

	// Состояние полностью откатилось: владельцы прежние, слоты
	// заблокированы, предложение все еще ожидает ответа
	offered := env.getEvent(t, mine.ID)
	requested := env.getEvent(t, theirs.ID)

	if offered.OwnerID != env.userA.ID || requested.OwnerID != env.userB.ID {
		t.Error("владельцы изменились при откате транзакции")
	}
	if offered.Status != models.EventStatusSwapPending || requested.Status != models.EventStatusSwapPending {
		t.Errorf("слоты должны остаться SWAP_PENDING, получили %s и %s", offered.Status, requested.Status)
	}
	stored, err := env.store.Swaps().GetByID(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != models.SwapStatusPending {
		t.Errorf("статус предложения %s, ожидали PENDING", stored.Status)
	}

	// После устранения сбоя обмен можно завершить
	env.store.FailWrite = nil
	if _, err := env.negotiator.Respond(context.Background(), env.userB.ID, request.ID, true); err != nil {
		t.Fatalf("повторный Respond: %v", err)
	}
	if got := env.getEvent(t, mine.ID).OwnerID; got != env.userB.ID {
		t.Errorf("владелец после обмена %s, ожидали %s", got, env.userB.ID)
	}
}

func TestListForUser(t *testing.T) {
	env := newTestEnv(t)
	_, _, first := proposeSwap(t, env)

	// Второе предложение от Анны, Борис его отклоняет
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	mine2 := env.createSlot(t, env.userA.ID, "Еще смена", day.Add(10*time.Hour), true)
	theirs2 := env.createSlot(t, env.userB.ID, "Ночная смена", day.Add(22*time.Hour), true)
	second, err := env.negotiator.Propose(context.Background(), env.userA.ID, mine2.ID, theirs2.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := env.negotiator.Respond(context.Background(), env.userB.ID, second.ID, false); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	// Входящие Бориса: только необработанные
	forB, err := env.negotiator.ListForUser(context.Background(), env.userB.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(forB.Incoming) != 1 || forB.Incoming[0].ID != first.ID {
		t.Fatalf("ожидали одно входящее предложение, получили %d", len(forB.Incoming))
	}
	if len(forB.Outgoing) != 0 {
		t.Errorf("у Бориса не должно быть исходящих, получили %d", len(forB.Outgoing))
	}

	// Исходящие Анны: вся история, включая отклоненные
	forA, err := env.negotiator.ListForUser(context.Background(), env.userA.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(forA.Outgoing) != 2 {
		t.Fatalf("ожидали 2 исходящих предложения, получили %d", len(forA.Outgoing))
	}
	if len(forA.Incoming) != 0 {
		t.Errorf("у Анны не должно быть входящих, получили %d", len(forA.Incoming))
	}

	// Предложения дополнены слотами и участниками
	enriched := forB.Incoming[0]
	if enriched.OfferedSlot == nil || enriched.RequestedSlot == nil {
		t.Fatal("предложение должно содержать оба слота")
	}
	if enriched.Requester == nil || enriched.Requester.Name != env.userA.Name {
		t.Error("предложение должно содержать данные инициатора")
	}
	if enriched.Responder == nil || enriched.Responder.Name != env.userB.Name {
		t.Error("предложение должно содержать данные отвечающего")
	}
}

func TestReclaimExpiredUnlocksSlots(t *testing.T) {
	env := newTestEnv(t)

	// Блокировки с отрицательным временем жизни истекают сразу
	staleNegotiator := NewNegotiator(env.store, -time.Minute)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mine := env.createSlot(t, env.userA.ID, "Зависшая смена", day.Add(10*time.Hour), true)
	theirs := env.createSlot(t, env.userB.ID, "Встречная смена", day.Add(14*time.Hour), true)

	request, err := staleNegotiator.Propose(context.Background(), env.userA.ID, mine.ID, theirs.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Живое предложение с обычным TTL не должно пострадать
	mine2 := env.createSlot(t, env.userA.ID, "Живая смена", day.Add(16*time.Hour), true)
	theirs2 := env.createSlot(t, env.userB.ID, "Живая встречная", day.Add(18*time.Hour), true)
	alive, err := env.negotiator.Propose(context.Background(), env.userA.ID, mine2.ID, theirs2.ID)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	reclaimed, err := env.negotiator.ReclaimExpired(context.Background())
	if err != nil {
		t.Fatalf("ReclaimExpired: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("ожидали 1 возвращенное предложение, получили %d", reclaimed)
	}

	// Зависшее предложение отклонено, его слоты снова доступны
	stored, err := env.store.Swaps().GetByID(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != models.SwapStatusRejected {
		t.Errorf("статус зависшего предложения %s, ожидали REJECTED", stored.Status)
	}
	if got := env.getEvent(t, mine.ID).Status; got != models.EventStatusSwappable {
		t.Errorf("слот должен вернуться в SWAPPABLE, получили %s", got)
	}

	// Живое предложение не тронуто
	aliveStored, err := env.store.Swaps().GetByID(context.Background(), alive.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if aliveStored.Status != models.SwapStatusPending {
		t.Errorf("живое предложение изменилось на %s", aliveStored.Status)
	}
	if got := env.getEvent(t, mine2.ID).Status; got != models.EventStatusSwapPending {
		t.Errorf("слот живого предложения изменился на %s", got)
	}
}
