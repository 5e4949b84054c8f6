package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/models"
	"github.com/slotswap/slotswap-api/internal/storage/memory"
)

// testEnv собирает хранилище в памяти, ядро протокола
// и двух пользователей для сценариев обмена
type testEnv struct {
	store      *memory.Store
	registry   *Registry
	negotiator *Negotiator
	userA      models.User
	userB      models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	userA := models.User{ID: uuid.New(), Name: "Анна", Email: "anna@example.com"}
	userB := models.User{ID: uuid.New(), Name: "Борис", Email: "boris@example.com"}
	store.AddUser(userA)
	store.AddUser(userB)

	return &testEnv{
		store:      store,
		registry:   NewRegistry(store),
		negotiator: NewNegotiator(store, time.Hour),
		userA:      userA,
		userB:      userB,
	}
}

// createSlot создает слот и, если нужно, сразу делает его обмениваемым
func (env *testEnv) createSlot(t *testing.T, owner uuid.UUID, title string, start time.Time, swappable bool) *models.Event {
	t.Helper()

	event, err := env.registry.CreateSlot(context.Background(), owner, title, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	if swappable {
		event, err = env.registry.SetStatus(context.Background(), event.ID, owner, models.EventStatusSwappable)
		if err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}
	return event
}

func (env *testEnv) getEvent(t *testing.T, id uuid.UUID) *models.Event {
	t.Helper()

	event, err := env.store.Events().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return event
}

func TestCreateSlotStartsBusy(t *testing.T) {
	env := newTestEnv(t)

	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	event, err := env.registry.CreateSlot(context.Background(), env.userA.ID, "Дежурство", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}

	if event.Status != models.EventStatusBusy {
		t.Errorf("новый слот должен быть BUSY, получили %s", event.Status)
	}
	if event.OwnerID != env.userA.ID {
		t.Errorf("владелец слота %s, ожидали %s", event.OwnerID, env.userA.ID)
	}
}

func TestListOwnedOrderedByStartTime(t *testing.T) {
	env := newTestEnv(t)

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	env.createSlot(t, env.userA.ID, "Вечер", base.Add(18*time.Hour), false)
	env.createSlot(t, env.userA.ID, "Утро", base.Add(9*time.Hour), true)
	env.createSlot(t, env.userA.ID, "День", base.Add(13*time.Hour), false)
	env.createSlot(t, env.userB.ID, "Чужой", base.Add(10*time.Hour), false)

	events, err := env.registry.ListOwned(context.Background(), env.userA.ID)
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("ожидали 3 слота, получили %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].StartTime.Before(events[i-1].StartTime) {
			t.Errorf("слоты не отсортированы по времени начала: %v после %v",
				events[i].StartTime, events[i-1].StartTime)
		}
	}
}

func TestListSwappableFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	env.createSlot(t, env.userA.ID, "Занят", base.Add(9*time.Hour), false)
	swappable := env.createSlot(t, env.userA.ID, "Свободен", base.Add(13*time.Hour), true)

	events, err := env.registry.ListSwappable(context.Background(), env.userA.ID)
	if err != nil {
		t.Fatalf("ListSwappable: %v", err)
	}

	if len(events) != 1 || events[0].ID != swappable.ID {
		t.Fatalf("ожидали только обмениваемый слот, получили %d", len(events))
	}
}

func TestListSwappableExcludingEnrichesOwner(t *testing.T) {
	env := newTestEnv(t)

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	env.createSlot(t, env.userA.ID, "Мой", base.Add(9*time.Hour), true)
	theirs := env.createSlot(t, env.userB.ID, "Чужой", base.Add(13*time.Hour), true)
	env.createSlot(t, env.userB.ID, "Чужой занятый", base.Add(15*time.Hour), false)

	events, err := env.registry.ListSwappableExcluding(context.Background(), env.userA.ID)
	if err != nil {
		t.Fatalf("ListSwappableExcluding: %v", err)
	}

	if len(events) != 1 || events[0].ID != theirs.ID {
		t.Fatalf("ожидали один чужой обмениваемый слот, получили %d", len(events))
	}
	owner := events[0].Owner
	if owner == nil {
		t.Fatal("слот должен содержать данные владельца")
	}
	if owner.Name != env.userB.Name || owner.Email != env.userB.Email {
		t.Errorf("данные владельца %q/%q, ожидали %q/%q",
			owner.Name, owner.Email, env.userB.Name, env.userB.Email)
	}
}

func TestSetStatusToggles(t *testing.T) {
	env := newTestEnv(t)
	event := env.createSlot(t, env.userA.ID, "Слот", time.Now(), false)

	updated, err := env.registry.SetStatus(context.Background(), event.ID, env.userA.ID, models.EventStatusSwappable)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != models.EventStatusSwappable {
		t.Errorf("статус %s, ожидали SWAPPABLE", updated.Status)
	}

	updated, err = env.registry.SetStatus(context.Background(), event.ID, env.userA.ID, models.EventStatusBusy)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != models.EventStatusBusy {
		t.Errorf("статус %s, ожидали BUSY", updated.Status)
	}
}

func TestSetStatusRejectsWrongOwner(t *testing.T) {
	env := newTestEnv(t)
	event := env.createSlot(t, env.userA.ID, "Слот", time.Now(), false)

	_, err := env.registry.SetStatus(context.Background(), event.ID, env.userB.ID, models.EventStatusSwappable)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидали ErrUnauthorized, получили %v", err)
	}

	if got := env.getEvent(t, event.ID).Status; got != models.EventStatusBusy {
		t.Errorf("статус изменился на %s", got)
	}
}

func TestSetStatusRejectsInvalidTarget(t *testing.T) {
	env := newTestEnv(t)
	event := env.createSlot(t, env.userA.ID, "Слот", time.Now(), false)

	for _, status := range []string{models.EventStatusSwapPending, "CANCELED", ""} {
		if _, err := env.registry.SetStatus(context.Background(), event.ID, env.userA.ID, status); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("статус %q: ожидали ErrInvalidTransition, получили %v", status, err)
		}
	}
}

func TestSetStatusNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.SetStatus(context.Background(), uuid.New(), env.userA.ID, models.EventStatusSwappable)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestRemove(t *testing.T) {
	env := newTestEnv(t)
	event := env.createSlot(t, env.userA.ID, "Слот", time.Now(), false)

	if err := env.registry.Remove(context.Background(), event.ID, env.userA.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := env.store.Events().GetByID(context.Background(), event.ID); err == nil {
		t.Error("слот должен быть удален")
	}
}

func TestRemoveRejectsWrongOwner(t *testing.T) {
	env := newTestEnv(t)
	event := env.createSlot(t, env.userA.ID, "Слот", time.Now(), false)

	if err := env.registry.Remove(context.Background(), event.ID, env.userB.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидали ErrUnauthorized, получили %v", err)
	}
}

func TestLockedSlotBlocksStatusAndRemoval(t *testing.T) {
	env := newTestEnv(t)

	mine := env.createSlot(t, env.userA.ID, "Мой", time.Now(), true)
	theirs := env.createSlot(t, env.userB.ID, "Чужой", time.Now().Add(2*time.Hour), true)

	if _, err := env.negotiator.Propose(context.Background(), env.userA.ID, mine.ID, theirs.ID); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Пока идет обмен, владелец не может ни сменить статус, ни удалить слот
	if _, err := env.registry.SetStatus(context.Background(), mine.ID, env.userA.ID, models.EventStatusBusy); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetStatus на заблокированном слоте: ожидали ErrInvalidTransition, получили %v", err)
	}
	if err := env.registry.Remove(context.Background(), theirs.ID, env.userB.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Remove заблокированного слота: ожидали ErrInvalidTransition, получили %v", err)
	}
}
