// Package memory содержит хранилище в памяти, реализующее storage.Store.
// Используется в тестах протокола обмена: транзакции работают через
// снимок состояния, а хук FailWrite позволяет смоделировать сбой
// фиксации на любой записи внутри транзакции.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotswap/slotswap-api/internal/models"
	"github.com/slotswap/slotswap-api/internal/storage"
)

type state struct {
	events  map[uuid.UUID]models.Event
	swaps   map[uuid.UUID]models.SwapRequest
	locks   map[uuid.UUID]models.SlotLock
	users   map[uuid.UUID]models.User
	tgIndex map[int64]uuid.UUID
}

func newState() *state {
	return &state{
		events:  make(map[uuid.UUID]models.Event),
		swaps:   make(map[uuid.UUID]models.SwapRequest),
		locks:   make(map[uuid.UUID]models.SlotLock),
		users:   make(map[uuid.UUID]models.User),
		tgIndex: make(map[int64]uuid.UUID),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.events {
		c.events[k] = v
	}
	for k, v := range st.swaps {
		c.swaps[k] = v
	}
	for k, v := range st.locks {
		c.locks[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.tgIndex {
		c.tgIndex[k] = v
	}
	return c
}

// Store реализует storage.Store в памяти
type Store struct {
	mu sync.Mutex
	st *state

	// FailWrite, если задан, вызывается перед каждой мутацией внутри
	// транзакции с её порядковым номером (начиная с 1); возврат ошибки
	// прерывает транзакцию и откатывает все изменения
	FailWrite func(writeNum int) error
	writes    int
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{st: newState()}
}

// AddUser добавляет пользователя напрямую, минуя транзакции
func (s *Store) AddUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[user.ID] = user
}

func (s *Store) Events() storage.EventRepository { return &eventRepo{s: s, lock: true} }
func (s *Store) Swaps() storage.SwapRequestRepository { return &swapRepo{s: s, lock: true} }
func (s *Store) Locks() storage.LockRepository { return &lockRepo{s: s, lock: true} }
func (s *Store) Users() storage.UserRepository { return &userRepo{s: s, lock: true} }

// WithinTx выполняет fn над текущим состоянием; при ошибке состояние
// восстанавливается из снимка, сделанного перед запуском fn
func (s *Store) WithinTx(_ context.Context, fn func(storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	s.writes = 0

	if err := fn(&txView{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// txView — представление хранилища внутри транзакции: мьютекс уже
// удерживается, мутации проходят через счетчик записей
type txView struct {
	s *Store
}

func (t *txView) Events() storage.EventRepository { return &eventRepo{s: t.s, tx: true} }
func (t *txView) Swaps() storage.SwapRequestRepository { return &swapRepo{s: t.s, tx: true} }
func (t *txView) Locks() storage.LockRepository { return &lockRepo{s: t.s, tx: true} }
func (t *txView) Users() storage.UserRepository { return &userRepo{s: t.s, tx: true} }

func (t *txView) WithinTx(_ context.Context, fn func(storage.Store) error) error {
	return fn(t)
}

// write учитывает мутацию внутри транзакции и применяет FailWrite
func (s *Store) write(tx bool) error {
	if !tx {
		return nil
	}
	s.writes++
	if s.FailWrite != nil {
		return s.FailWrite(s.writes)
	}
	return nil
}

type eventRepo struct {
	s    *Store
	lock bool
	tx   bool
}

func (r *eventRepo) Create(_ context.Context, event *models.Event) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	stored := *event
	stored.Owner = nil
	r.s.st.events[event.ID] = stored
	return nil
}

func (r *eventRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	event, ok := r.s.st.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &event, nil
}

func (r *eventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.GetByID(ctx, id)
}

func (r *eventRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	return r.list(func(e models.Event) bool { return e.OwnerID == ownerID }), nil
}

func (r *eventRepo) ListSwappableByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	return r.list(func(e models.Event) bool {
		return e.OwnerID == ownerID && e.Status == models.EventStatusSwappable
	}), nil
}

func (r *eventRepo) ListSwappableExcluding(_ context.Context, ownerID uuid.UUID) ([]models.Event, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	events := r.list(func(e models.Event) bool {
		return e.OwnerID != ownerID && e.Status == models.EventStatusSwappable
	})
	for i := range events {
		if owner, ok := r.s.st.users[events[i].OwnerID]; ok {
			o := owner
			events[i].Owner = &o
		}
	}
	return events, nil
}

func (r *eventRepo) list(match func(models.Event) bool) []models.Event {
	var events []models.Event
	for _, e := range r.s.st.events {
		if match(e) {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events
}

func (r *eventRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	event, ok := r.s.st.events[id]
	if !ok {
		return storage.ErrNotFound
	}
	event.Status = status
	event.UpdatedAt = time.Now()
	r.s.st.events[id] = event
	return nil
}

func (r *eventRepo) Transfer(_ context.Context, id uuid.UUID, newOwnerID uuid.UUID, status string) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	event, ok := r.s.st.events[id]
	if !ok {
		return storage.ErrNotFound
	}
	event.OwnerID = newOwnerID
	event.Status = status
	event.UpdatedAt = time.Now()
	r.s.st.events[id] = event
	return nil
}

func (r *eventRepo) Delete(_ context.Context, id uuid.UUID) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	if _, ok := r.s.st.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.s.st.events, id)
	return nil
}

type swapRepo struct {
	s    *Store
	lock bool
	tx   bool
}

func (r *swapRepo) Create(_ context.Context, request *models.SwapRequest) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	stored := *request
	stored.OfferedSlot = nil
	stored.RequestedSlot = nil
	stored.Requester = nil
	stored.Responder = nil
	r.s.st.swaps[request.ID] = stored
	return nil
}

func (r *swapRepo) GetByID(_ context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	request, ok := r.s.st.swaps[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &request, nil
}

func (r *swapRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *swapRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	request, ok := r.s.st.swaps[id]
	if !ok {
		return storage.ErrNotFound
	}
	request.Status = status
	request.UpdatedAt = time.Now()
	r.s.st.swaps[id] = request
	return nil
}

func (r *swapRepo) ListIncomingPending(_ context.Context, responderID uuid.UUID) ([]models.SwapRequest, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	return r.list(func(sr models.SwapRequest) bool {
		return sr.ResponderID == responderID && sr.Status == models.SwapStatusPending
	}), nil
}

func (r *swapRepo) ListOutgoing(_ context.Context, requesterID uuid.UUID) ([]models.SwapRequest, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	return r.list(func(sr models.SwapRequest) bool {
		return sr.RequesterID == requesterID
	}), nil
}

func (r *swapRepo) list(match func(models.SwapRequest) bool) []models.SwapRequest {
	var requests []models.SwapRequest
	for _, sr := range r.s.st.swaps {
		if match(sr) {
			requests = append(requests, sr)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests
}

type lockRepo struct {
	s    *Store
	lock bool
	tx   bool
}

func (r *lockRepo) Acquire(_ context.Context, slotLock *models.SlotLock) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	r.s.st.locks[slotLock.EventID] = *slotLock
	return nil
}

func (r *lockRepo) Release(_ context.Context, eventID uuid.UUID) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return err
	}
	delete(r.s.st.locks, eventID)
	return nil
}

func (r *lockRepo) ListExpired(_ context.Context, cutoff time.Time) ([]models.SlotLock, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	var locks []models.SlotLock
	for _, l := range r.s.st.locks {
		if !l.ExpiresAt.After(cutoff) {
			locks = append(locks, l)
		}
	}
	return locks, nil
}

type userRepo struct {
	s    *Store
	lock bool
	tx   bool
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	user, ok := r.s.st.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}

func (r *userRepo) UpsertTelegram(_ context.Context, profile *models.TelegramProfile) (*models.User, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	if err := r.s.write(r.tx); err != nil {
		return nil, err
	}
	if id, ok := r.s.st.tgIndex[profile.TelegramID]; ok {
		user := r.s.st.users[id]
		user.Name = profile.Name
		user.AvatarURL = profile.PhotoURL
		user.UpdatedAt = time.Now()
		r.s.st.users[id] = user
		return &user, nil
	}
	user := models.User{
		ID:        uuid.New(),
		Name:      profile.Name,
		AvatarURL: profile.PhotoURL,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.s.st.users[user.ID] = user
	r.s.st.tgIndex[profile.TelegramID] = user.ID
	return &user, nil
}
