package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotswap/slotswap-api/internal/storage"
)

// querier покрывает общие методы pgxpool.Pool и pgx.Tx,
// чтобы репозитории работали и внутри, и вне транзакции
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store реализует storage.Store поверх PostgreSQL
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// NewStore создает новый экземпляр Store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Events() storage.EventRepository { return &eventRepo{q: s.q} }
func (s *Store) Swaps() storage.SwapRequestRepository { return &swapRepo{q: s.q} }
func (s *Store) Locks() storage.LockRepository { return &lockRepo{q: s.q} }
func (s *Store) Users() storage.UserRepository { return &userRepo{q: s.q} }

// WithinTx выполняет fn в транзакции с уровнем изоляции serializable.
// Вложенный вызов переиспользует уже открытую транзакцию
func (s *Store) WithinTx(ctx context.Context, fn func(storage.Store) error) error {
	if _, ok := s.q.(pgx.Tx); ok {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, q: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// mapErr преобразует ошибки pgx в ошибки слоя хранения
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
