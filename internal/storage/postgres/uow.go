package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Do выполняет fn в транзакции READ COMMITTED. Конфликты версий определяются
// условием version = $n в UPDATE, группы флагов сериализуются pg_advisory_xact_lock.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return mapWriteError("commit", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockGroup(ctx context.Context, key string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock group %s: %w", key, err)
	}
	return nil
}

func (t *pgTx) Products() domain.ProductRepository { return productRepository{tx: t.tx} }
func (t *pgTx) Images() domain.ImageRepository { return imageRepository{tx: t.tx} }
func (t *pgTx) Addresses() domain.AddressRepository { return addressRepository{tx: t.tx} }
func (t *pgTx) Carts() domain.CartRepository { return cartRepository{tx: t.tx} }
func (t *pgTx) Orders() domain.OrderRepository { return orderRepository{tx: t.tx} }
func (t *pgTx) Outbox() domain.OutboxWriter { return outboxWriter{q: t.tx} }

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.Tx         = (*pgTx)(nil)
)
