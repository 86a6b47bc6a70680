package postgres

import (
	"context"
	"database/sql"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// Transactor implements store.Transactor by binding each store to a
// transaction started with store.RunInTransaction.
type Transactor struct {
	db     *sql.DB
	stores store.Stores
}

// NewTransactor returns a Transactor over db. The given stores are rebound
// with WithTx for every unit of work.
func NewTransactor(db *sql.DB, stores store.Stores) *Transactor {
	return &Transactor{db: db, stores: stores}
}

var _ store.Transactor = (*Transactor)(nil)

// InTx implements store.Transactor.InTx
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	return store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Tasks:     t.stores.Tasks.WithTx(tx),
			Rules:     t.stores.Rules.WithTx(tx),
			Reminders: t.stores.Reminders.WithTx(tx),
			Outbox:    t.stores.Outbox.WithTx(tx),
		})
	})
}
