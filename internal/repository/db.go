package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the querier subset shared by *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside or outside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the entity repositories over one querier.
type Store struct {
	Tickets    TicketRepository
	Agents     AgentRepository
	Alerts     AlertRepository
	Users      UserRepository
	Messages   TicketMessageRepository
	Activities TicketActivityRepository
}

// NewStore builds a Store whose repositories share the given querier.
func NewStore(db DB) Store {
	return Store{
		Tickets:    NewTicketRepository(db),
		Agents:     NewAgentRepository(db),
		Alerts:     NewAlertRepository(db),
		Users:      NewUserRepository(db),
		Messages:   NewTicketMessageRepository(db),
		Activities: NewTicketActivityRepository(db),
	}
}

// TxRunner executes fn against a Store bound to a single transaction. When
// fn returns an error the transaction rolls back, so a ticket mutation and
// its alert fan-out persist together or not at all.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type pgxTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a pgx-backed TxRunner.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &pgxTxRunner{pool: pool}
}

func (r *pgxTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, NewStore(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
