package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation    = "23505"
	pgInvalidTextFormat  = "22P02"
	numberConstraintName = "scopes_of_work_number_key"
)

type pgStore struct {
	scopes      ScopeOfWorkRepository
	tickets     TicketRepository
	users       UserRepository
	contractors ContractorRepository
	history     ScopeOfWorkHistoryRepository
	invoices    InvoiceRepository
	threads     ThreadRepository
}

func newPgStore(db DBTX) *pgStore {
	return &pgStore{
		scopes:      NewScopeOfWorkRepository(db),
		tickets:     NewTicketRepository(db),
		users:       NewUserRepository(db),
		contractors: NewContractorRepository(db),
		history:     NewScopeOfWorkHistoryRepository(db),
		invoices:    NewInvoiceRepository(db),
		threads:     NewThreadRepository(db),
	}
}

func (s *pgStore) ScopesOfWork() ScopeOfWorkRepository { return s.scopes }
func (s *pgStore) Tickets() TicketRepository { return s.tickets }
func (s *pgStore) Users() UserRepository { return s.users }
func (s *pgStore) Contractors() ContractorRepository { return s.contractors }
func (s *pgStore) History() ScopeOfWorkHistoryRepository { return s.history }
func (s *pgStore) Invoices() InvoiceRepository { return s.invoices }
func (s *pgStore) Threads() ThreadRepository { return s.threads }

// PostgresStore is the pgx-backed TransactionalStore.
type PostgresStore struct {
	*pgStore
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgStore: newPgStore(pool), pool: pool}
}

// WithinTx runs fn inside a single database transaction. pgx.BeginFunc rolls
// back on any error or panic and commits otherwise.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newPgStore(tx))
	})
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == numberConstraintName || strings.Contains(pgErr.ConstraintName, "number") {
				return ErrDuplicateNumber
			}
		case pgInvalidTextFormat:
			// malformed uuid: the id cannot resolve to any row
			return ErrNotFound
		}
	}
	return err
}
