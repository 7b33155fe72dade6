package service

import (
	"context"

	"github.com/spec-kit/sow-service/internal/config"
	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/repository"
)

func withStore(wrap func(repository.TransactionalStore) repository.TransactionalStore) fixtureOption {
	return func(deps *ScopeOfWorkDependencies, _ *config.SequenceConfig) {
		deps.Store = wrap(deps.Store)
	}
}

// interceptStore swaps repositories on the store and inside every
// transaction it opens.
type interceptStore struct {
	repository.TransactionalStore
	tickets func(repository.TicketRepository) repository.TicketRepository
	scopes  func(repository.ScopeOfWorkRepository) repository.ScopeOfWorkRepository
}

func (s *interceptStore) Tickets() repository.TicketRepository {
	return s.wrapTickets(s.TransactionalStore.Tickets())
}

func (s *interceptStore) ScopesOfWork() repository.ScopeOfWorkRepository {
	return s.wrapScopes(s.TransactionalStore.ScopesOfWork())
}

func (s *interceptStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.TransactionalStore.WithinTx(ctx, func(tx repository.Store) error {
		return fn(interceptTx{Store: tx, s: s})
	})
}

func (s *interceptStore) wrapTickets(r repository.TicketRepository) repository.TicketRepository {
	if s.tickets == nil {
		return r
	}
	return s.tickets(r)
}

func (s *interceptStore) wrapScopes(r repository.ScopeOfWorkRepository) repository.ScopeOfWorkRepository {
	if s.scopes == nil {
		return r
	}
	return s.scopes(r)
}

type interceptTx struct {
	repository.Store
	s *interceptStore
}

func (tx interceptTx) Tickets() repository.TicketRepository {
	return tx.s.wrapTickets(tx.Store.Tickets())
}

func (tx interceptTx) ScopesOfWork() repository.ScopeOfWorkRepository {
	return tx.s.wrapScopes(tx.Store.ScopesOfWork())
}

// staleTickets answers reads from snapshots taken before another writer
// claimed the tickets. Writes go to the real repository.
type staleTickets struct {
	repository.TicketRepository
	snapshots map[string]domain.MaintenanceTicket
}

func (r staleTickets) GetByID(ctx context.Context, id string) (*domain.MaintenanceTicket, error) {
	if ticket, ok := r.snapshots[id]; ok {
		return &ticket, nil
	}
	return r.TicketRepository.GetByID(ctx, id)
}

func (r staleTickets) FindManyByIDs(ctx context.Context, ids []string) ([]domain.MaintenanceTicket, error) {
	found, err := r.TicketRepository.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range found {
		if ticket, ok := r.snapshots[found[i].ID]; ok {
			found[i] = ticket
		}
	}
	return found, nil
}

// takenNumbers rejects every insert as if another writer committed the
// same number first.
type takenNumbers struct {
	repository.ScopeOfWorkRepository
}

func (takenNumbers) Create(context.Context, *domain.ScopeOfWork) error {
	return repository.ErrDuplicateNumber
}
