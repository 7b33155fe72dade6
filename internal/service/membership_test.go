package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/repository"
	apperrors "github.com/spec-kit/sow-service/pkg/util/errorutil"
)

func TestMembershipExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shared := f.ticket(domain.TicketStatusOpen)
	first := f.create(nil, shared)
	second := f.create(nil, f.ticket(domain.TicketStatusOpen))

	_, err := f.svc.Create(ctx, f.landlord, CreateInput{TicketIDs: []string{shared.ID}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.ToDomainError(err).Code)

	_, err = f.svc.AddTicket(ctx, f.landlord, second.ScopeOfWork.ID, shared.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.ToDomainError(err).Code)
	assert.Equal(t, first.ScopeOfWork.ID, apperrors.ToDomainError(err).Details["scope_of_work_id"])

	_, err = f.svc.AddTicket(ctx, f.landlord, first.ScopeOfWork.ID, shared.ID)
	require.Error(t, err, "re-adding to the same scope is rejected")
	assert.Equal(t, apperrors.CodeConflict, apperrors.ToDomainError(err).Code)

	assert.Equal(t, first.ScopeOfWork.ID, *f.storedTicket(shared.ID).ScopeOfWorkID)
}

func TestIneligibleTicketsCannotJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.create(nil, f.ticket(domain.TicketStatusOpen))

	for _, status := range []domain.TicketStatus{
		domain.TicketStatusDraft,
		domain.TicketStatusInProgress,
		domain.TicketStatusDone,
		domain.TicketStatusClosed,
	} {
		ticket := f.ticket(status)

		_, err := f.svc.Create(ctx, f.landlord, CreateInput{TicketIDs: []string{ticket.ID}})
		assert.True(t, apperrors.IsInvariantViolation(err), "create with %s ticket", status)

		_, err = f.svc.AddTicket(ctx, f.landlord, view.ScopeOfWork.ID, ticket.ID)
		assert.True(t, apperrors.IsInvariantViolation(err), "add %s ticket", status)
	}
}

func TestAddTicketPicksUpAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.create(nil, f.ticket(domain.TicketStatusOpen))
	_, err := f.svc.AssignContractor(ctx, f.landlord, view.ScopeOfWork.ID, f.contractor.ID)
	require.NoError(t, err)

	extra := f.ticket(domain.TicketStatusInReview)
	updated, err := f.svc.AddTicket(ctx, f.landlord, view.ScopeOfWork.ID, extra.ID)
	require.NoError(t, err)
	assert.Len(t, updated.Tickets, 2)

	stored := f.storedTicket(extra.ID)
	require.NotNil(t, stored.ScopeOfWorkID)
	assert.Equal(t, view.ScopeOfWork.ID, *stored.ScopeOfWorkID)
	require.NotNil(t, stored.AssignedContractorID)
	assert.Equal(t, f.contractor.ID, *stored.AssignedContractorID)
	assert.NotNil(t, stored.AssignedDate)
}

func TestAddTicketWithoutAssignment(t *testing.T) {
	f := newFixture(t)
	view := f.create(nil, f.ticket(domain.TicketStatusOpen))
	extra := f.ticket(domain.TicketStatusOpen)

	_, err := f.svc.AddTicket(context.Background(), f.landlord, view.ScopeOfWork.ID, extra.ID)
	require.NoError(t, err)
	assert.Nil(t, f.storedTicket(extra.ID).AssignedContractorID)
}

func TestRemoveTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.ticket(domain.TicketStatusOpen)
	drop := f.ticket(domain.TicketStatusOpen)
	view := f.create(nil, keep, drop)
	other := f.create(nil, f.ticket(domain.TicketStatusOpen))

	_, err := f.svc.RemoveTicket(ctx, f.landlord, other.ScopeOfWork.ID, drop.ID)
	assert.True(t, apperrors.IsNotFound(err), "ticket belongs elsewhere")

	updated, err := f.svc.RemoveTicket(ctx, f.landlord, view.ScopeOfWork.ID, drop.ID)
	require.NoError(t, err)
	require.Len(t, updated.Tickets, 1)
	assert.Equal(t, keep.ID, updated.Tickets[0].ID)
	assert.Nil(t, f.storedTicket(drop.ID).ScopeOfWorkID)

	_, err = f.svc.RemoveTicket(ctx, f.landlord, view.ScopeOfWork.ID, drop.ID)
	assert.True(t, apperrors.IsNotFound(err))

	rejoined, err := f.svc.AddTicket(ctx, f.landlord, other.ScopeOfWork.ID, drop.ID)
	require.NoError(t, err)
	assert.Len(t, rejoined.Tickets, 2)
}

func TestCreateDeduplicatesTicketIDs(t *testing.T) {
	f := newFixture(t)
	ticket := f.ticket(domain.TicketStatusOpen)

	view, err := f.svc.Create(context.Background(), f.landlord, CreateInput{TicketIDs: []string{ticket.ID, ticket.ID}})
	require.NoError(t, err)
	assert.Len(t, view.Tickets, 1)
}

func TestClaimFailsWhenTicketWasTakenAfterTheCheck(t *testing.T) {
	snapshots := map[string]domain.MaintenanceTicket{}
	f := newFixture(t, withStore(func(inner repository.TransactionalStore) repository.TransactionalStore {
		return &interceptStore{
			TransactionalStore: inner,
			tickets: func(r repository.TicketRepository) repository.TicketRepository {
				return staleTickets{TicketRepository: r, snapshots: snapshots}
			},
		}
	}))
	ctx := context.Background()
	shared := f.ticket(domain.TicketStatusOpen)
	snapshots[shared.ID] = shared
	first := f.create(nil, shared)
	second := f.create(nil, f.ticket(domain.TicketStatusOpen))

	_, err := f.svc.AddTicket(ctx, f.landlord, second.ScopeOfWork.ID, shared.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.ToDomainError(err).Code)

	_, err = f.svc.Create(ctx, f.landlord, CreateInput{TicketIDs: []string{shared.ID}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.ToDomainError(err).Code)

	assert.Equal(t, first.ScopeOfWork.ID, *f.storedTicket(shared.ID).ScopeOfWorkID)
	page, err := f.svc.List(ctx, ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total, "the rejected create left no empty scope behind")
	assert.Equal(t, []events.EventType{events.EventScopeOfWorkCreated, events.EventScopeOfWorkCreated}, f.recorder.types())
}
