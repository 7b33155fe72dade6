package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/repository"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	ticket := store.PutTicket(domain.MaintenanceTicket{Status: domain.TicketStatusOpen})
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx repository.Store) error {
		sow := &domain.ScopeOfWork{Number: "SOW2025-000001", Status: domain.TicketStatusOpen}
		require.NoError(t, tx.ScopesOfWork().Create(ctx, sow))
		_, err := tx.Tickets().UpdateMany(ctx, repository.TicketFilter{IDs: []string{ticket.ID}},
			repository.TicketPatch{ScopeOfWorkID: &sow.ID})
		require.NoError(t, err)

		inside, err := tx.Tickets().GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.NotNil(t, inside.ScopeOfWorkID, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, ok := store.TicketRaw(ticket.ID)
	require.True(t, ok)
	assert.Nil(t, stored.ScopeOfWorkID)
	exists, err := store.ScopesOfWork().NumberExists(ctx, "SOW2025-000001")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWithinTxCommits(t *testing.T) {
	store := New()
	ctx := context.Background()

	var id string
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		sow := &domain.ScopeOfWork{Number: "SOW2025-000001", Status: domain.TicketStatusOpen}
		if err := tx.ScopesOfWork().Create(ctx, sow); err != nil {
			return err
		}
		id = sow.ID
		return nil
	})
	require.NoError(t, err)

	sow, err := store.ScopesOfWork().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "SOW2025-000001", sow.Number)
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.ScopesOfWork().Create(ctx, &domain.ScopeOfWork{Number: "SOW2025-000001"}))

	err := store.ScopesOfWork().Create(ctx, &domain.ScopeOfWork{Number: "SOW2025-000001"})
	assert.ErrorIs(t, err, repository.ErrDuplicateNumber)
}

func TestSoftDeletedScopesStillCountForNumbering(t *testing.T) {
	store := New()
	ctx := context.Background()
	sow := &domain.ScopeOfWork{Number: "SOW2025-000001"}
	require.NoError(t, store.ScopesOfWork().Create(ctx, sow))
	require.NoError(t, store.ScopesOfWork().SoftDelete(ctx, sow.ID))

	_, err := store.ScopesOfWork().GetByID(ctx, sow.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	exists, err := store.ScopesOfWork().NumberExists(ctx, sow.Number)
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := store.ScopesOfWork().CountCreatedBetween(ctx, sow.CreatedAt.Add(-1), sow.CreatedAt.Add(1))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, store.ScopesOfWork().SoftDelete(ctx, sow.ID), repository.ErrNotFound)
}

func TestUpdateManyUnownedSkipsClaimedTickets(t *testing.T) {
	store := New()
	ctx := context.Background()
	owner := "00000000-0000-0000-0000-000000000001"
	claimed := store.PutTicket(domain.MaintenanceTicket{Status: domain.TicketStatusOpen, ScopeOfWorkID: &owner})
	free := store.PutTicket(domain.MaintenanceTicket{Status: domain.TicketStatusOpen})
	next := "00000000-0000-0000-0000-000000000002"

	affected, err := store.Tickets().UpdateMany(ctx,
		repository.TicketFilter{IDs: []string{claimed.ID, free.ID}, Unowned: true},
		repository.TicketPatch{ScopeOfWorkID: &next})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	stored, _ := store.TicketRaw(claimed.ID)
	assert.Equal(t, owner, *stored.ScopeOfWorkID)
	stored, _ = store.TicketRaw(free.ID)
	assert.Equal(t, next, *stored.ScopeOfWorkID)
}

func TestUpdateManyRequiresFilter(t *testing.T) {
	store := New()
	status := domain.TicketStatusDone

	_, err := store.Tickets().UpdateMany(context.Background(), repository.TicketFilter{}, repository.TicketPatch{Status: &status})
	assert.Error(t, err)
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithinTx(ctx, func(repository.Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
