package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sow-service/internal/domain"
	apperrors "github.com/spec-kit/sow-service/pkg/util/errorutil"
)

func TestGetResolvesReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.create(nil, f.ticket(domain.TicketStatusOpen))
	child := f.create(&root.ScopeOfWork.ID, f.ticket(domain.TicketStatusOpen))
	_, err := f.svc.AssignContractor(ctx, f.landlord, child.ScopeOfWork.ID, f.contractor.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, f.landlord, child.ScopeOfWork.ID, f.worker.ID)
	require.NoError(t, err)

	view, err := f.svc.Get(ctx, child.ScopeOfWork.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Contractor)
	assert.Equal(t, "Fixit Ltd", view.Contractor.CompanyName)
	require.NotNil(t, view.AssignedUser)
	assert.Equal(t, f.worker.ID, view.AssignedUser.ID)
	require.NotNil(t, view.Parent)
	assert.Equal(t, root.ScopeOfWork.Number, view.Parent.Number)
	assert.Equal(t, domain.TicketStatusInProgress, view.Parent.Status)
	assert.NotNil(t, view.Children)
	assert.Empty(t, view.Children)
	assert.Len(t, view.Tickets, 1)

	_, err = f.svc.Get(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetToleratesDanglingReferences(t *testing.T) {
	f := newFixture(t)
	sow := f.store.PutScopeOfWork(domain.ScopeOfWork{
		Number:               "SOW2025-000042",
		Status:               domain.TicketStatusOpen,
		AssignedContractorID: strPtr("gone-contractor"),
		AssignedUserID:       strPtr("gone-user"),
		ParentID:             strPtr("gone-parent"),
	})

	view, err := f.svc.Get(context.Background(), sow.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Contractor)
	assert.Nil(t, view.AssignedUser)
	assert.Nil(t, view.Parent)
	assert.NotNil(t, view.Tickets)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.create(nil, f.ticket(domain.TicketStatusOpen))
	child := f.create(&root.ScopeOfWork.ID, f.ticket(domain.TicketStatusOpen))
	other := f.create(nil, f.ticket(domain.TicketStatusOpen))
	_, err := f.svc.AssignContractor(ctx, f.landlord, other.ScopeOfWork.ID, f.contractor.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, f.landlord, other.ScopeOfWork.ID, f.worker.ID)
	require.NoError(t, err)

	numbers := func(page *Page) []string {
		out := make([]string, 0, len(page.Items))
		for _, item := range page.Items {
			out = append(out, item.ScopeOfWork.Number)
		}
		return out
	}

	all, err := f.svc.List(ctx, ListInput{Sort: "number"})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, []string{"SOW2025-000001", "SOW2025-000003", "SUB-SOW2025-000002"}, numbers(all))

	desc, err := f.svc.List(ctx, ListInput{Sort: "-number"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SUB-SOW2025-000002", "SOW2025-000003", "SOW2025-000001"}, numbers(desc))

	roots, err := f.svc.List(ctx, ListInput{RootOnly: true, Sort: "number"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SOW2025-000001", "SOW2025-000003"}, numbers(roots))

	children, err := f.svc.List(ctx, ListInput{ParentID: &root.ScopeOfWork.ID})
	require.NoError(t, err)
	require.Len(t, children.Items, 1)
	assert.Equal(t, child.ScopeOfWork.ID, children.Items[0].ScopeOfWork.ID)

	inProgress, err := f.svc.List(ctx, ListInput{Statuses: []domain.TicketStatus{domain.TicketStatusInProgress}})
	require.NoError(t, err)
	assert.Equal(t, []string{"SOW2025-000003"}, numbers(inProgress))

	byContractor, err := f.svc.List(ctx, ListInput{ContractorID: &f.contractor.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"SOW2025-000003"}, numbers(byContractor))

	search, err := f.svc.List(ctx, ListInput{Search: strPtr("sub-"), Sort: "number"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SUB-SOW2025-000002"}, numbers(search))

	paged, err := f.svc.List(ctx, ListInput{Sort: "number", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, paged.Total)
	assert.Equal(t, 2, paged.Page)
	assert.Equal(t, 2, paged.PageSize)
	assert.Equal(t, []string{"SUB-SOW2025-000002"}, numbers(paged))

	empty, err := f.svc.List(ctx, ListInput{Page: 9})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestListRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, ListInput{Statuses: []domain.TicketStatus{"SOMETIMES"}})
	assert.True(t, apperrors.IsInvariantViolation(err))

	_, err = f.svc.List(ctx, ListInput{Sort: "-password"})
	assert.True(t, apperrors.IsInvariantViolation(err))

	_, err = f.svc.List(ctx, ListInput{ParentID: strPtr("not-a-uuid")})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)
	assert.Equal(t, "not-a-uuid", apperrors.ToDomainError(err).Details["parent_id"])

	_, err = f.svc.List(ctx, ListInput{ContractorID: strPtr("fixit")})
	assert.Equal(t, apperrors.CodeValidation, apperrors.ToDomainError(err).Code)
}

func TestListClampsPageSize(t *testing.T) {
	f := newFixture(t)

	page, err := f.svc.List(context.Background(), ListInput{PageSize: 10_000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
	assert.Equal(t, 1, page.Page)
}

func TestHistoryIsOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.ticket(domain.TicketStatusOpen)
	view := f.create(nil, ticket)
	id := view.ScopeOfWork.ID
	_, err := f.svc.AssignContractor(ctx, f.landlord, id, f.contractor.ID)
	require.NoError(t, err)
	_, err = f.svc.RemoveTicket(ctx, f.landlord, id, ticket.ID)
	require.NoError(t, err)

	entries, err := f.svc.History(ctx, id, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ChangeTypeCreated, entries[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeContractor, entries[1].ChangeType)
	assert.Equal(t, domain.ChangeTypeTicketRemoved, entries[2].ChangeType)
	assert.Equal(t, f.landlord.UserID, *entries[0].ChangedByID)

	paged, err := f.svc.History(ctx, id, 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, domain.ChangeTypeContractor, paged[0].ChangeType)

	_, err = f.svc.History(ctx, "missing", 0, 0)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestInvoicesAndThreads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.create(nil, f.ticket(domain.TicketStatusOpen))
	id := view.ScopeOfWork.ID
	f.store.PutInvoice(domain.InvoiceSummary{ScopeOfWorkID: id, Number: "INV-1", Status: "DRAFT", AmountCents: 12500, Currency: "EUR"})
	f.store.PutInvoice(domain.InvoiceSummary{ScopeOfWorkID: "other", Number: "INV-2"})
	f.store.PutThread(domain.ThreadSummary{ScopeOfWorkID: id, Subject: "access to unit", MessageCount: 3})

	invoices, err := f.svc.Invoices(ctx, id)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-1", invoices[0].Number)

	threads, err := f.svc.Threads(ctx, id)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 3, threads[0].MessageCount)

	other := f.create(nil, f.ticket(domain.TicketStatusOpen))
	none, err := f.svc.Threads(ctx, other.ScopeOfWork.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
