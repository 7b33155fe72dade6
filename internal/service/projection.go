package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/repository"
	apperrors "github.com/spec-kit/sow-service/pkg/util/errorutil"
)

// Paging bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListInput describes list filters, paging and ordering. Sort is a column
// name, optionally prefixed with "-" for descending order.
type ListInput struct {
	Statuses     []domain.TicketStatus
	ParentID     *string
	RootOnly     bool
	ContractorID *string
	Search       *string
	Sort         string
	Page         int
	PageSize     int
}

// Page is one page of resolved scopes of work.
type Page struct {
	Items    []domain.AggregateView
	Total    int
	Page     int
	PageSize int
}

// Get resolves a scope of work with its references and member tickets.
func (s *ScopeOfWorkService) Get(ctx context.Context, id string) (*domain.AggregateView, error) {
	sow, err := loadScopeOfWork(ctx, s.store, id)
	if err != nil {
		return nil, s.readErr(err)
	}
	view, err := project(ctx, s.store, sow)
	if err != nil {
		return nil, s.readErr(err)
	}
	return view, nil
}

// List returns a page of resolved scopes of work.
func (s *ScopeOfWorkService) List(ctx context.Context, input ListInput) (*Page, error) {
	filter, page, pageSize, err := buildFilter(input)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ScopesOfWork().List(ctx, filter)
	if err != nil {
		return nil, s.readErr(apperrors.NewInternalError(err))
	}

	views := make([]domain.AggregateView, 0, len(items))
	for i := range items {
		view, err := project(ctx, s.store, &items[i])
		if err != nil {
			return nil, s.readErr(err)
		}
		views = append(views, *view)
	}
	return &Page{Items: views, Total: total, Page: page, PageSize: pageSize}, nil
}

// History lists audit entries for a scope of work, oldest first.
func (s *ScopeOfWorkService) History(ctx context.Context, id string, limit, offset int) ([]domain.ScopeOfWorkHistory, error) {
	if _, err := loadScopeOfWork(ctx, s.store, id); err != nil {
		return nil, s.readErr(err)
	}
	entries, err := s.store.History().ListByScopeOfWork(ctx, id, limit, offset)
	if err != nil {
		return nil, s.readErr(apperrors.NewInternalError(err))
	}
	if entries == nil {
		entries = []domain.ScopeOfWorkHistory{}
	}
	return entries, nil
}

// Invoices lists invoices attached to a scope of work.
func (s *ScopeOfWorkService) Invoices(ctx context.Context, id string) ([]domain.InvoiceSummary, error) {
	if _, err := loadScopeOfWork(ctx, s.store, id); err != nil {
		return nil, s.readErr(err)
	}
	invoices, err := s.store.Invoices().ListByScopeOfWork(ctx, id)
	if err != nil {
		return nil, s.readErr(apperrors.NewInternalError(err))
	}
	if invoices == nil {
		invoices = []domain.InvoiceSummary{}
	}
	return invoices, nil
}

// Threads lists message threads attached to a scope of work.
func (s *ScopeOfWorkService) Threads(ctx context.Context, id string) ([]domain.ThreadSummary, error) {
	if _, err := loadScopeOfWork(ctx, s.store, id); err != nil {
		return nil, s.readErr(err)
	}
	threads, err := s.store.Threads().ListByScopeOfWork(ctx, id)
	if err != nil {
		return nil, s.readErr(apperrors.NewInternalError(err))
	}
	if threads == nil {
		threads = []domain.ThreadSummary{}
	}
	return threads, nil
}

func (s *ScopeOfWorkService) readErr(err error) error {
	if apperrors.IsInternal(err) {
		s.logger.Error("scope of work read failed", zap.Error(err))
	}
	return apperrors.MapError(err)
}

// project resolves references and loads members from the ticket side.
// Dangling contractor, user or parent references resolve to nil.
func project(ctx context.Context, store repository.Store, sow *domain.ScopeOfWork) (*domain.AggregateView, error) {
	view := &domain.AggregateView{ScopeOfWork: *sow, Children: []domain.ScopeOfWorkSummary{}}

	if sow.AssignedContractorID != nil {
		contractor, err := store.Contractors().GetByID(ctx, *sow.AssignedContractorID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		view.Contractor = contractor
	}
	if sow.AssignedUserID != nil {
		user, err := store.Users().GetByID(ctx, *sow.AssignedUserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		view.AssignedUser = user
	}
	if sow.ParentID != nil {
		parent, err := store.ScopesOfWork().GetByID(ctx, *sow.ParentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		if parent != nil {
			summary := parent.Summary()
			view.Parent = &summary
		}
	}

	children, err := store.ScopesOfWork().ListChildren(ctx, sow.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range children {
		view.Children = append(view.Children, children[i].Summary())
	}

	tickets, err := store.Tickets().ListByScopeOfWork(ctx, sow.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if tickets == nil {
		tickets = []domain.MaintenanceTicket{}
	}
	view.Tickets = tickets
	return view, nil
}

func buildFilter(input ListInput) (repository.ScopeOfWorkFilter, int, int, error) {
	for _, status := range input.Statuses {
		if !status.Valid() {
			return repository.ScopeOfWorkFilter{}, 0, 0, apperrors.NewValidationError("invalid status filter",
				map[string]any{"status": status})
		}
	}

	for field, id := range map[string]*string{"parent_id": input.ParentID, "contractor_id": input.ContractorID} {
		if id == nil {
			continue
		}
		if _, err := uuid.Parse(*id); err != nil {
			return repository.ScopeOfWorkFilter{}, 0, 0, apperrors.NewValidationError("invalid "+field+" filter",
				map[string]any{field: *id})
		}
	}

	sortField := strings.TrimSpace(input.Sort)
	desc := strings.HasPrefix(sortField, "-")
	sortField = strings.TrimPrefix(sortField, "-")
	if sortField == "" {
		sortField = "created_at"
	}
	if !repository.ValidSortField(sortField) {
		return repository.ScopeOfWorkFilter{}, 0, 0, apperrors.NewValidationError("invalid sort field",
			map[string]any{"sort": input.Sort})
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return repository.ScopeOfWorkFilter{
		Statuses:     input.Statuses,
		ParentID:     input.ParentID,
		RootOnly:     input.RootOnly,
		ContractorID: input.ContractorID,
		SearchTerm:   input.Search,
		SortField:    sortField,
		SortDesc:     desc,
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	}, page, pageSize, nil
}
