package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/repository"
)

type scopeRepo struct{ v *view }

func (r scopeRepo) Create(ctx context.Context, sow *domain.ScopeOfWork) error {
	return r.v.mutate(func(d *data) error {
		for _, existing := range d.scopes {
			if existing.Number == sow.Number {
				return repository.ErrDuplicateNumber
			}
		}
		now := r.v.now()
		sow.ID = uuid.NewString()
		sow.CreatedAt = now
		sow.UpdatedAt = now
		d.scopes[sow.ID] = *sow
		return nil
	})
}

func (r scopeRepo) Update(ctx context.Context, sow *domain.ScopeOfWork) error {
	return r.v.mutate(func(d *data) error {
		existing, ok := d.scopes[sow.ID]
		if !ok || existing.DeletedAt != nil {
			return repository.ErrNotFound
		}
		existing.Status = sow.Status
		existing.AssignedContractorID = sow.AssignedContractorID
		existing.AssignedUserID = sow.AssignedUserID
		existing.AssignedBy = sow.AssignedBy
		existing.AssignedDate = sow.AssignedDate
		existing.RefuseReason = sow.RefuseReason
		existing.Notes = sow.Notes
		existing.UpdatedAt = r.v.now()
		d.scopes[sow.ID] = existing
		sow.UpdatedAt = existing.UpdatedAt
		return nil
	})
}

func (r scopeRepo) GetByID(ctx context.Context, id string) (*domain.ScopeOfWork, error) {
	var out *domain.ScopeOfWork
	err := r.v.read(func(d *data) error {
		sow, ok := d.scopes[id]
		if !ok || sow.DeletedAt != nil {
			return repository.ErrNotFound
		}
		out = &sow
		return nil
	})
	return out, err
}

func (r scopeRepo) ListChildren(ctx context.Context, parentID string) ([]domain.ScopeOfWork, error) {
	var out []domain.ScopeOfWork
	err := r.v.read(func(d *data) error {
		for _, sow := range d.scopes {
			if sow.DeletedAt == nil && sow.ParentID != nil && *sow.ParentID == parentID {
				out = append(out, sow)
			}
		}
		return nil
	})
	sortScopes(out, "created_at", false)
	return out, err
}

func (r scopeRepo) CountChildren(ctx context.Context, parentID string) (int, error) {
	children, err := r.ListChildren(ctx, parentID)
	return len(children), err
}

func (r scopeRepo) ClearParent(ctx context.Context, parentID string) (int64, error) {
	var affected int64
	err := r.v.mutate(func(d *data) error {
		for id, sow := range d.scopes {
			if sow.DeletedAt == nil && sow.ParentID != nil && *sow.ParentID == parentID {
				sow.ParentID = nil
				sow.UpdatedAt = r.v.now()
				d.scopes[id] = sow
				affected++
			}
		}
		return nil
	})
	return affected, err
}

func (r scopeRepo) SoftDelete(ctx context.Context, id string) error {
	return r.v.mutate(func(d *data) error {
		sow, ok := d.scopes[id]
		if !ok || sow.DeletedAt != nil {
			return repository.ErrNotFound
		}
		now := r.v.now()
		sow.DeletedAt = &now
		sow.UpdatedAt = now
		d.scopes[id] = sow
		return nil
	})
}

func (r scopeRepo) List(ctx context.Context, filter repository.ScopeOfWorkFilter) ([]domain.ScopeOfWork, int, error) {
	var matched []domain.ScopeOfWork
	err := r.v.read(func(d *data) error {
		for _, sow := range d.scopes {
			if matchesFilter(sow, filter) {
				matched = append(matched, sow)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sortScopes(matched, filter.SortField, filter.SortDesc)

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.ScopeOfWork{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r scopeRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	count := 0
	err := r.v.read(func(d *data) error {
		for _, sow := range d.scopes {
			if !sow.CreatedAt.Before(from) && sow.CreatedAt.Before(to) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r scopeRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	exists := false
	err := r.v.read(func(d *data) error {
		for _, sow := range d.scopes {
			if sow.Number == number {
				exists = true
				return nil
			}
		}
		return nil
	})
	return exists, err
}

func matchesFilter(sow domain.ScopeOfWork, filter repository.ScopeOfWorkFilter) bool {
	if sow.DeletedAt != nil {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if sow.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.ParentID != nil && (sow.ParentID == nil || *sow.ParentID != *filter.ParentID) {
		return false
	}
	if filter.RootOnly && sow.ParentID != nil {
		return false
	}
	if filter.ContractorID != nil && (sow.AssignedContractorID == nil || *sow.AssignedContractorID != *filter.ContractorID) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToUpper(strings.TrimSpace(*filter.SearchTerm))
		if term != "" && !strings.Contains(strings.ToUpper(sow.Number), term) {
			return false
		}
	}
	return true
}

func sortScopes(items []domain.ScopeOfWork, field string, desc bool) {
	key := func(a, b domain.ScopeOfWork) int {
		switch field {
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "number":
			return strings.Compare(a.Number, b.Number)
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := key(items[i], items[j])
		if desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return items[i].ID < items[j].ID
	})
}

type ticketRepo struct{ v *view }

func (r ticketRepo) GetByID(ctx context.Context, id string) (*domain.MaintenanceTicket, error) {
	var out *domain.MaintenanceTicket
	err := r.v.read(func(d *data) error {
		ticket, ok := d.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &ticket
		return nil
	})
	return out, err
}

func (r ticketRepo) FindManyByIDs(ctx context.Context, ids []string) ([]domain.MaintenanceTicket, error) {
	var out []domain.MaintenanceTicket
	err := r.v.read(func(d *data) error {
		seen := map[string]bool{}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if ticket, ok := d.tickets[id]; ok {
				out = append(out, ticket)
			}
		}
		return nil
	})
	return out, err
}

func (r ticketRepo) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.MaintenanceTicket, error) {
	var out []domain.MaintenanceTicket
	err := r.v.read(func(d *data) error {
		for _, ticket := range d.tickets {
			if ticket.ScopeOfWorkID != nil && *ticket.ScopeOfWorkID == scopeOfWorkID {
				out = append(out, ticket)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].CreatedAt.Compare(out[j].CreatedAt); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r ticketRepo) UpdateMany(ctx context.Context, filter repository.TicketFilter, patch repository.TicketPatch) (int64, error) {
	if patch.Empty() {
		return 0, nil
	}
	if len(filter.IDs) == 0 && filter.ScopeOfWorkID == nil {
		return 0, errors.New("ticket update requires a filter")
	}
	ids := map[string]bool{}
	for _, id := range filter.IDs {
		ids[id] = true
	}

	var affected int64
	err := r.v.mutate(func(d *data) error {
		for id, ticket := range d.tickets {
			if len(ids) > 0 && !ids[id] {
				continue
			}
			if filter.ScopeOfWorkID != nil && (ticket.ScopeOfWorkID == nil || *ticket.ScopeOfWorkID != *filter.ScopeOfWorkID) {
				continue
			}
			if filter.Unowned && ticket.ScopeOfWorkID != nil {
				continue
			}
			patch.Apply(&ticket)
			ticket.UpdatedAt = r.v.now()
			d.tickets[id] = ticket
			affected++
		}
		return nil
	})
	return affected, err
}

type userRepo struct{ v *view }

func (r userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.v.read(func(d *data) error {
		user, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &user
		return nil
	})
	return out, err
}

type contractorRepo struct{ v *view }

func (r contractorRepo) GetByID(ctx context.Context, id string) (*domain.Contractor, error) {
	var out *domain.Contractor
	err := r.v.read(func(d *data) error {
		contractor, ok := d.contractors[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &contractor
		return nil
	})
	return out, err
}

type historyRepo struct{ v *view }

func (r historyRepo) Create(ctx context.Context, entry *domain.ScopeOfWorkHistory) error {
	return r.v.mutate(func(d *data) error {
		entry.ID = uuid.NewString()
		entry.CreatedAt = r.v.now()
		d.history = append(d.history, *entry)
		return nil
	})
}

func (r historyRepo) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string, limit, offset int) ([]domain.ScopeOfWorkHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var matched []domain.ScopeOfWorkHistory
	err := r.v.read(func(d *data) error {
		for _, entry := range d.history {
			if entry.ScopeOfWorkID == scopeOfWorkID {
				matched = append(matched, entry)
			}
		}
		return nil
	})
	if err != nil || offset >= len(matched) {
		return nil, err
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

type invoiceRepo struct{ v *view }

func (r invoiceRepo) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.InvoiceSummary, error) {
	var out []domain.InvoiceSummary
	err := r.v.read(func(d *data) error {
		for _, invoice := range d.invoices {
			if invoice.ScopeOfWorkID == scopeOfWorkID {
				out = append(out, invoice)
			}
		}
		return nil
	})
	return out, err
}

type threadRepo struct{ v *view }

func (r threadRepo) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.ThreadSummary, error) {
	var out []domain.ThreadSummary
	err := r.v.read(func(d *data) error {
		for _, thread := range d.threads {
			if thread.ScopeOfWorkID == scopeOfWorkID {
				out = append(out, thread)
			}
		}
		return nil
	})
	return out, err
}
