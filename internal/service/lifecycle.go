package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/sow-service/internal/config"
	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/repository"
	"github.com/spec-kit/sow-service/internal/sequence"
	apperrors "github.com/spec-kit/sow-service/pkg/util/errorutil"
)

var defaultSequenceConfig = config.SequenceConfig{MaxAttempts: 5, RetryDelayMillis: 100}

var errNumberTaken = errors.New("allocated number taken before insert")

// CreateInput describes a new scope of work.
type CreateInput struct {
	TicketIDs []string
	ParentID  *string
}

// Create groups eligible tickets under a new OPEN scope of work. Tickets and
// parent are checked before a number is allocated and again inside the
// transaction that inserts the scope and attaches the tickets.
func (s *ScopeOfWorkService) Create(ctx context.Context, actor Actor, input CreateInput) (*domain.AggregateView, error) {
	ids := uniqueIDs(input.TicketIDs)
	if len(ids) == 0 {
		return nil, s.fail(OpCreate, apperrors.NewValidationError("at least one ticket is required", nil))
	}
	if input.ParentID != nil && strings.TrimSpace(*input.ParentID) == "" {
		input.ParentID = nil
	}

	if err := s.validateCreate(ctx, s.store, ids, input.ParentID); err != nil {
		return nil, s.fail(OpCreate, err)
	}

	kind := sequence.KindRoot
	if input.ParentID != nil {
		kind = sequence.KindSub
	}
	number, err := s.numbers.Next(ctx, s.store.ScopesOfWork(), kind)
	if err != nil {
		return nil, s.fail(OpCreate, err)
	}

	view, err := s.createWithNumber(ctx, actor, ids, input.ParentID, number)
	if errors.Is(err, errNumberTaken) {
		// a concurrent writer committed the same proposal first
		s.metrics.RecordNumberCollision()
		view, err = s.createWithNumber(ctx, actor, ids, input.ParentID, s.numbers.Fallback(kind))
		if errors.Is(err, errNumberTaken) {
			return nil, s.fail(OpCreate, apperrors.NewInternalError(err))
		}
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *ScopeOfWorkService) validateCreate(ctx context.Context, store repository.Store, ids []string, parentID *string) error {
	if _, err := validateNewMembers(ctx, store, ids); err != nil {
		return err
	}
	if parentID == nil {
		return nil
	}
	parent, err := store.ScopesOfWork().GetByID(ctx, *parentID)
	if err != nil {
		return notFoundOr(err, "parent scope of work", map[string]any{"parent_id": *parentID})
	}
	if parent.IsClosed() {
		return apperrors.NewValidationError("cannot create a child under a closed scope of work",
			map[string]any{"parent_id": parent.ID})
	}
	return nil
}

func (s *ScopeOfWorkService) createWithNumber(ctx context.Context, actor Actor, ids []string, parentID *string, number string) (*domain.AggregateView, error) {
	var view *domain.AggregateView
	err := s.transact(ctx, OpCreate, func(tx repository.Store, emit func(events.Event)) error {
		if err := s.validateCreate(ctx, tx, ids, parentID); err != nil {
			return err
		}

		sow := &domain.ScopeOfWork{
			Number:    number,
			ParentID:  parentID,
			Status:    domain.TicketStatusOpen,
			CreatedBy: actor.userID(),
		}
		if err := tx.ScopesOfWork().Create(ctx, sow); err != nil {
			if errors.Is(err, repository.ErrDuplicateNumber) {
				return errNumberTaken
			}
			return apperrors.NewInternalError(err)
		}

		if err := claimTickets(ctx, tx, sow.ID, ids, repository.TicketPatch{}); err != nil {
			return err
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeCreated, nil, map[string]any{
			"number":     sow.Number,
			"parent_id":  derefString(sow.ParentID),
			"ticket_ids": ids,
		}); err != nil {
			return apperrors.NewInternalError(err)
		}

		var err error
		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkCreated, actor, sow, events.CreatedPayload{
			ParentID:  sow.ParentID,
			TicketIDs: ids,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// AssignContractor sets the scope's contractor and mirrors the assignment
// onto every member ticket. Status and ancestors are untouched.
func (s *ScopeOfWorkService) AssignContractor(ctx context.Context, actor Actor, id, contractorID string) (*domain.AggregateView, error) {
	var view *domain.AggregateView
	err := s.transact(ctx, OpAssignContractor, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		if sow.IsClosed() {
			return apperrors.NewValidationError("cannot assign a contractor to a closed scope of work",
				map[string]any{"scope_of_work_id": sow.ID})
		}
		contractor, err := tx.Contractors().GetByID(ctx, contractorID)
		if err != nil {
			return notFoundOr(err, "contractor", map[string]any{"contractor_id": contractorID})
		}
		if !contractor.Active {
			return apperrors.NewValidationError("contractor is inactive",
				map[string]any{"contractor_id": contractor.ID})
		}

		oldContractor := sow.AssignedContractorID
		now := s.now()
		sow.AssignedContractorID = &contractor.ID
		sow.AssignedDate = &now
		sow.AssignedBy = actor.userID()
		if err := tx.ScopesOfWork().Update(ctx, sow); err != nil {
			return apperrors.NewInternalError(err)
		}

		patch := repository.TicketPatch{
			AssignedContractorID: sow.AssignedContractorID,
			AssignedBy:           sow.AssignedBy,
			AssignedDate:         sow.AssignedDate,
		}
		if _, err := tx.Tickets().UpdateMany(ctx, repository.TicketFilter{ScopeOfWorkID: &sow.ID}, patch); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeContractor,
			map[string]any{"contractor_id": derefString(oldContractor)},
			map[string]any{"contractor_id": contractor.ID},
		); err != nil {
			return apperrors.NewInternalError(err)
		}

		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkContractor, actor, sow, events.ContractorAssignedPayload{
			OldContractorID: oldContractor,
			NewContractorID: contractor.ID,
			TicketIDs:       ticketIDs(view.Tickets),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Accept moves an OPEN or IN_REVIEW scope to IN_PROGRESS, records the
// accepting user on the scope and its tickets, and propagates the status to
// every ancestor.
func (s *ScopeOfWorkService) Accept(ctx context.Context, actor Actor, id, userID string) (*domain.AggregateView, error) {
	var view *domain.AggregateView
	err := s.transact(ctx, OpAccept, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(sow, domain.TicketStatusInProgress,
			domain.TicketStatusOpen, domain.TicketStatusInReview); err != nil {
			return err
		}
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return notFoundOr(err, "user", map[string]any{"user_id": userID})
		}

		oldStatus := sow.Status
		status := domain.TicketStatusInProgress
		sow.Status = status
		sow.AssignedUserID = &user.ID
		sow.RefuseReason = nil
		if err := tx.ScopesOfWork().Update(ctx, sow); err != nil {
			return apperrors.NewInternalError(err)
		}
		if _, err := tx.Tickets().UpdateMany(ctx, repository.TicketFilter{ScopeOfWorkID: &sow.ID}, repository.TicketPatch{
			Status:            &status,
			AssignedUserID:    &user.ID,
			ClearRefuseReason: true,
		}); err != nil {
			return apperrors.NewInternalError(err)
		}

		ancestors, err := s.propagateWithHistory(ctx, tx, actor, sow, status)
		if err != nil {
			return err
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus},
			map[string]any{"status": status, "assigned_user_id": user.ID},
		); err != nil {
			return apperrors.NewInternalError(err)
		}

		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkAccepted, actor, sow, events.StatusChangedPayload{
			OldStatus:   oldStatus,
			NewStatus:   status,
			AncestorIDs: ancestors,
			UserID:      &user.ID,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Refuse returns a scope to OPEN, drops its contractor assignment on the
// scope and its tickets, and propagates OPEN to every ancestor.
func (s *ScopeOfWorkService) Refuse(ctx context.Context, actor Actor, id string, reason *string) (*domain.AggregateView, error) {
	if reason != nil && strings.TrimSpace(*reason) == "" {
		reason = nil
	}
	var view *domain.AggregateView
	err := s.transact(ctx, OpRefuse, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		if sow.IsClosed() {
			return invalidTransition(sow, domain.TicketStatusOpen)
		}

		oldStatus := sow.Status
		oldContractor := sow.AssignedContractorID
		status := domain.TicketStatusOpen
		sow.Status = status
		sow.AssignedContractorID = nil
		sow.AssignedDate = nil
		if reason != nil {
			sow.RefuseReason = reason
		}
		if err := tx.ScopesOfWork().Update(ctx, sow); err != nil {
			return apperrors.NewInternalError(err)
		}
		if _, err := tx.Tickets().UpdateMany(ctx, repository.TicketFilter{ScopeOfWorkID: &sow.ID}, repository.TicketPatch{
			Status:          &status,
			ClearAssignment: true,
			RefuseReason:    reason,
		}); err != nil {
			return apperrors.NewInternalError(err)
		}

		ancestors, err := s.propagateWithHistory(ctx, tx, actor, sow, status)
		if err != nil {
			return err
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus, "contractor_id": derefString(oldContractor)},
			map[string]any{"status": status, "refuse_reason": derefString(reason)},
		); err != nil {
			return apperrors.NewInternalError(err)
		}

		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkRefused, actor, sow, events.StatusChangedPayload{
			OldStatus:    oldStatus,
			NewStatus:    status,
			AncestorIDs:  ancestors,
			RefuseReason: reason,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// MarkInReview moves a leaf scope from OPEN or IN_PROGRESS to IN_REVIEW.
// Scopes with children must be reviewed through their children.
func (s *ScopeOfWorkService) MarkInReview(ctx context.Context, actor Actor, id string) (*domain.AggregateView, error) {
	var view *domain.AggregateView
	err := s.transact(ctx, OpMarkInReview, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(sow, domain.TicketStatusInReview,
			domain.TicketStatusOpen, domain.TicketStatusInProgress); err != nil {
			return err
		}
		children, err := tx.ScopesOfWork().CountChildren(ctx, sow.ID)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if children > 0 {
			return apperrors.NewValidationError(
				"scope of work has child scopes of work; mark the children in review instead",
				map[string]any{"scope_of_work_id": sow.ID, "children": children},
			)
		}

		oldStatus := sow.Status
		sow.Status = domain.TicketStatusInReview
		if err := tx.ScopesOfWork().Update(ctx, sow); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus},
			map[string]any{"status": sow.Status},
		); err != nil {
			return apperrors.NewInternalError(err)
		}

		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkInReview, actor, sow, events.StatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: sow.Status,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Close moves a scope to CLOSED once every member ticket is DONE or CLOSED
// and every direct child is CLOSED. Member tickets are closed with it;
// ancestors are left alone.
func (s *ScopeOfWorkService) Close(ctx context.Context, actor Actor, id string, notes *string) (*domain.AggregateView, error) {
	var view *domain.AggregateView
	err := s.transact(ctx, OpClose, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		if sow.IsClosed() {
			return invalidTransition(sow, domain.TicketStatusClosed)
		}

		tickets, err := tx.Tickets().ListByScopeOfWork(ctx, sow.ID)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		var openTickets []string
		for _, ticket := range tickets {
			if !ticket.Status.Terminal() {
				openTickets = append(openTickets, ticket.ID)
			}
		}
		if len(openTickets) > 0 {
			return apperrors.NewValidationError("all tickets must be DONE or CLOSED before closing the scope of work",
				map[string]any{"gate": "tickets", "ticket_ids": openTickets})
		}

		children, err := tx.ScopesOfWork().ListChildren(ctx, sow.ID)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		var openChildren []string
		for _, child := range children {
			if !child.IsClosed() {
				openChildren = append(openChildren, child.ID)
			}
		}
		if len(openChildren) > 0 {
			return apperrors.NewValidationError("all child scopes of work must be CLOSED before closing the scope of work",
				map[string]any{"gate": "children", "scope_of_work_ids": openChildren})
		}

		oldStatus := sow.Status
		status := domain.TicketStatusClosed
		sow.Status = status
		if notes != nil && strings.TrimSpace(*notes) != "" {
			sow.Notes = notes
		}
		if err := tx.ScopesOfWork().Update(ctx, sow); err != nil {
			return apperrors.NewInternalError(err)
		}
		if _, err := tx.Tickets().UpdateMany(ctx, repository.TicketFilter{ScopeOfWorkID: &sow.ID},
			repository.TicketPatch{Status: &status}); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus},
			map[string]any{"status": status, "notes": derefString(sow.Notes)},
		); err != nil {
			return apperrors.NewInternalError(err)
		}

		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkClosed, actor, sow, events.StatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
			Notes:     sow.Notes,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Remove soft-deletes a scope of work. Its children become roots and its
// tickets are released; nothing else is deleted.
func (s *ScopeOfWorkService) Remove(ctx context.Context, actor Actor, id string) error {
	return s.transact(ctx, OpRemove, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		orphaned, err := tx.ScopesOfWork().ClearParent(ctx, sow.ID)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		unlinked, err := tx.Tickets().UpdateMany(ctx, repository.TicketFilter{ScopeOfWorkID: &sow.ID},
			repository.TicketPatch{ClearScopeOfWork: true})
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := tx.ScopesOfWork().SoftDelete(ctx, sow.ID); err != nil {
			return notFoundOr(err, "scope of work", map[string]any{"scope_of_work_id": sow.ID})
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeDeleted,
			map[string]any{"status": sow.Status},
			map[string]any{"orphaned_children": orphaned, "unlinked_tickets": unlinked},
		); err != nil {
			return apperrors.NewInternalError(err)
		}
		emit(newEvent(events.EventScopeOfWorkDeleted, actor, sow, events.DeletedPayload{
			OrphanedChildren: orphaned,
			UnlinkedTickets:  unlinked,
		}))
		return nil
	})
}

// propagateWithHistory runs the upward walk and writes one history entry per
// ancestor it changed.
func (s *ScopeOfWorkService) propagateWithHistory(ctx context.Context, tx repository.Store, actor Actor, sow *domain.ScopeOfWork, status domain.TicketStatus) ([]string, error) {
	changes, err := s.propagator.Propagate(ctx, tx, sow.ParentID, status)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(changes))
	for _, change := range changes {
		ids = append(ids, change.ID)
		if err := s.recordHistory(ctx, tx, actor, change.ID, domain.ChangeTypeStatus,
			map[string]any{"status": change.OldStatus},
			map[string]any{"status": status, "propagated_from": sow.ID},
		); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return ids, nil
}

func checkTransition(sow *domain.ScopeOfWork, to domain.TicketStatus, from ...domain.TicketStatus) error {
	for _, allowed := range from {
		if sow.Status == allowed {
			return nil
		}
	}
	return invalidTransition(sow, to)
}

func invalidTransition(sow *domain.ScopeOfWork, to domain.TicketStatus) error {
	return apperrors.NewValidationError("invalid status transition", map[string]any{
		"scope_of_work_id": sow.ID,
		"from":             sow.Status,
		"to":               to,
	})
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
