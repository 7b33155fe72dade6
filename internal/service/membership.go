package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/repository"
	apperrors "github.com/spec-kit/sow-service/pkg/util/errorutil"
)

// checkGroupable enforces the rules for a ticket joining sowID. An empty
// sowID means the scope does not exist yet.
func checkGroupable(ticket *domain.MaintenanceTicket, sowID string) error {
	if !ticket.Status.Groupable() {
		return apperrors.NewConflict(
			fmt.Sprintf("ticket must be %s or %s to join a scope of work", domain.TicketStatusOpen, domain.TicketStatusInReview),
			map[string]any{"ticket_id": ticket.ID, "status": ticket.Status},
		)
	}
	if ticket.ScopeOfWorkID != nil {
		if sowID != "" && *ticket.ScopeOfWorkID == sowID {
			return apperrors.NewConflict("ticket already belongs to this scope of work",
				map[string]any{"ticket_id": ticket.ID, "scope_of_work_id": sowID})
		}
		return apperrors.NewConflict("ticket already belongs to another scope of work",
			map[string]any{"ticket_id": ticket.ID, "scope_of_work_id": *ticket.ScopeOfWorkID})
	}
	return nil
}

// validateNewMembers resolves every id and checks each ticket may be grouped.
func validateNewMembers(ctx context.Context, tx repository.Store, ids []string) ([]domain.MaintenanceTicket, error) {
	tickets, err := tx.Tickets().FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_ids": ids})
	}
	found := make(map[string]domain.MaintenanceTicket, len(tickets))
	for _, ticket := range tickets {
		found[ticket.ID] = ticket
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_ids": missing})
	}

	ordered := make([]domain.MaintenanceTicket, 0, len(ids))
	for _, id := range ids {
		ticket := found[id]
		if err := checkGroupable(&ticket, ""); err != nil {
			return nil, err
		}
		ordered = append(ordered, ticket)
	}
	return ordered, nil
}

// claimTickets links ids to sowID only where a ticket is still free. A
// ticket claimed by a concurrent writer since it was checked leaves the
// update short and fails the operation with a conflict.
func claimTickets(ctx context.Context, tx repository.Store, sowID string, ids []string, patch repository.TicketPatch) error {
	patch.ScopeOfWorkID = &sowID
	affected, err := tx.Tickets().UpdateMany(ctx, repository.TicketFilter{IDs: ids, Unowned: true}, patch)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if affected != int64(len(ids)) {
		return apperrors.NewConflict("ticket already belongs to another scope of work",
			map[string]any{"ticket_ids": ids})
	}
	return nil
}

// assignmentPatch mirrors the scope's assignment onto its tickets.
func assignmentPatch(sow *domain.ScopeOfWork) repository.TicketPatch {
	return repository.TicketPatch{
		AssignedContractorID: sow.AssignedContractorID,
		AssignedUserID:       sow.AssignedUserID,
		AssignedBy:           sow.AssignedBy,
		AssignedDate:         sow.AssignedDate,
	}
}

// AddTicket attaches an eligible ticket to a scope of work. If the scope has
// a contractor, the ticket picks up the scope's assignment.
func (s *ScopeOfWorkService) AddTicket(ctx context.Context, actor Actor, id, ticketID string) (*domain.AggregateView, error) {
	var view *domain.AggregateView
	err := s.transact(ctx, OpAddTicket, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		ticket, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if sow.IsClosed() {
			return apperrors.NewValidationError("cannot add tickets to a closed scope of work",
				map[string]any{"scope_of_work_id": sow.ID})
		}
		if err := checkGroupable(ticket, sow.ID); err != nil {
			return err
		}

		var patch repository.TicketPatch
		if sow.AssignedContractorID != nil {
			patch = assignmentPatch(sow)
		}
		if err := claimTickets(ctx, tx, sow.ID, []string{ticket.ID}, patch); err != nil {
			return err
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeTicketAdded,
			nil, map[string]any{"ticket_id": ticket.ID}); err != nil {
			return apperrors.NewInternalError(err)
		}

		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkTicketAdded, actor, sow, events.TicketMembershipPayload{TicketID: ticket.ID}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveTicket detaches a ticket that currently belongs to the scope of work.
func (s *ScopeOfWorkService) RemoveTicket(ctx context.Context, actor Actor, id, ticketID string) (*domain.AggregateView, error) {
	var view *domain.AggregateView
	err := s.transact(ctx, OpRemoveTicket, func(tx repository.Store, emit func(events.Event)) error {
		sow, err := loadScopeOfWork(ctx, tx, id)
		if err != nil {
			return err
		}
		ticket, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.ScopeOfWorkID == nil || *ticket.ScopeOfWorkID != sow.ID {
			return apperrors.NewNotFound("ticket in scope of work",
				map[string]any{"scope_of_work_id": sow.ID, "ticket_id": ticket.ID})
		}

		if _, err := tx.Tickets().UpdateMany(ctx,
			repository.TicketFilter{IDs: []string{ticket.ID}},
			repository.TicketPatch{ClearScopeOfWork: true},
		); err != nil {
			return apperrors.NewInternalError(err)
		}
		if err := s.recordHistory(ctx, tx, actor, sow.ID, domain.ChangeTypeTicketRemoved,
			map[string]any{"ticket_id": ticket.ID}, nil); err != nil {
			return apperrors.NewInternalError(err)
		}

		view, err = project(ctx, tx, sow)
		if err != nil {
			return err
		}
		emit(newEvent(events.EventScopeOfWorkTicketRemoved, actor, sow, events.TicketMembershipPayload{TicketID: ticket.ID}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
