package handlers

import (
	"github.com/spec-kit/sow-service/internal/api/dto"
	"github.com/spec-kit/sow-service/internal/domain"
)

func scopeOfWorkResponse(view *domain.AggregateView) dto.ScopeOfWorkResponse {
	sow := view.ScopeOfWork
	resp := dto.ScopeOfWorkResponse{
		ID:                   sow.ID,
		Number:               sow.Number,
		Status:               sow.Status,
		ParentID:             sow.ParentID,
		AssignedContractorID: sow.AssignedContractorID,
		AssignedUserID:       sow.AssignedUserID,
		AssignedBy:           sow.AssignedBy,
		AssignedDate:         sow.AssignedDate,
		RefuseReason:         sow.RefuseReason,
		Notes:                sow.Notes,
		CreatedBy:            sow.CreatedBy,
		CreatedAt:            sow.CreatedAt,
		UpdatedAt:            sow.UpdatedAt,
		Children:             make([]dto.ScopeOfWorkSummary, 0, len(view.Children)),
		Tickets:              make([]dto.TicketResponse, 0, len(view.Tickets)),
	}
	if view.Contractor != nil {
		resp.Contractor = &dto.ContractorResponse{
			ID:          view.Contractor.ID,
			CompanyName: view.Contractor.CompanyName,
			Email:       view.Contractor.Email,
			Phone:       view.Contractor.Phone,
			Active:      view.Contractor.Active,
		}
	}
	if view.AssignedUser != nil {
		resp.AssignedUser = &dto.UserResponse{
			ID:           view.AssignedUser.ID,
			Name:         view.AssignedUser.Name,
			Email:        view.AssignedUser.Email,
			Role:         view.AssignedUser.Role,
			ContractorID: view.AssignedUser.ContractorID,
		}
	}
	if view.Parent != nil {
		parent := summaryResponse(*view.Parent)
		resp.Parent = &parent
	}
	for _, child := range view.Children {
		resp.Children = append(resp.Children, summaryResponse(child))
	}
	for i := range view.Tickets {
		resp.Tickets = append(resp.Tickets, ticketResponse(&view.Tickets[i]))
	}
	return resp
}

func summaryResponse(summary domain.ScopeOfWorkSummary) dto.ScopeOfWorkSummary {
	return dto.ScopeOfWorkSummary{ID: summary.ID, Number: summary.Number, Status: summary.Status}
}

func ticketResponse(ticket *domain.MaintenanceTicket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                   ticket.ID,
		Title:                ticket.Title,
		PropertyID:           ticket.PropertyID,
		UnitID:               ticket.UnitID,
		Status:               ticket.Status,
		ScopeOfWorkID:        ticket.ScopeOfWorkID,
		AssignedContractorID: ticket.AssignedContractorID,
		AssignedUserID:       ticket.AssignedUserID,
		AssignedBy:           ticket.AssignedBy,
		AssignedDate:         ticket.AssignedDate,
		RefuseReason:         ticket.RefuseReason,
		UpdatedAt:            ticket.UpdatedAt,
	}
}

func historyResponses(entries []domain.ScopeOfWorkHistory) []dto.HistoryResponse {
	resp := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryResponse{
			ID:          entry.ID,
			ChangedByID: entry.ChangedByID,
			ChangeType:  entry.ChangeType,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
