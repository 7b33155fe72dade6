package domain

import "time"

// TicketStatus enumerates lifecycle states shared by maintenance tickets and
// scopes of work. DRAFT and DONE only ever apply to tickets.
type TicketStatus string

const (
	TicketStatusDraft      TicketStatus = "DRAFT"
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInReview   TicketStatus = "IN_REVIEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusDone       TicketStatus = "DONE"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusDraft, TicketStatusOpen, TicketStatusInReview,
		TicketStatusInProgress, TicketStatusDone, TicketStatusClosed:
		return true
	}
	return false
}

// Groupable reports whether a ticket in this status may join a scope of work.
func (s TicketStatus) Groupable() bool {
	return s == TicketStatusOpen || s == TicketStatusInReview
}

// Terminal reports whether a ticket in this status satisfies the close gate.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusDone || s == TicketStatusClosed
}

// MaintenanceTicket is a maintenance request owned by the ticketing module.
// The engine only reads it and writes the membership and mirrored assignment
// columns.
type MaintenanceTicket struct {
	ID                   string
	Title                string
	PropertyID           *string
	UnitID               *string
	Status               TicketStatus
	ScopeOfWorkID        *string
	AssignedContractorID *string
	AssignedUserID       *string
	AssignedBy           *string
	AssignedDate         *time.Time
	RefuseReason         *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
