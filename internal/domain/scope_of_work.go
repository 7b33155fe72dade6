package domain

import "time"

// ScopeOfWork groups maintenance tickets under one contractor and one status.
// Scopes form a tree through ParentID; membership is derived from the ticket
// side and never stored here.
type ScopeOfWork struct {
	ID                   string
	Number               string
	ParentID             *string
	Status               TicketStatus
	AssignedContractorID *string
	AssignedUserID       *string
	AssignedBy           *string
	AssignedDate         *time.Time
	RefuseReason         *string
	Notes                *string
	CreatedBy            *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// IsRoot reports whether the scope has no parent.
func (s *ScopeOfWork) IsRoot() bool {
	return s.ParentID == nil
}

// IsClosed reports whether the scope reached its terminal state.
func (s *ScopeOfWork) IsClosed() bool {
	return s.Status == TicketStatusClosed
}
