package domain

// ScopeOfWorkSummary is the compact form used for parents and children.
type ScopeOfWorkSummary struct {
	ID     string
	Number string
	Status TicketStatus
}

// AggregateView is a scope of work with its references resolved and its
// member tickets loaded from the ticket side.
type AggregateView struct {
	ScopeOfWork  ScopeOfWork
	Contractor   *Contractor
	AssignedUser *User
	Parent       *ScopeOfWorkSummary
	Children     []ScopeOfWorkSummary
	Tickets      []MaintenanceTicket
}

// Summary returns the compact form of s.
func (s *ScopeOfWork) Summary() ScopeOfWorkSummary {
	return ScopeOfWorkSummary{ID: s.ID, Number: s.Number, Status: s.Status}
}
