package domain

import "time"

// ChangeType captures what changed in a history entry.
type ChangeType string

const (
	ChangeTypeCreated       ChangeType = "CREATED"
	ChangeTypeStatus        ChangeType = "STATUS_CHANGE"
	ChangeTypeContractor    ChangeType = "CONTRACTOR_CHANGE"
	ChangeTypeTicketAdded   ChangeType = "TICKET_ADDED"
	ChangeTypeTicketRemoved ChangeType = "TICKET_REMOVED"
	ChangeTypeDeleted       ChangeType = "DELETED"
)

// ScopeOfWorkHistory is an immutable audit trail entry.
type ScopeOfWorkHistory struct {
	ID            string
	ScopeOfWorkID string
	ChangedByID   *string
	ChangeType    ChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
