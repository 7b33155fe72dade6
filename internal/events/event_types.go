package events

import (
	"time"

	"github.com/spec-kit/sow-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventScopeOfWorkCreated       EventType = "sow_created"
	EventScopeOfWorkContractor    EventType = "sow_contractor_assigned"
	EventScopeOfWorkTicketAdded   EventType = "sow_ticket_added"
	EventScopeOfWorkTicketRemoved EventType = "sow_ticket_removed"
	EventScopeOfWorkAccepted      EventType = "sow_accepted"
	EventScopeOfWorkRefused       EventType = "sow_refused"
	EventScopeOfWorkInReview      EventType = "sow_in_review"
	EventScopeOfWorkClosed        EventType = "sow_closed"
	EventScopeOfWorkDeleted       EventType = "sow_deleted"
)

// AllEventTypes lists every type the engine publishes.
var AllEventTypes = []EventType{
	EventScopeOfWorkCreated,
	EventScopeOfWorkContractor,
	EventScopeOfWorkTicketAdded,
	EventScopeOfWorkTicketRemoved,
	EventScopeOfWorkAccepted,
	EventScopeOfWorkRefused,
	EventScopeOfWorkInReview,
	EventScopeOfWorkClosed,
	EventScopeOfWorkDeleted,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID *string      `json:"user_id,omitempty"`
	Role   *domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted after a committed operation.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	ScopeOfWorkID string    `json:"scope_of_work_id"`
	Number        string    `json:"number"`
	Actor         Actor     `json:"actor"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// CreatedPayload payload.
type CreatedPayload struct {
	ParentID  *string  `json:"parent_id,omitempty"`
	TicketIDs []string `json:"ticket_ids"`
}

// ContractorAssignedPayload payload.
type ContractorAssignedPayload struct {
	OldContractorID *string  `json:"old_contractor_id,omitempty"`
	NewContractorID string   `json:"new_contractor_id"`
	TicketIDs       []string `json:"ticket_ids"`
}

// TicketMembershipPayload payload for ticket added and removed.
type TicketMembershipPayload struct {
	TicketID string `json:"ticket_id"`
}

// StatusChangedPayload payload for accept, refuse, review and close.
type StatusChangedPayload struct {
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	AncestorIDs  []string            `json:"ancestor_ids,omitempty"`
	UserID       *string             `json:"user_id,omitempty"`
	RefuseReason *string             `json:"refuse_reason,omitempty"`
	Notes        *string             `json:"notes,omitempty"`
}

// DeletedPayload payload.
type DeletedPayload struct {
	OrphanedChildren int64 `json:"orphaned_children"`
	UnlinkedTickets  int64 `json:"unlinked_tickets"`
}
