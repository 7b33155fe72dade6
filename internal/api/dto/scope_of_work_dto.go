package dto

import (
	"time"

	"github.com/spec-kit/sow-service/internal/domain"
)

// CreateScopeOfWorkRequest payload.
type CreateScopeOfWorkRequest struct {
	TicketIDs []string `json:"ticket_ids"`
	ParentID  *string  `json:"parent_id"`
}

// AssignContractorRequest payload.
type AssignContractorRequest struct {
	ContractorID string `json:"contractor_id"`
}

// AddTicketRequest payload.
type AddTicketRequest struct {
	TicketID string `json:"ticket_id"`
}

// AcceptRequest payload. UserID defaults to the caller.
type AcceptRequest struct {
	UserID *string `json:"user_id"`
}

// RefuseRequest payload.
type RefuseRequest struct {
	Reason *string `json:"reason"`
}

// CloseRequest payload.
type CloseRequest struct {
	Notes *string `json:"notes"`
}

// ScopeOfWorkSummary is the compact parent/child form.
type ScopeOfWorkSummary struct {
	ID     string              `json:"id"`
	Number string              `json:"number"`
	Status domain.TicketStatus `json:"status"`
}

// ContractorResponse represents a resolved contractor.
type ContractorResponse struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Active      bool   `json:"active"`
}

// UserResponse represents a resolved user.
type UserResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         domain.Role `json:"role"`
	ContractorID *string     `json:"contractor_id"`
}

// TicketResponse represents a member ticket.
type TicketResponse struct {
	ID                   string              `json:"id"`
	Title                string              `json:"title"`
	PropertyID           *string             `json:"property_id"`
	UnitID               *string             `json:"unit_id"`
	Status               domain.TicketStatus `json:"status"`
	ScopeOfWorkID        *string             `json:"scope_of_work_id"`
	AssignedContractorID *string             `json:"assigned_contractor_id"`
	AssignedUserID       *string             `json:"assigned_user_id"`
	AssignedBy           *string             `json:"assigned_by"`
	AssignedDate         *time.Time          `json:"assigned_date"`
	RefuseReason         *string             `json:"refuse_reason"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// ScopeOfWorkResponse is the resolved aggregate.
type ScopeOfWorkResponse struct {
	ID                   string               `json:"id"`
	Number               string               `json:"number"`
	Status               domain.TicketStatus  `json:"status"`
	ParentID             *string              `json:"parent_id"`
	AssignedContractorID *string              `json:"assigned_contractor_id"`
	AssignedUserID       *string              `json:"assigned_user_id"`
	AssignedBy           *string              `json:"assigned_by"`
	AssignedDate         *time.Time           `json:"assigned_date"`
	RefuseReason         *string              `json:"refuse_reason"`
	Notes                *string              `json:"notes"`
	CreatedBy            *string              `json:"created_by"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	Contractor           *ContractorResponse  `json:"contractor"`
	AssignedUser         *UserResponse        `json:"assigned_user"`
	Parent               *ScopeOfWorkSummary  `json:"parent"`
	Children             []ScopeOfWorkSummary `json:"children"`
	Tickets              []TicketResponse     `json:"tickets"`
}

// ScopeOfWorkPage is a page of resolved aggregates.
type ScopeOfWorkPage struct {
	Items    []ScopeOfWorkResponse `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// HistoryResponse represents an audit entry.
type HistoryResponse struct {
	ID          string            `json:"id"`
	ChangedByID *string           `json:"changed_by_id"`
	ChangeType  domain.ChangeType `json:"change_type"`
	OldValue    map[string]any    `json:"old_value"`
	NewValue    map[string]any    `json:"new_value"`
	CreatedAt   time.Time         `json:"created_at"`
}

// InvoiceResponse represents an attached invoice.
type InvoiceResponse struct {
	ID          string     `json:"id"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	IssuedAt    *time.Time `json:"issued_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ThreadResponse represents an attached message thread.
type ThreadResponse struct {
	ID            string     `json:"id"`
	Subject       string     `json:"subject"`
	MessageCount  int        `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TokenResponse is issued by the token command.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
