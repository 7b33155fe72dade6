package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/sow-service/internal/domain"
)

// ErrNotFound is returned when a record does not resolve. It aliases
// pgx.ErrNoRows so callers can match either.
var ErrNotFound = pgx.ErrNoRows

// ErrDuplicateNumber is returned when a scope-of-work number is already taken.
var ErrDuplicateNumber = errors.New("scope of work number already exists")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// can run either standalone or bound to a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store exposes every repository the engine reads or writes.
type Store interface {
	ScopesOfWork() ScopeOfWorkRepository
	Tickets() TicketRepository
	Users() UserRepository
	Contractors() ContractorRepository
	History() ScopeOfWorkHistoryRepository
	Invoices() InvoiceRepository
	Threads() ThreadRepository
}

// TransactionalStore is a Store that can open an atomic scope. Every write made
// through the Store handed to fn commits together when fn returns nil and is
// discarded otherwise.
type TransactionalStore interface {
	Store
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// TicketFilter selects tickets for bulk updates. Unowned restricts the
// update to tickets that belong to no scope of work, which makes a
// membership claim conditional on the row still being free.
type TicketFilter struct {
	IDs           []string
	ScopeOfWorkID *string
	Unowned       bool
}

// TicketPatch lists the columns UpdateMany writes. Nil pointers leave a column
// untouched; the Clear flags null one out.
type TicketPatch struct {
	Status               *domain.TicketStatus
	ScopeOfWorkID        *string
	ClearScopeOfWork     bool
	AssignedContractorID *string
	AssignedUserID       *string
	AssignedBy           *string
	AssignedDate         *time.Time
	ClearAssignment      bool
	RefuseReason         *string
	ClearRefuseReason    bool
}

// Empty reports whether the patch writes nothing.
func (p TicketPatch) Empty() bool {
	return p.Status == nil && p.ScopeOfWorkID == nil && !p.ClearScopeOfWork &&
		p.AssignedContractorID == nil && p.AssignedUserID == nil && p.AssignedBy == nil &&
		p.AssignedDate == nil && !p.ClearAssignment && p.RefuseReason == nil && !p.ClearRefuseReason
}

// Apply writes the patch onto an in-memory ticket.
func (p TicketPatch) Apply(ticket *domain.MaintenanceTicket) {
	if p.Status != nil {
		ticket.Status = *p.Status
	}
	if p.ClearScopeOfWork {
		ticket.ScopeOfWorkID = nil
	}
	if p.ScopeOfWorkID != nil {
		ticket.ScopeOfWorkID = strPtr(*p.ScopeOfWorkID)
	}
	if p.ClearAssignment {
		ticket.AssignedContractorID = nil
		ticket.AssignedDate = nil
	}
	if p.AssignedContractorID != nil {
		ticket.AssignedContractorID = strPtr(*p.AssignedContractorID)
	}
	if p.AssignedUserID != nil {
		ticket.AssignedUserID = strPtr(*p.AssignedUserID)
	}
	if p.AssignedBy != nil {
		ticket.AssignedBy = strPtr(*p.AssignedBy)
	}
	if p.AssignedDate != nil {
		date := *p.AssignedDate
		ticket.AssignedDate = &date
	}
	if p.ClearRefuseReason {
		ticket.RefuseReason = nil
	}
	if p.RefuseReason != nil {
		ticket.RefuseReason = strPtr(*p.RefuseReason)
	}
}

// ScopeOfWorkFilter captures list parameters.
type ScopeOfWorkFilter struct {
	Statuses     []domain.TicketStatus
	ParentID     *string
	RootOnly     bool
	ContractorID *string
	SearchTerm   *string
	SortField    string
	SortDesc     bool
	Limit        int
	Offset       int
}

// Sortable columns for ScopeOfWorkFilter.SortField.
var scopeOfWorkSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"number":     "number",
	"status":     "status",
}

// ValidSortField reports whether field can be used to order scopes of work.
func ValidSortField(field string) bool {
	_, ok := scopeOfWorkSortColumns[field]
	return ok
}

func strPtr(v string) *string {
	return &v
}
