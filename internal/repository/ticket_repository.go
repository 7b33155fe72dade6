package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sow-service/internal/domain"
)

// TicketRepository is the narrow view of the ticket store the engine needs.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.MaintenanceTicket, error)
	FindManyByIDs(ctx context.Context, ids []string) ([]domain.MaintenanceTicket, error)
	ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.MaintenanceTicket, error)
	UpdateMany(ctx context.Context, filter TicketFilter, patch TicketPatch) (int64, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, title, property_id, unit_id, status, scope_of_work_id, assigned_contractor_id,
               assigned_user_id, assigned_by, assigned_date, refuse_reason, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.MaintenanceTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM maintenance_tickets WHERE id=$1 AND deleted_at IS NULL`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) FindManyByIDs(ctx context.Context, ids []string) ([]domain.MaintenanceTicket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + ticketColumns + ` FROM maintenance_tickets WHERE id = ANY($1::uuid[]) AND deleted_at IS NULL`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.MaintenanceTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM maintenance_tickets
        WHERE scope_of_work_id=$1 AND deleted_at IS NULL ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, scopeOfWorkID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateMany(ctx context.Context, filter TicketFilter, patch TicketPatch) (int64, error) {
	if patch.Empty() {
		return 0, nil
	}
	if len(filter.IDs) == 0 && filter.ScopeOfWorkID == nil {
		return 0, errors.New("ticket update requires a filter")
	}

	sets := []string{}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.ClearScopeOfWork {
		sets = append(sets, "scope_of_work_id=NULL")
	} else if patch.ScopeOfWorkID != nil {
		set("scope_of_work_id", *patch.ScopeOfWorkID)
	}
	if patch.ClearAssignment {
		sets = append(sets, "assigned_contractor_id=NULL", "assigned_date=NULL")
	} else {
		if patch.AssignedContractorID != nil {
			set("assigned_contractor_id", *patch.AssignedContractorID)
		}
		if patch.AssignedDate != nil {
			set("assigned_date", *patch.AssignedDate)
		}
	}
	if patch.AssignedUserID != nil {
		set("assigned_user_id", *patch.AssignedUserID)
	}
	if patch.AssignedBy != nil {
		set("assigned_by", *patch.AssignedBy)
	}
	if patch.ClearRefuseReason {
		sets = append(sets, "refuse_reason=NULL")
	} else if patch.RefuseReason != nil {
		set("refuse_reason", *patch.RefuseReason)
	}
	sets = append(sets, "updated_at=NOW()")

	clauses := []string{"deleted_at IS NULL"}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		clauses = append(clauses, fmt.Sprintf("id = ANY($%d::uuid[])", len(args)))
	}
	if filter.ScopeOfWorkID != nil {
		args = append(args, *filter.ScopeOfWorkID)
		clauses = append(clauses, fmt.Sprintf("scope_of_work_id=$%d", len(args)))
	}
	if filter.Unowned {
		clauses = append(clauses, "scope_of_work_id IS NULL")
	}

	query := fmt.Sprintf(`UPDATE maintenance_tickets SET %s WHERE %s`,
		strings.Join(sets, ", "), strings.Join(clauses, " AND "))
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapPgError(err)
	}
	return cmd.RowsAffected(), nil
}

func scanTicket(row pgx.Row) (*domain.MaintenanceTicket, error) {
	var ticket domain.MaintenanceTicket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.PropertyID,
		&ticket.UnitID,
		&ticket.Status,
		&ticket.ScopeOfWorkID,
		&ticket.AssignedContractorID,
		&ticket.AssignedUserID,
		&ticket.AssignedBy,
		&ticket.AssignedDate,
		&ticket.RefuseReason,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.MaintenanceTicket, error) {
	var result []domain.MaintenanceTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
