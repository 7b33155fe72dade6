package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sow-service/internal/domain"
)

// ScopeOfWorkRepository encapsulates scope-of-work persistence. Soft-deleted
// rows are invisible to every method except the numbering ones.
type ScopeOfWorkRepository interface {
	Create(ctx context.Context, sow *domain.ScopeOfWork) error
	Update(ctx context.Context, sow *domain.ScopeOfWork) error
	GetByID(ctx context.Context, id string) (*domain.ScopeOfWork, error)
	ListChildren(ctx context.Context, parentID string) ([]domain.ScopeOfWork, error)
	CountChildren(ctx context.Context, parentID string) (int, error)
	ClearParent(ctx context.Context, parentID string) (int64, error)
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, filter ScopeOfWorkFilter) ([]domain.ScopeOfWork, int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}

type scopeOfWorkRepository struct {
	db DBTX
}

// NewScopeOfWorkRepository instantiates repository.
func NewScopeOfWorkRepository(db DBTX) ScopeOfWorkRepository {
	return &scopeOfWorkRepository{db: db}
}

const scopeOfWorkColumns = `id, number, parent_id, status, assigned_contractor_id, assigned_user_id,
               assigned_by, assigned_date, refuse_reason, notes, created_by, created_at, updated_at, deleted_at`

func (r *scopeOfWorkRepository) Create(ctx context.Context, sow *domain.ScopeOfWork) error {
	const query = `
        INSERT INTO scopes_of_work (number, parent_id, status, assigned_contractor_id, assigned_user_id,
            assigned_by, assigned_date, refuse_reason, notes, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		sow.Number,
		sow.ParentID,
		sow.Status,
		sow.AssignedContractorID,
		sow.AssignedUserID,
		sow.AssignedBy,
		sow.AssignedDate,
		sow.RefuseReason,
		sow.Notes,
		sow.CreatedBy,
	).Scan(&sow.ID, &sow.CreatedAt, &sow.UpdatedAt)
	return mapPgError(err)
}

func (r *scopeOfWorkRepository) Update(ctx context.Context, sow *domain.ScopeOfWork) error {
	const query = `
        UPDATE scopes_of_work SET status=$1, assigned_contractor_id=$2, assigned_user_id=$3, assigned_by=$4,
            assigned_date=$5, refuse_reason=$6, notes=$7, updated_at=NOW()
        WHERE id=$8 AND deleted_at IS NULL
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		sow.Status,
		sow.AssignedContractorID,
		sow.AssignedUserID,
		sow.AssignedBy,
		sow.AssignedDate,
		sow.RefuseReason,
		sow.Notes,
		sow.ID,
	).Scan(&sow.UpdatedAt)
	return mapPgError(err)
}

func (r *scopeOfWorkRepository) GetByID(ctx context.Context, id string) (*domain.ScopeOfWork, error) {
	query := `SELECT ` + scopeOfWorkColumns + `
        FROM scopes_of_work WHERE id=$1 AND deleted_at IS NULL`
	sow, err := scanScopeOfWork(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return sow, nil
}

func (r *scopeOfWorkRepository) ListChildren(ctx context.Context, parentID string) ([]domain.ScopeOfWork, error) {
	query := `SELECT ` + scopeOfWorkColumns + `
        FROM scopes_of_work WHERE parent_id=$1 AND deleted_at IS NULL ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return scanScopesOfWork(rows)
}

func (r *scopeOfWorkRepository) CountChildren(ctx context.Context, parentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM scopes_of_work WHERE parent_id=$1 AND deleted_at IS NULL`
	var count int
	if err := r.db.QueryRow(ctx, query, parentID).Scan(&count); err != nil {
		return 0, mapPgError(err)
	}
	return count, nil
}

func (r *scopeOfWorkRepository) ClearParent(ctx context.Context, parentID string) (int64, error) {
	const query = `UPDATE scopes_of_work SET parent_id=NULL, updated_at=NOW() WHERE parent_id=$1 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, parentID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *scopeOfWorkRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE scopes_of_work SET deleted_at=NOW(), updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *scopeOfWorkRepository) List(ctx context.Context, filter ScopeOfWorkFilter) ([]domain.ScopeOfWork, int, error) {
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ParentID != nil {
		args = append(args, *filter.ParentID)
		clauses = append(clauses, fmt.Sprintf("parent_id=$%d", len(args)))
	}
	if filter.RootOnly {
		clauses = append(clauses, "parent_id IS NULL")
	}
	if filter.ContractorID != nil {
		args = append(args, *filter.ContractorID)
		clauses = append(clauses, fmt.Sprintf("assigned_contractor_id=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+strings.ToUpper(strings.TrimSpace(*filter.SearchTerm))+"%")
		clauses = append(clauses, fmt.Sprintf("UPPER(number) LIKE $%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM scopes_of_work WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	column, ok := scopeOfWorkSortColumns[filter.SortField]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM scopes_of_work WHERE %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d`,
		scopeOfWorkColumns, where, column, direction, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()
	items, err := scanScopesOfWork(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *scopeOfWorkRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM scopes_of_work WHERE created_at >= $1 AND created_at < $2`
	var count int
	if err := r.db.QueryRow(ctx, query, from, to).Scan(&count); err != nil {
		return 0, mapPgError(err)
	}
	return count, nil
}

func (r *scopeOfWorkRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM scopes_of_work WHERE number=$1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, number).Scan(&exists); err != nil {
		return false, mapPgError(err)
	}
	return exists, nil
}

func scanScopeOfWork(row pgx.Row) (*domain.ScopeOfWork, error) {
	var sow domain.ScopeOfWork
	if err := row.Scan(
		&sow.ID,
		&sow.Number,
		&sow.ParentID,
		&sow.Status,
		&sow.AssignedContractorID,
		&sow.AssignedUserID,
		&sow.AssignedBy,
		&sow.AssignedDate,
		&sow.RefuseReason,
		&sow.Notes,
		&sow.CreatedBy,
		&sow.CreatedAt,
		&sow.UpdatedAt,
		&sow.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &sow, nil
}

func scanScopesOfWork(rows pgx.Rows) ([]domain.ScopeOfWork, error) {
	var result []domain.ScopeOfWork
	for rows.Next() {
		sow, err := scanScopeOfWork(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sow)
	}
	return result, rows.Err()
}
