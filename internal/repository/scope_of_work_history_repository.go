package repository

import (
	"context"

	"github.com/spec-kit/sow-service/internal/domain"
)

// ScopeOfWorkHistoryRepository stores audit entries.
type ScopeOfWorkHistoryRepository interface {
	Create(ctx context.Context, history *domain.ScopeOfWorkHistory) error
	ListByScopeOfWork(ctx context.Context, scopeOfWorkID string, limit, offset int) ([]domain.ScopeOfWorkHistory, error)
}

type scopeOfWorkHistoryRepository struct {
	db DBTX
}

// NewScopeOfWorkHistoryRepository builds repository.
func NewScopeOfWorkHistoryRepository(db DBTX) ScopeOfWorkHistoryRepository {
	return &scopeOfWorkHistoryRepository{db: db}
}

func (r *scopeOfWorkHistoryRepository) Create(ctx context.Context, history *domain.ScopeOfWorkHistory) error {
	const query = `
        INSERT INTO scope_of_work_history (scope_of_work_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		history.ScopeOfWorkID,
		history.ChangedByID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
	return mapPgError(err)
}

// seq orders entries written within one transaction.
const listHistoryQuery = `
        SELECT id, scope_of_work_id, changed_by_id, change_type, old_value, new_value, created_at
        FROM scope_of_work_history WHERE scope_of_work_id=$1 ORDER BY seq ASC LIMIT $2 OFFSET $3`

func (r *scopeOfWorkHistoryRepository) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string, limit, offset int) ([]domain.ScopeOfWorkHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, listHistoryQuery, scopeOfWorkID, limit, offset)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var result []domain.ScopeOfWorkHistory
	for rows.Next() {
		var history domain.ScopeOfWorkHistory
		if err := rows.Scan(
			&history.ID,
			&history.ScopeOfWorkID,
			&history.ChangedByID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
