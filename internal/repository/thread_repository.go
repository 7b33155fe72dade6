package repository

import (
	"context"

	"github.com/spec-kit/sow-service/internal/domain"
)

// ThreadRepository lists message threads attached to a scope of work.
type ThreadRepository interface {
	ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.ThreadSummary, error)
}

type threadRepository struct {
	db DBTX
}

// NewThreadRepository builds repository.
func NewThreadRepository(db DBTX) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.ThreadSummary, error) {
	const query = `
        SELECT t.id, t.scope_of_work_id, t.subject, COUNT(m.id), MAX(m.created_at), t.created_at
        FROM threads t LEFT JOIN thread_messages m ON m.thread_id = t.id
        WHERE t.scope_of_work_id=$1
        GROUP BY t.id ORDER BY t.created_at ASC`
	rows, err := r.db.Query(ctx, query, scopeOfWorkID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var result []domain.ThreadSummary
	for rows.Next() {
		var thread domain.ThreadSummary
		if err := rows.Scan(
			&thread.ID,
			&thread.ScopeOfWorkID,
			&thread.Subject,
			&thread.MessageCount,
			&thread.LastMessageAt,
			&thread.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, thread)
	}
	return result, rows.Err()
}
