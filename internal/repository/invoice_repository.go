package repository

import (
	"context"

	"github.com/spec-kit/sow-service/internal/domain"
)

// InvoiceRepository lists invoices attached to a scope of work.
type InvoiceRepository interface {
	ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.InvoiceSummary, error)
}

type invoiceRepository struct {
	db DBTX
}

// NewInvoiceRepository builds repository.
func NewInvoiceRepository(db DBTX) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) ListByScopeOfWork(ctx context.Context, scopeOfWorkID string) ([]domain.InvoiceSummary, error) {
	const query = `
        SELECT id, scope_of_work_id, number, status, amount_cents, currency, issued_at, created_at
        FROM invoices WHERE scope_of_work_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, scopeOfWorkID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var result []domain.InvoiceSummary
	for rows.Next() {
		var invoice domain.InvoiceSummary
		if err := rows.Scan(
			&invoice.ID,
			&invoice.ScopeOfWorkID,
			&invoice.Number,
			&invoice.Status,
			&invoice.AmountCents,
			&invoice.Currency,
			&invoice.IssuedAt,
			&invoice.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, invoice)
	}
	return result, rows.Err()
}
