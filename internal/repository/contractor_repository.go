package repository

import (
	"context"

	"github.com/spec-kit/sow-service/internal/domain"
)

// ContractorRepository is the read-only contractor directory.
type ContractorRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Contractor, error)
}

type contractorRepository struct {
	db DBTX
}

// NewContractorRepository instantiates the repository.
func NewContractorRepository(db DBTX) ContractorRepository {
	return &contractorRepository{db: db}
}

func (r *contractorRepository) GetByID(ctx context.Context, id string) (*domain.Contractor, error) {
	const query = `
        SELECT id, company_name, email, phone, active_flag, created_at, updated_at
        FROM contractors WHERE id=$1`

	var contractor domain.Contractor
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&contractor.ID,
		&contractor.CompanyName,
		&contractor.Email,
		&contractor.Phone,
		&contractor.Active,
		&contractor.CreatedAt,
		&contractor.UpdatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &contractor, nil
}
