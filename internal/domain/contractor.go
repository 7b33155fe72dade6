package domain

import "time"

// Contractor is a directory entry for an external service company.
type Contractor struct {
	ID          string
	CompanyName string
	Email       string
	Phone       string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
