package domain

import "time"

// ThreadSummary is the read-only view of a message thread attached to a scope.
type ThreadSummary struct {
	ID            string
	ScopeOfWorkID string
	Subject       string
	MessageCount  int
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

// InvoiceSummary is the read-only view of an invoice attached to a scope.
type InvoiceSummary struct {
	ID            string
	ScopeOfWorkID string
	Number        string
	Status        string
	AmountCents   int64
	Currency      string
	IssuedAt      *time.Time
	CreatedAt     time.Time
}
