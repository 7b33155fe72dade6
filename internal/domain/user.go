package domain

import "time"

// UserStatus represents lifecycle states for a platform user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is a directory entry for anyone acting on scopes of work: landlords,
// tenants, contractor staff and administrators.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	Role         Role
	ContractorID *string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
