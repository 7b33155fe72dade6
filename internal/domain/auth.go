package domain

// Role enumerates the coarse roles carried in access tokens.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleLandlord   Role = "LANDLORD"
	RoleTenant     Role = "TENANT"
	RoleContractor Role = "CONTRACTOR"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLandlord, RoleTenant, RoleContractor:
		return true
	}
	return false
}
