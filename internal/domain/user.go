package domain

import "time"

// Role distinguishes customers from the bus owner.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
)

// User is a customer or owner profile.
type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      Role
	CreatedAt time.Time
}
