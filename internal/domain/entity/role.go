// Package entity contains the core business objects of the project.
package entity

import "slices"

// Role represents the type of role an account can have in the marketplace.
type Role string

const (
	// RoleClient rents parkings.
	RoleClient Role = "client"
	// RoleProvider lists parkings and may also rent.
	RoleProvider Role = "provider"
	// RoleAdmin validates listings and manages accounts.
	RoleAdmin Role = "admin"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsSelfAssignable reports whether the role may be chosen at signup.
func (r Role) IsSelfAssignable() bool {
	return r == RoleClient || r == RoleProvider
}

// Roles is a slice of Role for convenience.
type Roles []Role

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings converts Roles to []string.
func (rs Roles) ToStrings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = r.String()
	}

	return result
}
