package commissions

import (
	"errors"
	"strings"
)

// Role is a category of sales agent eligible for commission
type Role string

const (
	RoleCoach  Role = "coach"
	RoleCloser Role = "closer"
	RoleSetter Role = "setter"
)

// ErrUnknownRole is returned when parsing a role outside the closed set
var ErrUnknownRole = errors.New("unknown commission role")

// Roles returns every role in payout order
func Roles() []Role {
	return []Role{RoleCoach, RoleCloser, RoleSetter}
}

// ParseRole accepts any casing of a known role
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCoach:
		return RoleCoach, nil
	case RoleCloser:
		return RoleCloser, nil
	case RoleSetter:
		return RoleSetter, nil
	}
	return "", ErrUnknownRole
}

// RoleSet flags which roles take part in a sale
type RoleSet struct {
	Coach  bool `json:"coach"`
	Closer bool `json:"closer"`
	Setter bool `json:"setter"`
}

// Has reports whether role is flagged
func (s RoleSet) Has(role Role) bool {
	switch role {
	case RoleCoach:
		return s.Coach
	case RoleCloser:
		return s.Closer
	case RoleSetter:
		return s.Setter
	}
	return false
}

// Empty reports whether no role is flagged
func (s RoleSet) Empty() bool {
	return !s.Coach && !s.Closer && !s.Setter
}
