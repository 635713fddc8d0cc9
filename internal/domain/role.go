package domain

import (
	"sort"
	"strings"
)

// Role is the closed set of access profiles an identity can hold.
// A credential always carries exactly one active role.
type Role string

const (
	RolePassenger Role = "PASSENGER"
	RoleCompany   Role = "COMPANY"
	RoleAdmin     Role = "ADMIN"
)

// AllRoles lists every valid role in a stable order.
func AllRoles() []Role {
	return []Role{RolePassenger, RoleCompany, RoleAdmin}
}

// ParseRole parses a role name case-insensitively. ok is false for anything outside the closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RolePassenger, RoleCompany, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleCompany, RoleAdmin:
		return true
	default:
		return false
	}
}

// Roles is a set of roles held by an identity.
type Roles []Role

func (rs Roles) Has(r Role) bool {
	for _, v := range rs {
		if v == r {
			return true
		}
	}
	return false
}

// With returns a copy of rs that also contains r. The result is sorted and deduplicated.
func (rs Roles) With(r Role) Roles {
	out := make(Roles, 0, len(rs)+1)
	out = append(out, rs...)
	if !rs.Has(r) {
		out = append(out, r)
	}
	out.sort()
	return out
}

// Without returns a copy of rs with r removed.
func (rs Roles) Without(r Role) Roles {
	out := make(Roles, 0, len(rs))
	for _, v := range rs {
		if v != r {
			out = append(out, v)
		}
	}
	return out
}

// Strings returns the role names in stable order.
func (rs Roles) Strings() []string {
	cp := append(Roles(nil), rs...)
	cp.sort()
	out := make([]string, 0, len(cp))
	for _, r := range cp {
		out = append(out, string(r))
	}
	return out
}

// RolesFromStrings parses stored role names, skipping unknown values.
func RolesFromStrings(ss []string) Roles {
	out := make(Roles, 0, len(ss))
	for _, s := range ss {
		if r, ok := ParseRole(s); ok && !out.Has(r) {
			out = append(out, r)
		}
	}
	out.sort()
	return out
}

func (rs Roles) sort() {
	rank := map[Role]int{RolePassenger: 0, RoleCompany: 1, RoleAdmin: 2}
	sort.Slice(rs, func(i, j int) bool { return rank[rs[i]] < rank[rs[j]] })
}
