package authz

import "strings"

// Role is the coarse privilege tier assigned to a profile.
type Role string

// Canonical roles ordered by privilege. ADMIN outranks everything.
const (
	RolePublic     Role = "PUBLIC"
	RoleStaff      Role = "STAFF"
	RoleSales      Role = "SALES"
	RoleAccountant Role = "ACCOUNTANT"
	RoleAssistant  Role = "ASSISTANT"
	RoleAdmin      Role = "ADMIN"
)

var roleRanks = map[Role]int{
	RolePublic:     0,
	RoleStaff:      1,
	RoleSales:      2,
	RoleAccountant: 3,
	RoleAssistant:  4,
	RoleAdmin:      5,
}

// legacyRoles maps the pre-migration three-tier scheme onto the canonical set.
var legacyRoles = map[string]Role{
	"SUPER_ADMIN":     RoleAdmin,
	"CORNER_EMPLOYEE": RoleAccountant,
	"FRIEND":          RolePublic,
}

// Rank returns the position of the role in the privilege order.
// Unknown role strings rank as PUBLIC so a corrupted profile row degrades
// to the least privilege instead of panicking in an authorization path.
func Rank(role Role) int {
	if rank, ok := roleRanks[role]; ok {
		return rank
	}
	return roleRanks[RolePublic]
}

// AtLeast reports whether role meets or exceeds the required tier.
func AtLeast(role, required Role) bool {
	return Rank(role) >= Rank(required)
}

// ParseRole normalizes a stored role string to a canonical Role.
// Legacy names are translated; anything unrecognized becomes PUBLIC.
func ParseRole(raw string) Role {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := roleRanks[Role(name)]; ok {
		return Role(name)
	}
	if mapped, ok := legacyRoles[name]; ok {
		return mapped
	}
	return RolePublic
}

// Roles returns the canonical role set in ascending privilege order.
func Roles() []Role {
	return []Role{RolePublic, RoleStaff, RoleSales, RoleAccountant, RoleAssistant, RoleAdmin}
}

// ValidRole reports whether the string names a canonical role.
func ValidRole(raw string) bool {
	_, ok := roleRanks[Role(strings.ToUpper(strings.TrimSpace(raw)))]
	return ok
}
