package authz

import "testing"

func TestRankOrdering(t *testing.T) {
	order := Roles()
	for i := 1; i < len(order); i++ {
		if Rank(order[i]) <= Rank(order[i-1]) {
			t.Fatalf("expected %s to outrank %s", order[i], order[i-1])
		}
	}
}

func TestRankUnknownRoleIsLowest(t *testing.T) {
	if Rank(Role("TOTALLY_BOGUS")) != Rank(RolePublic) {
		t.Fatalf("unknown role must rank as PUBLIC")
	}
	if AtLeast(Role("TOTALLY_BOGUS"), RoleStaff) {
		t.Fatalf("unknown role must not satisfy STAFF")
	}
}

func TestAtLeastReflexive(t *testing.T) {
	for _, role := range Roles() {
		if !AtLeast(role, role) {
			t.Fatalf("%s should satisfy itself", role)
		}
	}
}

func TestParseRoleLegacyNames(t *testing.T) {
	cases := map[string]Role{
		"SUPER_ADMIN":     RoleAdmin,
		"CORNER_EMPLOYEE": RoleAccountant,
		"FRIEND":          RolePublic,
		"admin":           RoleAdmin,
		" accountant ":    RoleAccountant,
		"":                RolePublic,
		"whatever":        RolePublic,
	}
	for raw, want := range cases {
		if got := ParseRole(raw); got != want {
			t.Fatalf("ParseRole(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestHierarchyMonotonicity(t *testing.T) {
	// Any hierarchy-gated key satisfied by a role is satisfied by every
	// higher role.
	roles := Roles()
	for key := range requiredRole {
		for i, lower := range roles {
			lowerID := &Identity{ID: "u", Role: lower, Active: true}
			for _, higher := range roles[i:] {
				higherID := &Identity{ID: "u", Role: higher, Active: true}
				eval := mustEvaluator(t)
				if eval.Evaluate(lowerID, key).Allowed && !eval.Evaluate(higherID, key).Allowed {
					t.Fatalf("monotonicity violated for %s: %s allowed but %s denied", key, lower, higher)
				}
			}
		}
	}
}
