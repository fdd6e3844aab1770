package authz

import (
	"fmt"
	"sort"
)

// Core permission keys resolved against the derived feature surface.
const (
	PermWorkMode      = "mode.work"
	PermManageUsers   = "admin.users"
	PermAdminSettings = "admin.settings"
	PermSystemAdmin   = "system.admin"
)

// Definition is an immutable catalog entry describing one grantable key.
type Definition struct {
	Key         string
	Category    string
	Label       string
	Description string
}

// grantGated keys are resolved from explicit grants (plus role-implied
// grants), never from the hierarchy table.
var grantGated = map[string]struct{}{
	PermWorkMode:      {},
	PermManageUsers:   {},
	PermAdminSettings: {},
}

// requiredRole gates the remaining keys purely on the role hierarchy.
var requiredRole = map[string]Role{
	PermSystemAdmin: RoleAdmin,

	"customers.view":   RolePublic,
	"customers.create": RolePublic,
	"customers.update": RolePublic,
	"customers.delete": RoleAccountant,
	"customers.import": RoleAccountant,

	"groups.view":         RolePublic,
	"groups.create":       RolePublic,
	"groups.update":       RolePublic,
	"groups.delete":       RoleAccountant,
	"groups.manage_bonus": RoleAccountant,

	"orders.view":   RoleStaff,
	"orders.create": RoleStaff,
	"orders.update": RoleStaff,
	"orders.delete": RoleAccountant,

	"invoices.view":    RolePublic,
	"invoices.create":  RolePublic,
	"invoices.update":  RolePublic,
	"invoices.delete":  RoleAccountant,
	"invoices.confirm": RoleAccountant,

	"receipts.view":   RolePublic,
	"receipts.create": RolePublic,
	"receipts.update": RolePublic,
	"receipts.delete": RoleAccountant,

	"suppliers.view":   RolePublic,
	"suppliers.create": RoleAccountant,
	"suppliers.update": RoleAccountant,
	"suppliers.delete": RoleAccountant,

	"projects.view":   RoleStaff,
	"projects.create": RoleStaff,
	"todos.convert":   RoleStaff,
}

// Catalog is the validated universe of grantable permissions.
type Catalog struct {
	ordered []Definition
	byKey   map[string]Definition
}

// NewCatalog validates the stored definitions against the resolution
// tables. Every definition must be bound to exactly one strategy; a key
// bound to none (or both) is a deployment bug surfaced at startup instead
// of a silent deny at call time.
func NewCatalog(defs []Definition) (*Catalog, error) {
	byKey := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if def.Key == "" {
			return nil, fmt.Errorf("authz: catalog entry with empty key (category %q)", def.Category)
		}
		if _, dup := byKey[def.Key]; dup {
			return nil, fmt.Errorf("authz: duplicate catalog key %q", def.Key)
		}
		_, isGrant := grantGated[def.Key]
		_, isHierarchy := requiredRole[def.Key]
		if isGrant && isHierarchy {
			return nil, fmt.Errorf("authz: key %q bound to both resolution strategies", def.Key)
		}
		if !isGrant && !isHierarchy {
			return nil, fmt.Errorf("authz: key %q has no resolution strategy", def.Key)
		}
		byKey[def.Key] = def
	}
	ordered := make([]Definition, 0, len(byKey))
	for _, def := range byKey {
		ordered = append(ordered, def)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Category != ordered[j].Category {
			return ordered[i].Category < ordered[j].Category
		}
		return ordered[i].Key < ordered[j].Key
	})
	return &Catalog{ordered: ordered, byKey: byKey}, nil
}

// Definitions returns the catalog ordered by (category, key).
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// DefinitionFor looks up a single entry.
func (c *Catalog) DefinitionFor(key string) (Definition, bool) {
	def, ok := c.byKey[key]
	return def, ok
}

// Contains reports whether the key exists in the catalog.
func (c *Catalog) Contains(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

// Keys returns every catalog key in display order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.ordered))
	for i, def := range c.ordered {
		keys[i] = def.Key
	}
	return keys
}

// GrantGated reports whether the key resolves through explicit grants.
func GrantGated(key string) bool {
	_, ok := grantGated[key]
	return ok
}

// DefaultDefinitions returns the deployment catalog used by the seed
// script and by tests. Production reads the same rows back from the
// permission_definitions table.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Key: PermWorkMode, Category: "core", Label: "Work mode", Description: "Access the work-mode feature surface"},
		{Key: PermManageUsers, Category: "core", Label: "Manage users", Description: "Administer user accounts and permissions"},
		{Key: PermAdminSettings, Category: "core", Label: "Admin settings", Description: "Change system-wide settings"},
		{Key: PermSystemAdmin, Category: "core", Label: "System administrator", Description: "Full administrative surface"},

		{Key: "customers.view", Category: "customers", Label: "View customers", Description: "Browse customer records"},
		{Key: "customers.create", Category: "customers", Label: "Create customers", Description: "Register new customers"},
		{Key: "customers.update", Category: "customers", Label: "Update customers", Description: "Edit customer records"},
		{Key: "customers.delete", Category: "customers", Label: "Delete customers", Description: "Remove customer records"},
		{Key: "customers.import", Category: "customers", Label: "Import customers", Description: "Bulk import customer data"},

		{Key: "groups.view", Category: "groups", Label: "View groups", Description: "Browse travel groups"},
		{Key: "groups.create", Category: "groups", Label: "Create groups", Description: "Open new travel groups"},
		{Key: "groups.update", Category: "groups", Label: "Update groups", Description: "Edit travel groups"},
		{Key: "groups.delete", Category: "groups", Label: "Delete groups", Description: "Remove travel groups"},
		{Key: "groups.manage_bonus", Category: "groups", Label: "Manage bonuses", Description: "Adjust group bonus settlements"},

		{Key: "orders.view", Category: "orders", Label: "View orders", Description: "Browse orders"},
		{Key: "orders.create", Category: "orders", Label: "Create orders", Description: "Place new orders"},
		{Key: "orders.update", Category: "orders", Label: "Update orders", Description: "Edit orders"},
		{Key: "orders.delete", Category: "orders", Label: "Delete orders", Description: "Remove orders"},

		{Key: "invoices.view", Category: "invoices", Label: "View invoices", Description: "Browse invoices"},
		{Key: "invoices.create", Category: "invoices", Label: "Create invoices", Description: "Issue invoices"},
		{Key: "invoices.update", Category: "invoices", Label: "Update invoices", Description: "Edit invoices"},
		{Key: "invoices.delete", Category: "invoices", Label: "Delete invoices", Description: "Remove invoices"},
		{Key: "invoices.confirm", Category: "invoices", Label: "Confirm invoices", Description: "Confirm invoices for posting"},

		{Key: "receipts.view", Category: "receipts", Label: "View receipts", Description: "Browse receipts"},
		{Key: "receipts.create", Category: "receipts", Label: "Create receipts", Description: "Record receipts"},
		{Key: "receipts.update", Category: "receipts", Label: "Update receipts", Description: "Edit receipts"},
		{Key: "receipts.delete", Category: "receipts", Label: "Delete receipts", Description: "Remove receipts"},

		{Key: "suppliers.view", Category: "suppliers", Label: "View suppliers", Description: "Browse suppliers"},
		{Key: "suppliers.create", Category: "suppliers", Label: "Create suppliers", Description: "Register suppliers"},
		{Key: "suppliers.update", Category: "suppliers", Label: "Update suppliers", Description: "Edit suppliers"},
		{Key: "suppliers.delete", Category: "suppliers", Label: "Delete suppliers", Description: "Remove suppliers"},

		{Key: "projects.view", Category: "projects", Label: "View projects", Description: "Browse work projects"},
		{Key: "projects.create", Category: "projects", Label: "Create projects", Description: "Open work projects"},
		{Key: "todos.convert", Category: "todos", Label: "Convert todos", Description: "Convert personal todos into work items"},
	}
}
