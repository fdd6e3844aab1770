package authz

// FeatureSet is the derived capability surface consumed by navigation and
// the page layer. It is recomputed from the identity on every call and
// must never be cached across grant or role mutations.
type FeatureSet struct {
	HasWorkMode        bool `json:"hasWorkMode"`
	CanManageUsers     bool `json:"canManageUsers"`
	HasAdminPanel      bool `json:"hasAdminPanel"`
	CanAccessCustomers bool `json:"canAccessCustomers"`
	CanAccessGroups    bool `json:"canAccessGroups"`
	CanAccessOrders    bool `json:"canAccessOrders"`
	CanAccessInvoices  bool `json:"canAccessInvoices"`
	CanAccessSuppliers bool `json:"canAccessSuppliers"`
}

// DeriveFeatures projects the evaluator output onto the feature flags.
// A nil identity yields the zero FeatureSet.
func (e *Evaluator) DeriveFeatures(id *Identity) FeatureSet {
	return FeatureSet{
		HasWorkMode:        e.Evaluate(id, PermWorkMode).Allowed,
		CanManageUsers:     e.Evaluate(id, PermManageUsers).Allowed,
		HasAdminPanel:      e.Evaluate(id, PermSystemAdmin).Allowed,
		CanAccessCustomers: e.Evaluate(id, "customers.view").Allowed,
		CanAccessGroups:    e.Evaluate(id, "groups.view").Allowed,
		CanAccessOrders:    e.Evaluate(id, "orders.view").Allowed,
		CanAccessInvoices:  e.Evaluate(id, "invoices.view").Allowed,
		CanAccessSuppliers: e.Evaluate(id, "suppliers.view").Allowed,
	}
}
