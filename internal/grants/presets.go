package grants

import (
	"sort"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
)

// PresetWorkMode is the quick-grant bundle handed to employees who need
// the work surface without a role change.
const PresetWorkMode = "work-mode"

var presets = map[string][]string{
	PresetWorkMode: {
		authz.PermWorkMode,
		"projects.view",
		"projects.create",
		"todos.convert",
		"orders.view",
		"customers.view",
	},
}

// Preset resolves a named preset to its ordered key list.
func Preset(name string) ([]string, bool) {
	keys, ok := presets[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out, true
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
