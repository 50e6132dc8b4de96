// Package attributes maps a vehicle record to the named values shown as
// sensors. Every value is read through jsonpath, so a missing or reshaped
// field is reported as absent rather than failing.
package attributes

import (
	"fmt"

	"vehiclelookup/internal/jsonpath"
)

// Category groups related attributes.
type Category string

const (
	CategoryIdentity       Category = "identity"
	CategoryGeneral        Category = "general"
	CategoryClassification Category = "classification"
	CategoryRegistration   Category = "registration"
	CategoryImport         Category = "import"
	CategoryEngine         Category = "engine"
	CategoryWeights        Category = "weights"
	CategoryDimensions     Category = "dimensions"
	CategorySeats          Category = "seats"
	CategoryEnvironment    Category = "environment"
	CategoryNEDC           Category = "nedc"
	CategoryWLTP           Category = "wltp"
	CategoryNoise          Category = "noise"
	CategoryBrakes         Category = "brakes"
	CategoryInspection     Category = "inspection"
	CategoryRemarks        Category = "remarks"
	CategoryCustom         Category = "custom"
	CategoryDiagnostic     Category = "diagnostic"
)

// Definition describes one attribute. Definitions are immutable.
type Definition struct {
	Key            string
	Name           string
	Path           jsonpath.Path
	Icon           string
	Unit           string
	EnabledDefault bool
	Category       Category
}

// Diagnostic attribute keys.
const (
	KeyLastStatus  = "last_status"
	KeyLastUpdated = "last_updated"
	KeyRawResponse = "raw_response"
)

var diagnostics = []Definition{
	{Key: KeyLastStatus, Name: "Last Lookup Status", Icon: "mdi:list-status", EnabledDefault: true, Category: CategoryDiagnostic},
	{Key: KeyLastUpdated, Name: "Last Updated", Icon: "mdi:clock-outline", EnabledDefault: true, Category: CategoryDiagnostic},
	{Key: KeyRawResponse, Name: "Raw Response", Icon: "mdi:code-json", Category: CategoryDiagnostic},
}

// Supported returns the built-in vehicle attributes in display order.
// The returned slice is a copy.
func Supported() []Definition {
	return append([]Definition(nil), supported...)
}

// Diagnostics returns the status attributes that are not read from the
// record. They have no Path.
func Diagnostics() []Definition {
	return append([]Definition(nil), diagnostics...)
}

// Lookup returns the built-in definition for key.
func Lookup(key string) (Definition, bool) {
	for _, d := range supported {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Value reads def from record. Returns nil when the field is absent or
// record is nil.
func Value(record map[string]any, def Definition) any {
	if record == nil || len(def.Path) == 0 {
		return nil
	}
	return jsonpath.Extract(record, def.Path, nil)
}

// Project reads every definition from record. Absent values are present in
// the result as nil. Values are recomputed on every call.
func Project(record map[string]any, defs []Definition) map[string]any {
	out := make(map[string]any, len(defs))
	for _, def := range defs {
		out[def.Key] = Value(record, def)
	}
	return out
}

// Custom is a user-declared attribute read from a dotted path.
type Custom struct {
	Key  string
	Name string
	Path string
	Icon string
	Unit string
}

// DefaultCustomIcon is used when a custom attribute has no icon.
const DefaultCustomIcon = "mdi:car-cog"

// Resolve returns the effective attribute list: the built-in definitions
// with enable overrides applied, followed by custom attributes. Unknown
// keys, duplicate keys and malformed paths are errors.
func Resolve(enable, disable []string, custom []Custom) ([]Definition, error) {
	defs := Supported()
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Key] = i
	}

	for _, key := range enable {
		i, ok := index[key]
		if !ok {
			return nil, fmt.Errorf("enabled_attributes: unknown attribute %q", key)
		}
		defs[i].EnabledDefault = true
	}
	for _, key := range disable {
		i, ok := index[key]
		if !ok {
			return nil, fmt.Errorf("disabled_attributes: unknown attribute %q", key)
		}
		defs[i].EnabledDefault = false
	}

	for _, d := range diagnostics {
		index[d.Key] = -1
	}
	for _, c := range custom {
		if c.Key == "" {
			return nil, fmt.Errorf("custom attribute with path %q has no key", c.Path)
		}
		if _, exists := index[c.Key]; exists {
			return nil, fmt.Errorf("custom attribute %q: key already in use", c.Key)
		}
		path, err := jsonpath.Parse(c.Path)
		if err != nil {
			return nil, fmt.Errorf("custom attribute %q: %w", c.Key, err)
		}

		name := c.Name
		if name == "" {
			name = c.Key
		}
		icon := c.Icon
		if icon == "" {
			icon = DefaultCustomIcon
		}

		index[c.Key] = len(defs)
		defs = append(defs, Definition{
			Key:            c.Key,
			Name:           name,
			Path:           path,
			Icon:           icon,
			Unit:           c.Unit,
			EnabledDefault: true,
			Category:       CategoryCustom,
		})
	}

	return defs, nil
}

func mustParse(s string) jsonpath.Path {
	p, err := jsonpath.Parse(s)
	if err != nil {
		panic(fmt.Sprintf("attributes: bad built-in path %q: %v", s, err))
	}
	return p
}
