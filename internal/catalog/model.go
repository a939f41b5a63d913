// Package catalog holds the parts catalog domain model: parts, vehicle
// applications, vehicle aliases and the inline cross-reference lists, plus
// the business keys used to match spreadsheet rows to persisted records.
//
// The package has no storage or transport dependencies. Both the engine in
// internal/core and the stores in internal/store depend on it.
package catalog

import (
	"sort"
	"strings"
)

// Status is the workflow status of a part or a spreadsheet row.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusDelete   Status = "DELETE"
)

// statusAliases maps accepted spreadsheet values (lowercased) to a Status.
// Spanish values are what the exported workbook carries.
var statusAliases = map[string]Status{
	"activo":   StatusActive,
	"active":   StatusActive,
	"inactivo": StatusInactive,
	"inactive": StatusInactive,
	"eliminar": StatusDelete,
	"delete":   StatusDelete,
}

// ParseStatus converts a spreadsheet status cell to a Status.
// An empty cell means Active. The second return is false for unknown values.
func ParseStatus(s string) (Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusActive, true
	}
	st, ok := statusAliases[s]
	return st, ok
}

// Label returns the Spanish label written to exported workbooks.
func (s Status) Label() string {
	switch s {
	case StatusInactive:
		return "Inactivo"
	case StatusDelete:
		return "Eliminar"
	default:
		return "Activo"
	}
}

// AliasType says whether an alias expands a vehicle make or a model.
type AliasType string

const (
	AliasMake  AliasType = "make"
	AliasModel AliasType = "model"
)

// ParseAliasType converts a spreadsheet cell to an AliasType.
func ParseAliasType(s string) (AliasType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "make", "marca":
		return AliasMake, true
	case "model", "modelo":
		return AliasModel, true
	}
	return "", false
}

// Brands lists the competitor brands that carry a cross-reference column,
// in export column order.
var Brands = []string{
	"NATIONAL",
	"ATV",
	"SYD",
	"TMK",
	"GROB",
	"RACE",
	"OEM",
	"OEM_2",
	"GMB",
	"GSP",
	"FAG",
}

// IsBrand reports whether code is one of the supported brands.
func IsBrand(code string) bool {
	for _, b := range Brands {
		if b == code {
			return true
		}
	}
	return false
}

// CrossReferences maps a brand code to the competitor SKUs equivalent to a part.
type CrossReferences map[string][]string

// Clone returns a deep copy.
func (c CrossReferences) Clone() CrossReferences {
	if c == nil {
		return nil
	}
	out := make(CrossReferences, len(c))
	for brand, skus := range c {
		out[brand] = append([]string(nil), skus...)
	}
	return out
}

// Count returns the total number of competitor SKUs across brands.
func (c CrossReferences) Count() int {
	n := 0
	for _, skus := range c {
		n += len(skus)
	}
	return n
}

// Set replaces a brand's list, normalizing it. An empty list removes the brand.
func (c CrossReferences) Set(brand string, skus []string) {
	skus = NormalizeSKUs(skus)
	if len(skus) == 0 {
		delete(c, brand)
		return
	}
	c[brand] = skus
}

// NormalizeSKUs trims, de-duplicates and sorts a SKU list.
func NormalizeSKUs(skus []string) []string {
	seen := make(map[string]bool, len(skus))
	out := make([]string, 0, len(skus))
	for _, s := range skus {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// EqualSKUs compares two normalized SKU lists.
func EqualSKUs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Part is a catalog part. SKU is the business key and never changes once assigned.
type Part struct {
	ID              string          `json:"id"`
	SKU             string          `json:"acr_sku"`
	Status          Status          `json:"status"`
	PartType        string          `json:"part_type,omitempty"`
	PositionType    string          `json:"position_type,omitempty"`
	ABSType         string          `json:"abs_type,omitempty"`
	BoltPattern     string          `json:"bolt_pattern,omitempty"`
	DriveType       string          `json:"drive_type,omitempty"`
	Specifications  string          `json:"specifications,omitempty"`
	CrossReferences CrossReferences `json:"cross_references,omitempty"`
}

// Clone returns a deep copy of the part.
func (p Part) Clone() Part {
	p.CrossReferences = p.CrossReferences.Clone()
	return p
}

// Key returns the part's business key.
func (p Part) Key() Key { return PartKey(p.SKU) }

// VehicleApplication says a part fits a vehicle make/model over a year range.
// PartID is the surrogate foreign key; SKU is the parent's business key.
type VehicleApplication struct {
	ID        string `json:"id"`
	PartID    string `json:"part_id"`
	SKU       string `json:"acr_sku"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	StartYear *int   `json:"start_year,omitempty"`
	EndYear   *int   `json:"end_year,omitempty"`
}

// Clone returns a copy that shares no pointers with a.
func (a VehicleApplication) Clone() VehicleApplication {
	a.StartYear = cloneInt(a.StartYear)
	a.EndYear = cloneInt(a.EndYear)
	return a
}

// Key returns the application's business key.
func (a VehicleApplication) Key() Key { return ApplicationKey(a.SKU, a.Make, a.Model) }

// VehicleAlias maps a vehicle nickname to a canonical make or model name.
type VehicleAlias struct {
	ID            string    `json:"id"`
	Alias         string    `json:"alias"`
	CanonicalName string    `json:"canonical_name"`
	AliasType     AliasType `json:"alias_type"`
}

// Key returns the alias's business key.
func (a VehicleAlias) Key() Key { return AliasKey(a.Alias, a.CanonicalName) }

// State is a full copy of the persisted catalog.
type State struct {
	Parts        []Part               `json:"parts"`
	Applications []VehicleApplication `json:"vehicle_applications"`
	Aliases      []VehicleAlias       `json:"aliases"`
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return &State{}
	}
	out := &State{
		Parts:        make([]Part, len(s.Parts)),
		Applications: make([]VehicleApplication, len(s.Applications)),
		Aliases:      append([]VehicleAlias(nil), s.Aliases...),
	}
	for i, p := range s.Parts {
		out.Parts[i] = p.Clone()
	}
	for i, a := range s.Applications {
		out.Applications[i] = a.Clone()
	}
	return out
}

// Sort orders every collection by business key.
func (s *State) Sort() {
	sort.Slice(s.Parts, func(i, j int) bool { return s.Parts[i].Key() < s.Parts[j].Key() })
	sort.Slice(s.Applications, func(i, j int) bool { return s.Applications[i].Key() < s.Applications[j].Key() })
	sort.Slice(s.Aliases, func(i, j int) bool { return s.Aliases[i].Key() < s.Aliases[j].Key() })
}

// CrossReferenceCount returns the number of competitor SKUs across all parts.
func (s *State) CrossReferenceCount() int {
	n := 0
	for _, p := range s.Parts {
		n += p.CrossReferences.Count()
	}
	return n
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
