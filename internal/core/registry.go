package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SheetType identifies one logical sheet of the catalog workbook.
type SheetType string

const (
	SheetParts        SheetType = "parts"
	SheetApplications SheetType = "vehicle_applications"
	SheetAliases      SheetType = "vehicle_aliases"
)

// ColumnSpec maps the header variants of one column to its canonical property.
type ColumnSpec struct {
	Property string   // Canonical property name, also the underscore fallback form
	Headers  []string // Friendly spaced names; the first is written on export
	Short    []string // Simplified names, e.g. a bare brand name
	Required bool     // Header must be present for the sheet to be usable
	Brand    string   // Brand code for cross-reference columns
	Exported bool     // Written by ExportWorkbook
}

// SheetDefinition describes one logical sheet: accepted sheet names, the
// column used to locate the header row, and the closed header table.
type SheetDefinition struct {
	Type      SheetType
	Label     string   // Sheet name written on export
	Names     []string // Accepted sheet names
	Required  bool     // A workbook without this sheet is rejected
	Order     int
	KeyColumn string
	Columns   []ColumnSpec

	friendly map[string]string
	short    map[string]string
	props    map[string]bool
}

// Resolve returns the canonical property for a header cell. Tiers are tried
// in order: friendly name, simplified name, underscore-normalized fallback.
func (d SheetDefinition) Resolve(header string) (string, bool) {
	h := foldHeader(header)
	if h == "" {
		return "", false
	}
	if p, ok := d.friendly[h]; ok {
		return p, true
	}
	if p, ok := d.short[h]; ok {
		return p, true
	}
	if u := underscoreHeader(header); d.props[u] {
		return u, true
	}
	return "", false
}

// Column returns the column for a canonical property.
func (d SheetDefinition) Column(property string) (ColumnSpec, bool) {
	for _, c := range d.Columns {
		if c.Property == property {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// MatchesName reports whether a workbook sheet name refers to this sheet.
func (d SheetDefinition) MatchesName(name string) bool {
	n := underscoreHeader(name)
	for _, candidate := range d.Names {
		if underscoreHeader(candidate) == n {
			return true
		}
	}
	return false
}

// Registry holds the sheet definitions the parser and exporter work from.
type Registry struct {
	mu     sync.RWMutex
	sheets map[SheetType]SheetDefinition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sheets: make(map[SheetType]SheetDefinition)}
}

var defaultRegistry = NewRegistry()

// Register adds a sheet definition to the default registry.
func Register(def SheetDefinition) { defaultRegistry.Register(def) }

// Get returns a sheet definition from the default registry.
func Get(t SheetType) (SheetDefinition, bool) { return defaultRegistry.Get(t) }

// All returns every sheet definition in the default registry.
func All() []SheetDefinition { return defaultRegistry.All() }

// Register adds a sheet definition and builds its header lookup tables.
// Panics if the sheet is already registered or if one header variant maps
// to two different properties; the header table is fixed at startup.
func (r *Registry) Register(def SheetDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sheets[def.Type]; exists {
		panic(fmt.Sprintf("sheet already registered: %s", def.Type))
	}

	def.friendly = make(map[string]string)
	def.short = make(map[string]string)
	def.props = make(map[string]bool)

	for _, col := range def.Columns {
		if def.props[col.Property] {
			panic(fmt.Sprintf("sheet %s: duplicate property %q", def.Type, col.Property))
		}
		def.props[col.Property] = true
		addVariants(def.Type, def.friendly, col.Headers, col.Property)
		addVariants(def.Type, def.short, col.Short, col.Property)
	}
	if !def.props[def.KeyColumn] {
		panic(fmt.Sprintf("sheet %s: key column %q not defined", def.Type, def.KeyColumn))
	}

	r.sheets[def.Type] = def
}

func addVariants(t SheetType, table map[string]string, variants []string, property string) {
	for _, v := range variants {
		k := foldHeader(v)
		if prev, ok := table[k]; ok && prev != property {
			panic(fmt.Sprintf("sheet %s: header %q maps to both %q and %q", t, v, prev, property))
		}
		table[k] = property
	}
}

// Get returns a sheet definition by type.
func (r *Registry) Get(t SheetType) (SheetDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.sheets[t]
	return def, ok
}

// All returns every registered sheet definition in workbook order.
func (r *Registry) All() []SheetDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]SheetDefinition, 0, len(r.sheets))
	for _, def := range r.sheets {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Order < result[j].Order
	})
	return result
}

// foldHeader lowercases a header and collapses internal whitespace.
func foldHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(CleanCell(s)), " "))
}

// underscoreHeader turns "National SKUs" into "national_skus".
func underscoreHeader(s string) string {
	s = strings.ToLower(CleanCell(s))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := b.String()
	if strings.HasPrefix(s, "_") {
		return "_" + strings.Trim(out, "_")
	}
	return strings.Trim(out, "_")
}
