package catalog

import (
	"sort"
	"strings"
)

// Key is a business key. Composite keys join their trimmed parts with a unit
// separator so that no spreadsheet value can collide with the delimiter.
// Comparison is case-sensitive.
type Key string

const keySep = "\x1f"

func makeKey(parts ...string) Key {
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		parts[i] = p
	}
	return Key(strings.Join(parts, keySep))
}

// PartKey is the key of a part: its acr_sku.
func PartKey(sku string) Key { return makeKey(sku) }

// ApplicationKey is the key of a vehicle application: (acr_sku, make, model).
// Years are not part of the key, so a year edit is an update.
func ApplicationKey(sku, vehicleMake, model string) Key {
	return makeKey(sku, vehicleMake, model)
}

// AliasKey is the key of a vehicle alias: (alias, canonical_name).
func AliasKey(alias, canonical string) Key { return makeKey(alias, canonical) }

// IsZero reports whether the key is missing one of its parts.
func (k Key) IsZero() bool { return k == "" }

// Parts splits a composite key into its components.
func (k Key) Parts() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), keySep)
}

// String renders the key for messages, e.g. "ACR-100 / Nissan / Sentra".
func (k Key) String() string {
	return strings.Join(k.Parts(), " / ")
}

// Index resolves business keys and internal ids against a persisted state.
// It never invents identifiers: a key that does not resolve is new.
type Index struct {
	parts       map[Key]*Part
	partsByID   map[string]*Part
	apps        map[Key]*VehicleApplication
	appsByID    map[string]*VehicleApplication
	appsByPart  map[Key][]*VehicleApplication
	aliases     map[Key]*VehicleAlias
	aliasesByID map[string]*VehicleAlias
	sortedParts []Key
}

// NewIndex builds an index over state. The index references state's records;
// callers must not mutate state while the index is in use.
func NewIndex(state *State) *Index {
	if state == nil {
		state = &State{}
	}
	ix := &Index{
		parts:       make(map[Key]*Part, len(state.Parts)),
		partsByID:   make(map[string]*Part, len(state.Parts)),
		apps:        make(map[Key]*VehicleApplication, len(state.Applications)),
		appsByID:    make(map[string]*VehicleApplication, len(state.Applications)),
		appsByPart:  make(map[Key][]*VehicleApplication),
		aliases:     make(map[Key]*VehicleAlias, len(state.Aliases)),
		aliasesByID: make(map[string]*VehicleAlias, len(state.Aliases)),
	}
	for i := range state.Parts {
		p := &state.Parts[i]
		ix.parts[p.Key()] = p
		ix.sortedParts = append(ix.sortedParts, p.Key())
		if p.ID != "" {
			ix.partsByID[p.ID] = p
		}
	}
	for i := range state.Applications {
		a := &state.Applications[i]
		ix.apps[a.Key()] = a
		ix.appsByPart[PartKey(a.SKU)] = append(ix.appsByPart[PartKey(a.SKU)], a)
		if a.ID != "" {
			ix.appsByID[a.ID] = a
		}
	}
	for i := range state.Aliases {
		a := &state.Aliases[i]
		ix.aliases[a.Key()] = a
		if a.ID != "" {
			ix.aliasesByID[a.ID] = a
		}
	}
	sortKeys(ix.sortedParts)
	return ix
}

// ResolvePart returns the persisted id for a part key, or false if the key is new.
func (ix *Index) ResolvePart(k Key) (string, bool) {
	if p, ok := ix.parts[k]; ok {
		return p.ID, true
	}
	return "", false
}

// ResolveApplication returns the persisted id for an application key.
func (ix *Index) ResolveApplication(k Key) (string, bool) {
	if a, ok := ix.apps[k]; ok {
		return a.ID, true
	}
	return "", false
}

// ResolveAlias returns the persisted id for an alias key.
func (ix *Index) ResolveAlias(k Key) (string, bool) {
	if a, ok := ix.aliases[k]; ok {
		return a.ID, true
	}
	return "", false
}

// Part returns the persisted part for a key.
func (ix *Index) Part(k Key) (*Part, bool) {
	p, ok := ix.parts[k]
	return p, ok
}

// PartByID returns the persisted part with the given internal id.
func (ix *Index) PartByID(id string) (*Part, bool) {
	p, ok := ix.partsByID[id]
	return p, ok
}

// Application returns the persisted application for a key.
func (ix *Index) Application(k Key) (*VehicleApplication, bool) {
	a, ok := ix.apps[k]
	return a, ok
}

// ApplicationByID returns the persisted application with the given internal id.
func (ix *Index) ApplicationByID(id string) (*VehicleApplication, bool) {
	a, ok := ix.appsByID[id]
	return a, ok
}

// ApplicationsForPart returns the persisted applications owned by a part.
func (ix *Index) ApplicationsForPart(k Key) []*VehicleApplication {
	return ix.appsByPart[k]
}

// Alias returns the persisted alias for a key.
func (ix *Index) Alias(k Key) (*VehicleAlias, bool) {
	a, ok := ix.aliases[k]
	return a, ok
}

// AliasByID returns the persisted alias with the given internal id.
func (ix *Index) AliasByID(id string) (*VehicleAlias, bool) {
	a, ok := ix.aliasesByID[id]
	return a, ok
}

// PartKeys returns every persisted part key in sorted order.
func (ix *Index) PartKeys() []Key {
	return ix.sortedParts
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
