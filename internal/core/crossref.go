package core

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// deleteMarker matches "[DELETE]" or "[ELIMINAR]" with optional trailing space.
var deleteMarker = regexp.MustCompile(`(?i)\[\s*(delete|eliminar)\s*\]\s*`)

// CrossRefCell is one parsed brand cell of a Parts row.
type CrossRefCell struct {
	Raw             string
	Add             []string // SKUs the cell lists
	Remove          []string // SKUs marked for removal
	LegacyDelimiter bool     // Cell was split on whitespace instead of ';'
}

// SplitCrossReferences parses a brand cell.
//
// A cell containing ';' always splits on ';'. A cell without ';' whose
// whitespace-separated tokens number more than one splits on whitespace and
// is flagged as legacy. A segment prefixed with the delete marker marks that
// SKU and every following SKU in the cell as a removal.
func SplitCrossReferences(raw string) CrossRefCell {
	cell := CrossRefCell{Raw: raw}
	s := CleanCell(raw)
	if s == "" {
		return cell
	}

	var segments []string
	if strings.Contains(s, ";") {
		segments = strings.Split(s, ";")
	} else {
		// A marker followed by a space is still one segment.
		fields := strings.Fields(deleteMarker.ReplaceAllStringFunc(s, func(m string) string {
			return strings.TrimSpace(m)
		}))
		if len(fields) > 1 {
			cell.LegacyDelimiter = true
		}
		segments = fields
	}

	removing := false
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if loc := deleteMarker.FindStringIndex(seg); loc != nil && loc[0] == 0 {
			removing = true
			seg = strings.TrimSpace(seg[loc[1]:])
		}
		if seg == "" {
			continue
		}
		if removing {
			cell.Remove = append(cell.Remove, seg)
		} else {
			cell.Add = append(cell.Add, seg)
		}
	}
	cell.Add = catalog.NormalizeSKUs(cell.Add)
	cell.Remove = catalog.NormalizeSKUs(cell.Remove)
	return cell
}

// HasRemovals reports whether the cell edits the list surgically.
func (c CrossRefCell) HasRemovals() bool { return len(c.Remove) > 0 }

// Apply returns the brand list that results from applying the cell to current.
// A cell without removals replaces the list; a cell with removals computes
// (current ∪ Add) − Remove so that unmarked SKUs survive.
func (c CrossRefCell) Apply(current []string) []string {
	if !c.HasRemovals() {
		return catalog.NormalizeSKUs(c.Add)
	}
	drop := make(map[string]bool, len(c.Remove))
	for _, s := range c.Remove {
		drop[s] = true
	}
	merged := make([]string, 0, len(current)+len(c.Add))
	for _, s := range append(append([]string(nil), current...), c.Add...) {
		if !drop[s] {
			merged = append(merged, s)
		}
	}
	return catalog.NormalizeSKUs(merged)
}

// Missing returns the removal targets not present in current.
func (c CrossRefCell) Missing(current []string) []string {
	have := make(map[string]bool, len(current))
	for _, s := range current {
		have[s] = true
	}
	var out []string
	for _, s := range c.Remove {
		if !have[s] {
			out = append(out, s)
		}
	}
	return out
}
