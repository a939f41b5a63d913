package core

// diff.go classifies every record of an upload against persisted state.
//
// Per sheet, rows are matched to persisted records by business key:
//   - key only in the upload: add
//   - key in both, explicit delete status: delete
//   - key in both, no compared field differs: unchanged
//   - key in both, some field differs: update, with the changed field names
//
// Parts are authoritative: under PartDeleteAbsence a persisted part missing
// from the upload is deleted too. Applications and aliases are edited per
// row, so only an explicit delete status removes one. Deleting a part
// cascades to its applications and cross references; those are reported
// under Cascade rather than as application deletes.
//
// Rows with an empty key, an unparseable status or year, or a repeated key
// are left out of the diff; validation reports them as errors.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// PartDeletePolicy decides whether a part missing from the upload is deleted.
type PartDeletePolicy string

const (
	PartDeleteAbsence  PartDeletePolicy = "absence"
	PartDeleteExplicit PartDeletePolicy = "explicit"
)

// ParsePartDeletePolicy validates a configured policy name.
func ParsePartDeletePolicy(s string) (PartDeletePolicy, error) {
	switch p := PartDeletePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PartDeleteAbsence, PartDeleteExplicit:
		return p, nil
	case "":
		return PartDeleteAbsence, nil
	}
	return "", fmt.Errorf("unknown part delete policy %q", s)
}

// Change is one classified record. Before is the persisted record and After
// the record as it will be written; adds have no Before, deletes no After.
type Change[T any] struct {
	Key           catalog.Key `json:"key"`
	Row           int         `json:"row,omitempty"`
	Before        *T          `json:"before,omitempty"`
	After         *T          `json:"after,omitempty"`
	ChangedFields []string    `json:"changedFields,omitempty"`
	Absent        bool        `json:"absent,omitempty"`
}

// SheetSummary counts one sheet's partitions.
type SheetSummary struct {
	Adds      int `json:"adds"`
	Updates   int `json:"updates"`
	Deletes   int `json:"deletes"`
	Unchanged int `json:"unchanged"`
}

// Changes returns adds + updates + deletes.
func (s SheetSummary) Changes() int { return s.Adds + s.Updates + s.Deletes }

// SheetDiff holds the four partitions of one sheet.
type SheetDiff[T any] struct {
	Adds      []Change[T]  `json:"adds"`
	Updates   []Change[T]  `json:"updates"`
	Deletes   []Change[T]  `json:"deletes"`
	Unchanged []Change[T]  `json:"unchanged"`
	Summary   SheetSummary `json:"summary"`
}

func newSheetDiff[T any]() SheetDiff[T] {
	return SheetDiff[T]{
		Adds:      []Change[T]{},
		Updates:   []Change[T]{},
		Deletes:   []Change[T]{},
		Unchanged: []Change[T]{},
	}
}

func (d *SheetDiff[T]) summarize() {
	d.Summary = SheetSummary{
		Adds:      len(d.Adds),
		Updates:   len(d.Updates),
		Deletes:   len(d.Deletes),
		Unchanged: len(d.Unchanged),
	}
}

// CascadeCrossRef is one competitor SKU removed with its part.
type CascadeCrossRef struct {
	SKU      string `json:"acrSku"`
	Brand    string `json:"brand"`
	CrossRef string `json:"crossReference"`
}

// Cascade lists child records removed implicitly by part deletes.
type Cascade struct {
	Applications    []catalog.VehicleApplication `json:"vehicleApplications"`
	CrossReferences []CascadeCrossRef            `json:"crossReferences"`
}

// DiffSummary aggregates counts across sheets.
type DiffSummary struct {
	TotalAdds              int            `json:"totalAdds"`
	TotalUpdates           int            `json:"totalUpdates"`
	TotalDeletes           int            `json:"totalDeletes"`
	TotalUnchanged         int            `json:"totalUnchanged"`
	TotalChanges           int            `json:"totalChanges"`
	ChangesBySheet         map[string]int `json:"changesBySheet"`
	CascadeApplications    int            `json:"cascadeApplications"`
	CascadeCrossReferences int            `json:"cascadeCrossReferences"`
}

// DiffResult is the full classification of an upload. BaseFingerprint
// identifies the persisted state it was computed from.
type DiffResult struct {
	Parts           SheetDiff[catalog.Part]               `json:"parts"`
	Applications    SheetDiff[catalog.VehicleApplication] `json:"vehicleApplications"`
	Aliases         SheetDiff[catalog.VehicleAlias]       `json:"aliases"`
	Cascade         Cascade                               `json:"cascade"`
	Summary         DiffSummary                           `json:"summary"`
	BaseFingerprint string                                `json:"baseFingerprint"`
	Policy          PartDeletePolicy                      `json:"partDeletePolicy"`
}

// IsEmpty reports whether applying the diff would change nothing.
func (d *DiffResult) IsEmpty() bool { return d.Summary.TotalChanges == 0 }

// ComputeDiff classifies parsed rows against state.
func ComputeDiff(parsed *ParseResult, state *catalog.State, policy PartDeletePolicy) *DiffResult {
	if policy == "" {
		policy = PartDeleteAbsence
	}
	ix := catalog.NewIndex(state)
	deletes := planPartDeletes(parsed, ix, policy)
	deleted := deletionSet(deletes)

	d := &DiffResult{
		Parts:           diffParts(parsed.Parts, ix, deletes),
		Applications:    diffApplications(parsed, ix, deleted),
		Aliases:         diffAliases(parsed.Aliases, ix),
		Cascade:         cascadeFor(deletes, ix),
		BaseFingerprint: state.Fingerprint(),
		Policy:          policy,
	}
	d.summarize()
	return d
}

func (d *DiffResult) summarize() {
	d.Parts.summarize()
	d.Applications.summarize()
	d.Aliases.summarize()

	s := DiffSummary{ChangesBySheet: make(map[string]int)}
	for _, sheet := range []struct {
		t   SheetType
		sum SheetSummary
	}{
		{SheetParts, d.Parts.Summary},
		{SheetApplications, d.Applications.Summary},
		{SheetAliases, d.Aliases.Summary},
	} {
		s.TotalAdds += sheet.sum.Adds
		s.TotalUpdates += sheet.sum.Updates
		s.TotalDeletes += sheet.sum.Deletes
		s.TotalUnchanged += sheet.sum.Unchanged
		s.ChangesBySheet[mustSheet(sheet.t).Label] = sheet.sum.Changes()
	}
	s.TotalChanges = s.TotalAdds + s.TotalUpdates + s.TotalDeletes
	s.CascadeApplications = len(d.Cascade.Applications)
	s.CascadeCrossReferences = len(d.Cascade.CrossReferences)
	d.Summary = s
}

// partDeletion is a persisted part the upload deletes. Row is the row that
// carried the delete status; absence deletes have no row.
type partDeletion struct {
	Key    catalog.Key
	Row    int
	Absent bool
}

// planPartDeletes returns explicit deletes in row order followed by absence
// deletes in key order. Nothing is deleted when the Parts sheet is unusable.
func planPartDeletes(parsed *ParseResult, ix *catalog.Index, policy PartDeletePolicy) []partDeletion {
	if !parsed.Parts.Usable() {
		return nil
	}
	var out []partDeletion
	inUpload := make(map[catalog.Key]bool, len(parsed.Parts.Rows))
	for _, r := range parsed.Parts.Rows {
		k := r.Key()
		if k.IsZero() || inUpload[k] {
			continue
		}
		inUpload[k] = true
		st, ok := catalog.ParseStatus(r.Status)
		if !ok || st != catalog.StatusDelete {
			continue
		}
		if _, exists := ix.Part(k); exists {
			out = append(out, partDeletion{Key: k, Row: r.Row})
		}
	}
	if policy == PartDeleteAbsence {
		for _, k := range ix.PartKeys() {
			if !inUpload[k] {
				out = append(out, partDeletion{Key: k, Absent: true})
			}
		}
	}
	return out
}

func deletionSet(deletes []partDeletion) map[catalog.Key]partDeletion {
	set := make(map[catalog.Key]partDeletion, len(deletes))
	for _, d := range deletes {
		set[d.Key] = d
	}
	return set
}

func diffParts(sheet Sheet[PartRow], ix *catalog.Index, deletes []partDeletion) SheetDiff[catalog.Part] {
	d := newSheetDiff[catalog.Part]()
	if !sheet.Usable() {
		return d
	}

	seen := make(map[catalog.Key]bool, len(sheet.Rows))
	for _, r := range sheet.Rows {
		k := r.Key()
		if k.IsZero() || seen[k] {
			continue
		}
		seen[k] = true
		st, ok := catalog.ParseStatus(r.Status)
		if !ok || st == catalog.StatusDelete {
			continue
		}

		persisted, exists := ix.Part(k)
		if !exists {
			after := partFromRow(sheet, r, nil)
			d.Adds = append(d.Adds, Change[catalog.Part]{Key: k, Row: r.Row, After: &after})
			continue
		}

		before := persisted.Clone()
		after := partFromRow(sheet, r, &before)
		c := Change[catalog.Part]{Key: k, Row: r.Row, Before: &before, After: &after}
		if c.ChangedFields = partChanges(before, after); len(c.ChangedFields) == 0 {
			d.Unchanged = append(d.Unchanged, c)
		} else {
			d.Updates = append(d.Updates, c)
		}
	}

	for _, del := range deletes {
		p, _ := ix.Part(del.Key)
		before := p.Clone()
		d.Deletes = append(d.Deletes, Change[catalog.Part]{Key: del.Key, Row: del.Row, Before: &before, Absent: del.Absent})
	}
	return d
}

// partFromRow builds the record a row describes. With a base record, columns
// absent from the sheet keep the base value.
func partFromRow(sheet Sheet[PartRow], r PartRow, base *catalog.Part) catalog.Part {
	var p catalog.Part
	if base != nil {
		p = base.Clone()
	}
	p.SKU = r.SKU

	set := func(prop string, dst *string, v string) {
		if base == nil || sheet.Has(prop) {
			*dst = v
		}
	}
	if base == nil || sheet.Has(PropStatus) {
		p.Status, _ = catalog.ParseStatus(r.Status)
	}
	set(PropPartType, &p.PartType, r.PartType)
	set(PropPositionType, &p.PositionType, r.PositionType)
	set(PropABSType, &p.ABSType, r.ABSType)
	set(PropBoltPattern, &p.BoltPattern, r.BoltPattern)
	set(PropDriveType, &p.DriveType, r.DriveType)
	set(PropSpecifications, &p.Specifications, r.Specifications)

	if len(r.CrossRefs) > 0 {
		if p.CrossReferences == nil {
			p.CrossReferences = make(catalog.CrossReferences)
		}
		for brand, cell := range r.CrossRefs {
			p.CrossReferences.Set(brand, cell.Apply(p.CrossReferences[brand]))
		}
	}
	if len(p.CrossReferences) == 0 {
		p.CrossReferences = nil
	}
	return p
}

// partChanges lists the canonical properties that differ, in column order.
func partChanges(before, after catalog.Part) []string {
	var fields []string
	if before.Status != after.Status {
		fields = append(fields, PropStatus)
	}
	for _, f := range []struct {
		prop string
		a, b string
	}{
		{PropPartType, before.PartType, after.PartType},
		{PropPositionType, before.PositionType, after.PositionType},
		{PropABSType, before.ABSType, after.ABSType},
		{PropBoltPattern, before.BoltPattern, after.BoltPattern},
		{PropDriveType, before.DriveType, after.DriveType},
		{PropSpecifications, before.Specifications, after.Specifications},
	} {
		if strings.TrimSpace(f.a) != strings.TrimSpace(f.b) {
			fields = append(fields, f.prop)
		}
	}
	for _, brand := range catalog.Brands {
		if !catalog.EqualSKUs(before.CrossReferences[brand], after.CrossReferences[brand]) {
			fields = append(fields, BrandProperty(brand))
		}
	}
	return fields
}

func diffApplications(parsed *ParseResult, ix *catalog.Index, deleted map[catalog.Key]partDeletion) SheetDiff[catalog.VehicleApplication] {
	d := newSheetDiff[catalog.VehicleApplication]()
	sheet := parsed.Applications
	if !sheet.Usable() {
		return d
	}
	uploaded := uploadedPartKeys(parsed)

	seen := make(map[catalog.Key]bool, len(sheet.Rows))
	for _, r := range sheet.Rows {
		k := r.Key()
		if k.IsZero() || seen[k] {
			continue
		}
		seen[k] = true
		st, ok := catalog.ParseStatus(r.Status)
		if !ok || st == catalog.StatusInactive {
			continue
		}
		start, okStart := ParseYear(r.StartYear)
		end, okEnd := ParseYear(r.EndYear)
		if !okStart || !okEnd {
			continue
		}
		pk := catalog.PartKey(r.SKU)
		if _, cascaded := deleted[pk]; cascaded {
			continue
		}

		persisted, exists := ix.Application(k)
		if st == catalog.StatusDelete {
			if exists {
				before := persisted.Clone()
				d.Deletes = append(d.Deletes, Change[catalog.VehicleApplication]{Key: k, Row: r.Row, Before: &before})
			}
			continue
		}

		if !exists {
			if _, parentPersisted := ix.Part(pk); !parentPersisted && !uploaded[pk] {
				continue
			}
			after := catalog.VehicleApplication{
				SKU:       r.SKU,
				Make:      r.Make,
				Model:     r.Model,
				StartYear: start,
				EndYear:   end,
			}
			d.Adds = append(d.Adds, Change[catalog.VehicleApplication]{Key: k, Row: r.Row, After: &after})
			continue
		}

		before := persisted.Clone()
		after := persisted.Clone()
		if sheet.Has(PropStartYear) {
			after.StartYear = start
		}
		if sheet.Has(PropEndYear) {
			after.EndYear = end
		}
		c := Change[catalog.VehicleApplication]{Key: k, Row: r.Row, Before: &before, After: &after}
		if !equalYear(before.StartYear, after.StartYear) {
			c.ChangedFields = append(c.ChangedFields, PropStartYear)
		}
		if !equalYear(before.EndYear, after.EndYear) {
			c.ChangedFields = append(c.ChangedFields, PropEndYear)
		}
		if len(c.ChangedFields) == 0 {
			d.Unchanged = append(d.Unchanged, c)
		} else {
			d.Updates = append(d.Updates, c)
		}
	}
	return d
}

func diffAliases(sheet Sheet[AliasRow], ix *catalog.Index) SheetDiff[catalog.VehicleAlias] {
	d := newSheetDiff[catalog.VehicleAlias]()
	if !sheet.Usable() {
		return d
	}

	seen := make(map[catalog.Key]bool, len(sheet.Rows))
	for _, r := range sheet.Rows {
		k := r.Key()
		if k.IsZero() || seen[k] {
			continue
		}
		seen[k] = true
		st, ok := catalog.ParseStatus(r.Status)
		if !ok || st == catalog.StatusInactive {
			continue
		}

		persisted, exists := ix.Alias(k)
		if st == catalog.StatusDelete {
			if exists {
				before := *persisted
				d.Deletes = append(d.Deletes, Change[catalog.VehicleAlias]{Key: k, Row: r.Row, Before: &before})
			}
			continue
		}

		aliasType, ok := catalog.ParseAliasType(r.AliasType)
		if !ok {
			continue
		}
		if !exists {
			after := catalog.VehicleAlias{Alias: r.Alias, CanonicalName: r.CanonicalName, AliasType: aliasType}
			d.Adds = append(d.Adds, Change[catalog.VehicleAlias]{Key: k, Row: r.Row, After: &after})
			continue
		}

		before := *persisted
		after := *persisted
		after.AliasType = aliasType
		c := Change[catalog.VehicleAlias]{Key: k, Row: r.Row, Before: &before, After: &after}
		if before.AliasType != after.AliasType {
			c.ChangedFields = []string{PropAliasType}
			d.Updates = append(d.Updates, c)
		} else {
			d.Unchanged = append(d.Unchanged, c)
		}
	}
	return d
}

// cascadeFor lists the applications and cross references owned by deleted parts.
func cascadeFor(deletes []partDeletion, ix *catalog.Index) Cascade {
	c := Cascade{
		Applications:    []catalog.VehicleApplication{},
		CrossReferences: []CascadeCrossRef{},
	}
	for _, del := range deletes {
		part, ok := ix.Part(del.Key)
		if !ok {
			continue
		}
		apps := ix.ApplicationsForPart(del.Key)
		start := len(c.Applications)
		for _, a := range apps {
			c.Applications = append(c.Applications, a.Clone())
		}
		sortApplications(c.Applications[start:])
		for _, brand := range catalog.Brands {
			for _, sku := range part.CrossReferences[brand] {
				c.CrossReferences = append(c.CrossReferences, CascadeCrossRef{SKU: part.SKU, Brand: brand, CrossRef: sku})
			}
		}
	}
	return c
}

func equalYear(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortApplications(apps []catalog.VehicleApplication) {
	sort.Slice(apps, func(i, j int) bool { return apps[i].Key() < apps[j].Key() })
}
