package core

// snapshot.go captures pre-apply state and plans its reversal.
//
// A snapshot holds the complete catalog as it was before an import, plus a
// manifest of the records the import touched and their fingerprints right
// after it. Rollback reverses only the manifest's records:
//   - added records are deleted
//   - deleted records are reinserted verbatim, ids included
//   - updated records get their pre-import values back
//
// Rollback is refused when the catalog has diverged from what the import
// left behind, e.g. a later import edited the same record. The check is
// conservative: any touched record whose current content differs from its
// post-import fingerprint is a conflict.

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// CaptureSnapshot records state and the manifest of what d will change.
// Applications removed by cascade are listed as deleted applications.
func CaptureSnapshot(state *catalog.State, d *DiffResult, now time.Time) catalog.Snapshot {
	snap := catalog.Snapshot{
		CapturedAt:      now.UTC(),
		BaseFingerprint: d.BaseFingerprint,
		State:           *state.Clone(),
	}
	snap.State.Sort()

	m := &snap.Manifest
	for _, c := range d.Parts.Adds {
		m.Parts.Added = append(m.Parts.Added, catalog.TouchedEntity{Key: c.Key, PostHash: c.After.Fingerprint()})
	}
	for _, c := range d.Parts.Updates {
		m.Parts.Updated = append(m.Parts.Updated, catalog.TouchedEntity{Key: c.Key, PostHash: c.After.Fingerprint()})
	}
	for _, c := range d.Parts.Deletes {
		m.Parts.Deleted = append(m.Parts.Deleted, catalog.TouchedEntity{Key: c.Key})
	}

	for _, c := range d.Applications.Adds {
		m.Applications.Added = append(m.Applications.Added, catalog.TouchedEntity{Key: c.Key, PostHash: c.After.Fingerprint()})
	}
	for _, c := range d.Applications.Updates {
		m.Applications.Updated = append(m.Applications.Updated, catalog.TouchedEntity{Key: c.Key, PostHash: c.After.Fingerprint()})
	}
	for _, c := range d.Applications.Deletes {
		m.Applications.Deleted = append(m.Applications.Deleted, catalog.TouchedEntity{Key: c.Key})
	}
	for _, a := range d.Cascade.Applications {
		m.Applications.Deleted = append(m.Applications.Deleted, catalog.TouchedEntity{Key: a.Key()})
	}

	for _, c := range d.Aliases.Adds {
		m.Aliases.Added = append(m.Aliases.Added, catalog.TouchedEntity{Key: c.Key, PostHash: c.After.Fingerprint()})
	}
	for _, c := range d.Aliases.Updates {
		m.Aliases.Updated = append(m.Aliases.Updated, catalog.TouchedEntity{Key: c.Key, PostHash: c.After.Fingerprint()})
	}
	for _, c := range d.Aliases.Deletes {
		m.Aliases.Deleted = append(m.Aliases.Deleted, catalog.TouchedEntity{Key: c.Key})
	}
	return snap
}

// Conflict is one record that blocks a rollback.
type Conflict struct {
	Sheet  string `json:"sheet"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// DivergenceError is returned when the catalog no longer matches the state an
// import left behind.
type DivergenceError struct {
	Conflicts []Conflict
}

func (e *DivergenceError) Error() string {
	const maxShown = 3
	parts := make([]string, 0, maxShown)
	for i, c := range e.Conflicts {
		if i == maxShown {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %s: %s", c.Sheet, c.Key, c.Reason))
	}
	msg := fmt.Sprintf("catalog diverged since import: %d conflicting records (%s", len(e.Conflicts), strings.Join(parts, "; "))
	if len(e.Conflicts) > maxShown {
		msg += "; ..."
	}
	return msg + ")"
}

// RestorePlan is the ordered set of writes that reverses one import.
type RestorePlan struct {
	DeleteApplications []catalog.VehicleApplication
	DeleteAliases      []catalog.VehicleAlias
	DeleteParts        []catalog.Part
	InsertParts        []catalog.Part
	UpdateParts        []catalog.Part
	InsertApplications []catalog.VehicleApplication
	UpdateApplications []catalog.VehicleApplication
	InsertAliases      []catalog.VehicleAlias
	UpdateAliases      []catalog.VehicleAlias
	Counts             catalog.RestoredCounts
}

// PlanRestore checks current against the snapshot's manifest and returns the
// writes that restore every touched record. It returns *DivergenceError when
// any touched record changed after the import.
func PlanRestore(snap catalog.Snapshot, current *catalog.State) (*RestorePlan, error) {
	pre := catalog.NewIndex(&snap.State)
	cur := catalog.NewIndex(current)
	m := snap.Manifest

	r := &restorer{plan: &RestorePlan{}}
	partsLabel := mustSheet(SheetParts).Label
	appsLabel := mustSheet(SheetApplications).Label
	aliasesLabel := mustSheet(SheetAliases).Label

	addedApps := make(map[catalog.Key]bool, len(m.Applications.Added))
	for _, t := range m.Applications.Added {
		addedApps[t.Key] = true
	}
	addedParts := make(map[catalog.Key]bool, len(m.Parts.Added))
	for _, t := range m.Parts.Added {
		addedParts[t.Key] = true
	}
	reinsertedParts := make(map[catalog.Key]bool, len(m.Parts.Deleted))
	for _, t := range m.Parts.Deleted {
		reinsertedParts[t.Key] = true
	}

	// Parts.
	for _, t := range m.Parts.Added {
		p, ok := cur.Part(t.Key)
		if !ok {
			r.conflict(partsLabel, t.Key, "added part no longer exists")
			continue
		}
		if p.Fingerprint() != t.PostHash {
			r.conflict(partsLabel, t.Key, "added part was modified after the import")
			continue
		}
		for _, a := range cur.ApplicationsForPart(t.Key) {
			if !addedApps[a.Key()] {
				r.conflict(appsLabel, a.Key(), "application was added to an imported part after the import")
			}
		}
		r.plan.DeleteParts = append(r.plan.DeleteParts, p.Clone())
		r.plan.Counts.Parts++
		r.plan.Counts.CrossReferences += p.CrossReferences.Count()
	}
	for _, t := range m.Parts.Updated {
		p, ok := cur.Part(t.Key)
		if !ok {
			r.conflict(partsLabel, t.Key, "updated part no longer exists")
			continue
		}
		if p.Fingerprint() != t.PostHash {
			r.conflict(partsLabel, t.Key, "part was modified after the import")
			continue
		}
		before, ok := pre.Part(t.Key)
		if !ok {
			r.conflict(partsLabel, t.Key, "snapshot is missing the part's previous state")
			continue
		}
		r.plan.UpdateParts = append(r.plan.UpdateParts, before.Clone())
		r.plan.Counts.Parts++
		r.plan.Counts.CrossReferences += crossRefDistance(before.CrossReferences, p.CrossReferences)
	}
	for _, t := range m.Parts.Deleted {
		if _, exists := cur.Part(t.Key); exists {
			r.conflict(partsLabel, t.Key, "deleted part was recreated after the import")
			continue
		}
		before, ok := pre.Part(t.Key)
		if !ok {
			r.conflict(partsLabel, t.Key, "snapshot is missing the deleted part")
			continue
		}
		r.plan.InsertParts = append(r.plan.InsertParts, before.Clone())
		r.plan.Counts.Parts++
		r.plan.Counts.CrossReferences += before.CrossReferences.Count()
	}

	// Applications.
	for _, t := range m.Applications.Added {
		a, ok := cur.Application(t.Key)
		if !ok {
			r.conflict(appsLabel, t.Key, "added application no longer exists")
			continue
		}
		if a.Fingerprint() != t.PostHash {
			r.conflict(appsLabel, t.Key, "application was modified after the import")
			continue
		}
		r.plan.DeleteApplications = append(r.plan.DeleteApplications, a.Clone())
		r.plan.Counts.VehicleApplications++
	}
	for _, t := range m.Applications.Updated {
		a, ok := cur.Application(t.Key)
		if !ok {
			r.conflict(appsLabel, t.Key, "updated application no longer exists")
			continue
		}
		if a.Fingerprint() != t.PostHash {
			r.conflict(appsLabel, t.Key, "application was modified after the import")
			continue
		}
		before, ok := pre.Application(t.Key)
		if !ok {
			r.conflict(appsLabel, t.Key, "snapshot is missing the application's previous state")
			continue
		}
		r.plan.UpdateApplications = append(r.plan.UpdateApplications, before.Clone())
		r.plan.Counts.VehicleApplications++
	}
	for _, t := range m.Applications.Deleted {
		if _, exists := cur.Application(t.Key); exists {
			r.conflict(appsLabel, t.Key, "deleted application was recreated after the import")
			continue
		}
		before, ok := pre.Application(t.Key)
		if !ok {
			r.conflict(appsLabel, t.Key, "snapshot is missing the deleted application")
			continue
		}
		parent := catalog.PartKey(before.SKU)
		if _, exists := cur.Part(parent); !(exists && !addedParts[parent]) && !reinsertedParts[parent] {
			r.conflict(appsLabel, t.Key, fmt.Sprintf("parent part %s no longer exists", before.SKU))
			continue
		}
		r.plan.InsertApplications = append(r.plan.InsertApplications, before.Clone())
		r.plan.Counts.VehicleApplications++
	}

	// Aliases.
	for _, t := range m.Aliases.Added {
		a, ok := cur.Alias(t.Key)
		if !ok {
			r.conflict(aliasesLabel, t.Key, "added alias no longer exists")
			continue
		}
		if a.Fingerprint() != t.PostHash {
			r.conflict(aliasesLabel, t.Key, "alias was modified after the import")
			continue
		}
		r.plan.DeleteAliases = append(r.plan.DeleteAliases, *a)
		r.plan.Counts.Aliases++
	}
	for _, t := range m.Aliases.Updated {
		a, ok := cur.Alias(t.Key)
		if !ok {
			r.conflict(aliasesLabel, t.Key, "updated alias no longer exists")
			continue
		}
		if a.Fingerprint() != t.PostHash {
			r.conflict(aliasesLabel, t.Key, "alias was modified after the import")
			continue
		}
		before, ok := pre.Alias(t.Key)
		if !ok {
			r.conflict(aliasesLabel, t.Key, "snapshot is missing the alias's previous state")
			continue
		}
		r.plan.UpdateAliases = append(r.plan.UpdateAliases, *before)
		r.plan.Counts.Aliases++
	}
	for _, t := range m.Aliases.Deleted {
		if _, exists := cur.Alias(t.Key); exists {
			r.conflict(aliasesLabel, t.Key, "deleted alias was recreated after the import")
			continue
		}
		before, ok := pre.Alias(t.Key)
		if !ok {
			r.conflict(aliasesLabel, t.Key, "snapshot is missing the deleted alias")
			continue
		}
		r.plan.InsertAliases = append(r.plan.InsertAliases, *before)
		r.plan.Counts.Aliases++
	}

	if len(r.conflicts) > 0 {
		sort.SliceStable(r.conflicts, func(i, j int) bool { return r.conflicts[i].Sheet < r.conflicts[j].Sheet })
		return nil, &DivergenceError{Conflicts: r.conflicts}
	}
	return r.plan, nil
}

type restorer struct {
	plan      *RestorePlan
	conflicts []Conflict
}

func (r *restorer) conflict(sheet string, k catalog.Key, reason string) {
	r.conflicts = append(r.conflicts, Conflict{Sheet: sheet, Key: k.String(), Reason: reason})
}

// crossRefDistance counts the competitor SKUs that differ between two sets.
func crossRefDistance(a, b catalog.CrossReferences) int {
	n := 0
	for _, brand := range catalog.Brands {
		inA := make(map[string]bool, len(a[brand]))
		for _, s := range a[brand] {
			inA[s] = true
		}
		for _, s := range b[brand] {
			if inA[s] {
				delete(inA, s)
			} else {
				n++
			}
		}
		n += len(inA)
	}
	return n
}
