package core

// executor.go writes a diff, or a restore plan, through one transaction.
//
// Writes run in foreign-key-safe order:
//  1. Cascaded application and cross-reference deletes of deleted parts
//  2. Explicit application and alias deletes
//  3. Part deletes
//  4. Part inserts, with their cross references
//  5. Part updates
//  6. Application inserts and updates
//  7. Alias inserts and updates
//
// The executor never commits. The caller owns the transaction, so a failure
// at any step leaves nothing behind once the caller rolls back.

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// ExecutionSummary counts the records one apply wrote.
type ExecutionSummary struct {
	PartsAdded           int `json:"partsAdded"`
	PartsUpdated         int `json:"partsUpdated"`
	PartsDeleted         int `json:"partsDeleted"`
	ApplicationsAdded    int `json:"applicationsAdded"`
	ApplicationsUpdated  int `json:"applicationsUpdated"`
	ApplicationsDeleted  int `json:"applicationsDeleted"`
	AliasesAdded         int `json:"aliasesAdded"`
	AliasesUpdated       int `json:"aliasesUpdated"`
	AliasesDeleted       int `json:"aliasesDeleted"`
	CascadedApplications int `json:"cascadedApplications"`
	CascadedCrossRefs    int `json:"cascadedCrossReferences"`
}

// Adds returns the number of inserted records.
func (s ExecutionSummary) Adds() int { return s.PartsAdded + s.ApplicationsAdded + s.AliasesAdded }

// Updates returns the number of updated records.
func (s ExecutionSummary) Updates() int {
	return s.PartsUpdated + s.ApplicationsUpdated + s.AliasesUpdated
}

// Deletes returns the number of explicitly deleted records, cascades excluded.
func (s ExecutionSummary) Deletes() int {
	return s.PartsDeleted + s.ApplicationsDeleted + s.AliasesDeleted
}

// Execute applies d through tx. state must be the catalog d was computed
// from, read inside the same transaction; it supplies the part ids that new
// applications of existing parts attach to.
func Execute(ctx context.Context, tx Tx, state *catalog.State, d *DiffResult) (*ExecutionSummary, error) {
	sum := &ExecutionSummary{}
	ix := catalog.NewIndex(state)

	partIDs := make(map[catalog.Key]string, len(state.Parts)+len(d.Parts.Adds))
	for _, p := range state.Parts {
		partIDs[p.Key()] = p.ID
	}

	// 1. Cascades.
	for _, a := range d.Cascade.Applications {
		if err := tx.DeleteApplication(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("delete application %s: %w", a.Key(), err)
		}
		sum.CascadedApplications++
	}
	for _, c := range d.Parts.Deletes {
		n, err := tx.DeleteCrossReferences(ctx, c.Before.ID)
		if err != nil {
			return nil, fmt.Errorf("delete cross references of %s: %w", c.Key, err)
		}
		sum.CascadedCrossRefs += n
	}

	// 2. Explicit child deletes.
	for _, c := range d.Applications.Deletes {
		if err := tx.DeleteApplication(ctx, c.Before.ID); err != nil {
			return nil, fmt.Errorf("delete application %s: %w", c.Key, err)
		}
		sum.ApplicationsDeleted++
	}
	for _, c := range d.Aliases.Deletes {
		if err := tx.DeleteAlias(ctx, c.Before.ID); err != nil {
			return nil, fmt.Errorf("delete alias %s: %w", c.Key, err)
		}
		sum.AliasesDeleted++
	}

	// 3. Part deletes.
	for _, c := range d.Parts.Deletes {
		if err := tx.DeletePart(ctx, c.Before.ID); err != nil {
			return nil, fmt.Errorf("delete part %s: %w", c.Key, err)
		}
		delete(partIDs, c.Key)
		sum.PartsDeleted++
	}

	// 4. Part inserts.
	for _, c := range d.Parts.Adds {
		p := c.After.Clone()
		p.ID = ""
		if err := tx.InsertPart(ctx, &p); err != nil {
			return nil, fmt.Errorf("insert part %s: %w", c.Key, err)
		}
		partIDs[c.Key] = p.ID
		sum.PartsAdded++
	}

	// 5. Part updates.
	for _, c := range d.Parts.Updates {
		p := c.After.Clone()
		p.ID = c.Before.ID
		if err := tx.UpdatePart(ctx, p); err != nil {
			return nil, fmt.Errorf("update part %s: %w", c.Key, err)
		}
		sum.PartsUpdated++
	}

	// 6. Applications.
	for _, c := range d.Applications.Adds {
		a := c.After.Clone()
		a.ID = ""
		partID, ok := partIDs[catalog.PartKey(a.SKU)]
		if !ok {
			return nil, fmt.Errorf("insert application %s: part %s not found", c.Key, a.SKU)
		}
		a.PartID = partID
		if err := tx.InsertApplication(ctx, &a); err != nil {
			return nil, fmt.Errorf("insert application %s: %w", c.Key, err)
		}
		sum.ApplicationsAdded++
	}
	for _, c := range d.Applications.Updates {
		a := c.After.Clone()
		if persisted, ok := ix.Application(c.Key); ok {
			a.ID, a.PartID = persisted.ID, persisted.PartID
		}
		if err := tx.UpdateApplication(ctx, a); err != nil {
			return nil, fmt.Errorf("update application %s: %w", c.Key, err)
		}
		sum.ApplicationsUpdated++
	}

	// 7. Aliases.
	for _, c := range d.Aliases.Adds {
		a := *c.After
		a.ID = ""
		if err := tx.InsertAlias(ctx, &a); err != nil {
			return nil, fmt.Errorf("insert alias %s: %w", c.Key, err)
		}
		sum.AliasesAdded++
	}
	for _, c := range d.Aliases.Updates {
		a := *c.After
		a.ID = c.Before.ID
		if err := tx.UpdateAlias(ctx, a); err != nil {
			return nil, fmt.Errorf("update alias %s: %w", c.Key, err)
		}
		sum.AliasesUpdated++
	}

	return sum, nil
}

// ExecuteRestore applies a restore plan through tx in the same order as
// Execute: child deletes, part deletes, part writes, child writes.
func ExecuteRestore(ctx context.Context, tx Tx, plan *RestorePlan) error {
	for _, a := range plan.DeleteApplications {
		if err := tx.DeleteApplication(ctx, a.ID); err != nil {
			return fmt.Errorf("delete application %s: %w", a.Key(), err)
		}
	}
	for _, a := range plan.DeleteAliases {
		if err := tx.DeleteAlias(ctx, a.ID); err != nil {
			return fmt.Errorf("delete alias %s: %w", a.Key(), err)
		}
	}
	for _, p := range plan.DeleteParts {
		if _, err := tx.DeleteCrossReferences(ctx, p.ID); err != nil {
			return fmt.Errorf("delete cross references of %s: %w", p.Key(), err)
		}
		if err := tx.DeletePart(ctx, p.ID); err != nil {
			return fmt.Errorf("delete part %s: %w", p.Key(), err)
		}
	}
	for _, p := range plan.InsertParts {
		p := p.Clone()
		if err := tx.InsertPart(ctx, &p); err != nil {
			return fmt.Errorf("reinsert part %s: %w", p.Key(), err)
		}
	}
	for _, p := range plan.UpdateParts {
		if err := tx.UpdatePart(ctx, p); err != nil {
			return fmt.Errorf("restore part %s: %w", p.Key(), err)
		}
	}
	for _, a := range plan.InsertApplications {
		a := a.Clone()
		if err := tx.InsertApplication(ctx, &a); err != nil {
			return fmt.Errorf("reinsert application %s: %w", a.Key(), err)
		}
	}
	for _, a := range plan.UpdateApplications {
		if err := tx.UpdateApplication(ctx, a); err != nil {
			return fmt.Errorf("restore application %s: %w", a.Key(), err)
		}
	}
	for _, a := range plan.InsertAliases {
		alias := a
		if err := tx.InsertAlias(ctx, &alias); err != nil {
			return fmt.Errorf("reinsert alias %s: %w", a.Key(), err)
		}
	}
	for _, a := range plan.UpdateAliases {
		if err := tx.UpdateAlias(ctx, a); err != nil {
			return fmt.Errorf("restore alias %s: %w", a.Key(), err)
		}
	}
	return nil
}
