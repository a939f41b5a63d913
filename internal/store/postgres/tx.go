package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Tx is a core.Tx on one pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// LockCatalog takes the transaction-scoped catalog advisory lock. It is
// released by Commit or Rollback.
func (t *Tx) LockCatalog(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, catalogLockKey)
	return err
}

// LoadCatalog reads the catalog as this transaction sees it.
func (t *Tx) LoadCatalog(ctx context.Context) (*catalog.State, error) {
	return loadCatalog(ctx, t.tx)
}

// InsertPart inserts p and copies its cross references.
func (t *Tx) InsertPart(ctx context.Context, p *catalog.Part) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO parts (id, acr_sku, status, part_type, position_type, abs_type,
		                   bolt_pattern, drive_type, specifications)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		toPgUUID(p.ID), p.SKU, string(partStatus(p.Status)), toPgText(p.PartType), toPgText(p.PositionType),
		toPgText(p.ABSType), toPgText(p.BoltPattern), toPgText(p.DriveType), toPgText(p.Specifications))
	if err != nil {
		return err
	}
	return t.copyCrossReferences(ctx, p.ID, p.CrossReferences)
}

// UpdatePart writes p's fields and replaces its cross references.
func (t *Tx) UpdatePart(ctx context.Context, p catalog.Part) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE parts
		SET status = $3, part_type = $4, position_type = $5, abs_type = $6,
		    bolt_pattern = $7, drive_type = $8, specifications = $9, updated_at = now()
		WHERE id = $1 AND acr_sku = $2`,
		toPgUUID(p.ID), p.SKU, string(partStatus(p.Status)), toPgText(p.PartType), toPgText(p.PositionType),
		toPgText(p.ABSType), toPgText(p.BoltPattern), toPgText(p.DriveType), toPgText(p.Specifications))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update part %s: no rows affected", p.ID)
	}
	if _, err := t.DeleteCrossReferences(ctx, p.ID); err != nil {
		return err
	}
	return t.copyCrossReferences(ctx, p.ID, p.CrossReferences)
}

// DeletePart removes a part. Foreign keys reject it while children remain.
func (t *Tx) DeletePart(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM parts WHERE id = $1`, toPgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete part %s: no rows affected", id)
	}
	return nil
}

// DeleteCrossReferences removes every cross reference of a part.
func (t *Tx) DeleteCrossReferences(ctx context.Context, partID string) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM cross_references WHERE part_id = $1`, toPgUUID(partID))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *Tx) copyCrossReferences(ctx context.Context, partID string, refs catalog.CrossReferences) error {
	if refs.Count() == 0 {
		return nil
	}
	pid := toPgUUID(partID)
	rows := make([][]any, 0, refs.Count())
	for _, brand := range catalog.Brands {
		for _, sku := range refs[brand] {
			rows = append(rows, []any{toPgUUID(uuid.NewString()), pid, brand, sku})
		}
	}
	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"cross_references"},
		[]string{"id", "part_id", "brand", "competitor_sku"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy cross references: %w", err)
	}
	return nil
}

// InsertApplication inserts a vehicle application.
func (t *Tx) InsertApplication(ctx context.Context, a *catalog.VehicleApplication) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO vehicle_applications (id, part_id, make, model, start_year, end_year)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		toPgUUID(a.ID), toPgUUID(a.PartID), a.Make, a.Model, toPgYear(a.StartYear), toPgYear(a.EndYear))
	return err
}

// UpdateApplication writes an application's year range.
func (t *Tx) UpdateApplication(ctx context.Context, a catalog.VehicleApplication) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE vehicle_applications
		SET start_year = $2, end_year = $3, updated_at = now()
		WHERE id = $1`,
		toPgUUID(a.ID), toPgYear(a.StartYear), toPgYear(a.EndYear))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update application %s: no rows affected", a.ID)
	}
	return nil
}

// DeleteApplication removes an application.
func (t *Tx) DeleteApplication(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM vehicle_applications WHERE id = $1`, toPgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete application %s: no rows affected", id)
	}
	return nil
}

// InsertAlias inserts a vehicle alias.
func (t *Tx) InsertAlias(ctx context.Context, a *catalog.VehicleAlias) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO vehicle_aliases (id, alias, canonical_name, alias_type)
		VALUES ($1, $2, $3, $4)`,
		toPgUUID(a.ID), a.Alias, a.CanonicalName, string(a.AliasType))
	return err
}

// UpdateAlias writes an alias's type.
func (t *Tx) UpdateAlias(ctx context.Context, a catalog.VehicleAlias) error {
	tag, err := t.tx.Exec(ctx, `UPDATE vehicle_aliases SET alias_type = $2 WHERE id = $1`,
		toPgUUID(a.ID), string(a.AliasType))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update alias %s: no rows affected", a.ID)
	}
	return nil
}

// DeleteAlias removes an alias.
func (t *Tx) DeleteAlias(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM vehicle_aliases WHERE id = $1`, toPgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete alias %s: no rows affected", id)
	}
	return nil
}

// InsertImport writes an import record. Summary and snapshot are stored as JSONB.
func (t *Tx) InsertImport(ctx context.Context, rec *catalog.ImportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO import_history (id, file_name, file_size, rows_imported, import_summary, snapshot_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		toPgUUID(rec.ID), rec.FileName, rec.FileSize, rec.RowsImported, rec.Summary, rec.Snapshot, rec.CreatedAt)
	return err
}

// GetImport returns an import record as this transaction sees it.
func (t *Tx) GetImport(ctx context.Context, id string) (*catalog.ImportRecord, error) {
	return getImport(ctx, t.tx, id)
}

// InsertRollback appends to the rollback log. The primary key rejects a
// second rollback of the same import.
func (t *Tx) InsertRollback(ctx context.Context, importID string, counts catalog.RestoredCounts) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO import_rollbacks (import_id, restored_counts)
		VALUES ($1, $2)`,
		toPgUUID(importID), counts)
	return err
}

// InsertAudit writes an audit entry.
func (t *Tx) InsertAudit(ctx context.Context, e *catalog.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO audit_log (id, action, severity, import_id, rows_affected, ip_address, user_agent, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		toPgUUID(e.ID), e.Action, e.Severity, toPgUUID(e.ImportID), e.RowsAffected,
		toPgText(e.IPAddress), toPgText(e.UserAgent), toPgText(e.Reason), e.CreatedAt)
	return err
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// partStatus maps the persisted status; a delete marker never reaches storage.
func partStatus(s catalog.Status) catalog.Status {
	if s == catalog.StatusInactive {
		return s
	}
	return catalog.StatusActive
}
