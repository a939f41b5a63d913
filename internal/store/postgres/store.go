// Package postgres implements the engine's store contract on PostgreSQL with
// pgx. Every write runs inside one pgx transaction; imports and rollbacks
// serialize on a transaction-scoped advisory lock so that several server
// processes can share a database.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// catalogLockKey is the pg_advisory_xact_lock key guarding catalog writes.
const catalogLockKey int64 = 0x63617461_6c6f67

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New creates a Store on pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the catalog tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// LoadCatalog reads the committed catalog.
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.State, error) {
	return loadCatalog(ctx, s.pool)
}

// GetImport returns one import record with its snapshot.
func (s *Store) GetImport(ctx context.Context, id string) (*catalog.ImportRecord, error) {
	return getImport(ctx, s.pool, id)
}

// ListImports returns import records newest first, without snapshot state.
func (s *Store) ListImports(ctx context.Context, limit, offset int) ([]catalog.ImportRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT h.id, h.file_name, h.file_size, h.rows_imported, h.import_summary,
		       h.snapshot_data->>'baseFingerprint', h.created_at, r.rolled_back_at
		FROM import_history h
		LEFT JOIN import_rollbacks r ON r.import_id = h.id
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.ImportRecord, error) {
		var (
			rec        catalog.ImportRecord
			id         pgtype.UUID
			base       pgtype.Text
			rolledBack pgtype.Timestamptz
		)
		if err := row.Scan(&id, &rec.FileName, &rec.FileSize, &rec.RowsImported, &rec.Summary,
			&base, &rec.CreatedAt, &rolledBack); err != nil {
			return rec, err
		}
		rec.ID = uuidToString(id)
		rec.Snapshot.BaseFingerprint = base.String
		if rolledBack.Valid {
			t := rolledBack.Time
			rec.RolledBackAt = &t
		}
		return rec, nil
	})
}

// ListAudit returns audit entries newest first.
func (s *Store) ListAudit(ctx context.Context, filter catalog.AuditFilter) ([]catalog.AuditEntry, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.ImportID != "" {
		args = append(args, toPgUUID(filter.ImportID))
		conditions = append(conditions, fmt.Sprintf("import_id = $%d", len(args)))
	}
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT id, action, severity, import_id, rows_affected, ip_address, user_agent, reason, created_at
		FROM audit_log%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, whereClause, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.AuditEntry, error) {
		var (
			e                     catalog.AuditEntry
			id, importID          pgtype.UUID
			ip, userAgent, reason pgtype.Text
		)
		if err := row.Scan(&id, &e.Action, &e.Severity, &importID, &e.RowsAffected,
			&ip, &userAgent, &reason, &e.CreatedAt); err != nil {
			return e, err
		}
		e.ID = uuidToString(id)
		e.ImportID = uuidToString(importID)
		e.IPAddress = ip.String
		e.UserAgent = userAgent.String
		e.Reason = reason.String
		return e, nil
	})
}

func loadCatalog(ctx context.Context, q querier) (*catalog.State, error) {
	refs, err := loadCrossReferences(ctx, q)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, acr_sku, status, part_type, position_type, abs_type,
		       bolt_pattern, drive_type, specifications
		FROM parts
		ORDER BY acr_sku`)
	if err != nil {
		return nil, fmt.Errorf("load parts: %w", err)
	}
	parts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Part, error) {
		var (
			p                                          catalog.Part
			id                                         pgtype.UUID
			partType, position, abs, bolt, drive, spec pgtype.Text
		)
		if err := row.Scan(&id, &p.SKU, &p.Status, &partType, &position, &abs, &bolt, &drive, &spec); err != nil {
			return p, err
		}
		p.ID = uuidToString(id)
		p.PartType = partType.String
		p.PositionType = position.String
		p.ABSType = abs.String
		p.BoltPattern = bolt.String
		p.DriveType = drive.String
		p.Specifications = spec.String
		p.CrossReferences = refs[p.ID]
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load parts: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT a.id, a.part_id, p.acr_sku, a.make, a.model, a.start_year, a.end_year
		FROM vehicle_applications a
		JOIN parts p ON p.id = a.part_id`)
	if err != nil {
		return nil, fmt.Errorf("load vehicle applications: %w", err)
	}
	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.VehicleApplication, error) {
		var (
			a          catalog.VehicleApplication
			id, partID pgtype.UUID
			start, end pgtype.Int4
		)
		if err := row.Scan(&id, &partID, &a.SKU, &a.Make, &a.Model, &start, &end); err != nil {
			return a, err
		}
		a.ID = uuidToString(id)
		a.PartID = uuidToString(partID)
		a.StartYear = fromPgYear(start)
		a.EndYear = fromPgYear(end)
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load vehicle applications: %w", err)
	}

	rows, err = q.Query(ctx, `SELECT id, alias, canonical_name, alias_type FROM vehicle_aliases`)
	if err != nil {
		return nil, fmt.Errorf("load vehicle aliases: %w", err)
	}
	aliases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.VehicleAlias, error) {
		var (
			a  catalog.VehicleAlias
			id pgtype.UUID
		)
		if err := row.Scan(&id, &a.Alias, &a.CanonicalName, &a.AliasType); err != nil {
			return a, err
		}
		a.ID = uuidToString(id)
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load vehicle aliases: %w", err)
	}

	st := &catalog.State{Parts: parts, Applications: apps, Aliases: aliases}
	st.Sort()
	return st, nil
}

func loadCrossReferences(ctx context.Context, q querier) (map[string]catalog.CrossReferences, error) {
	rows, err := q.Query(ctx, `
		SELECT part_id, brand, competitor_sku
		FROM cross_references
		ORDER BY part_id, brand, competitor_sku`)
	if err != nil {
		return nil, fmt.Errorf("load cross references: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]catalog.CrossReferences)
	for rows.Next() {
		var (
			partID     pgtype.UUID
			brand, sku string
		)
		if err := rows.Scan(&partID, &brand, &sku); err != nil {
			return nil, fmt.Errorf("scan cross reference: %w", err)
		}
		id := uuidToString(partID)
		if refs[id] == nil {
			refs[id] = make(catalog.CrossReferences)
		}
		refs[id][brand] = append(refs[id][brand], sku)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cross references: %w", err)
	}
	for _, c := range refs {
		for brand, skus := range c {
			c.Set(brand, skus)
		}
	}
	return refs, nil
}

func getImport(ctx context.Context, q querier, id string) (*catalog.ImportRecord, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return nil, core.ErrImportNotFound
	}

	var (
		rec        catalog.ImportRecord
		recID      pgtype.UUID
		rolledBack pgtype.Timestamptz
	)
	err := q.QueryRow(ctx, `
		SELECT h.id, h.file_name, h.file_size, h.rows_imported, h.import_summary,
		       h.snapshot_data, h.created_at, r.rolled_back_at
		FROM import_history h
		LEFT JOIN import_rollbacks r ON r.import_id = h.id
		WHERE h.id = $1`, pgID).Scan(&recID, &rec.FileName, &rec.FileSize, &rec.RowsImported,
		&rec.Summary, &rec.Snapshot, &rec.CreatedAt, &rolledBack)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrImportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import %s: %w", id, err)
	}
	rec.ID = uuidToString(recID)
	if rolledBack.Valid {
		t := rolledBack.Time
		rec.RolledBackAt = &t
	}
	return &rec, nil
}
