package core

import (
	"context"
	"errors"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
)

// ErrImportNotFound is returned by stores when no import has the given id.
var ErrImportNotFound = errors.New("import not found")

// Store is the persistence boundary of the engine. Implementations live in
// internal/store/postgres and internal/store/memory.
type Store interface {
	// Begin starts a transaction. Every write goes through a Tx.
	Begin(ctx context.Context) (Tx, error)

	LoadCatalog(ctx context.Context) (*catalog.State, error)
	GetImport(ctx context.Context, id string) (*catalog.ImportRecord, error)

	// ListImports returns import records newest first. Snapshot state is
	// not loaded; only the manifest-free metadata and summary are filled.
	ListImports(ctx context.Context, limit, offset int) ([]catalog.ImportRecord, error)
	ListAudit(ctx context.Context, filter catalog.AuditFilter) ([]catalog.AuditEntry, error)
}

// Tx is one atomic unit of work. Nothing written through a Tx is visible to
// other callers until Commit; Rollback after Commit is a no-op.
type Tx interface {
	// LockCatalog serializes imports and rollbacks until the Tx ends.
	LockCatalog(ctx context.Context) error
	LoadCatalog(ctx context.Context) (*catalog.State, error)

	// InsertPart writes a part and its cross references. An empty ID is
	// assigned by the store and written back to p.
	InsertPart(ctx context.Context, p *catalog.Part) error
	// UpdatePart writes a part's fields and replaces its cross references.
	UpdatePart(ctx context.Context, p catalog.Part) error
	// DeletePart removes a part. It fails while applications or cross
	// references still reference the part.
	DeletePart(ctx context.Context, id string) error
	// DeleteCrossReferences removes every cross reference of a part.
	DeleteCrossReferences(ctx context.Context, partID string) (int, error)

	InsertApplication(ctx context.Context, a *catalog.VehicleApplication) error
	UpdateApplication(ctx context.Context, a catalog.VehicleApplication) error
	DeleteApplication(ctx context.Context, id string) error

	InsertAlias(ctx context.Context, a *catalog.VehicleAlias) error
	UpdateAlias(ctx context.Context, a catalog.VehicleAlias) error
	DeleteAlias(ctx context.Context, id string) error

	InsertImport(ctx context.Context, rec *catalog.ImportRecord) error
	GetImport(ctx context.Context, id string) (*catalog.ImportRecord, error)
	InsertRollback(ctx context.Context, importID string, counts catalog.RestoredCounts) error
	InsertAudit(ctx context.Context, e *catalog.AuditEntry) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
