package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/logging"
)

// StatusRolledBack is reported for an import whose changes were reversed.
const StatusRolledBack = "rolled_back"

// RollbackResult is returned by a successful rollback.
type RollbackResult struct {
	Success        bool                   `json:"success"`
	ImportID       string                 `json:"importId"`
	RestoredCounts catalog.RestoredCounts `json:"restoredCounts"`
	Status         string                 `json:"status"`
}

// Rollback reverses one import. It fails with ErrImportNotFound,
// ErrAlreadyRolledBack or *DivergenceError without changing anything.
func (s *Service) Rollback(ctx context.Context, importID string) (*RollbackResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := logging.WithFields(ctx, "import_id", importID)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.LockCatalog(ctx); err != nil {
		return nil, fmt.Errorf("lock catalog: %w", err)
	}

	rec, err := tx.GetImport(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("get import: %w", err)
	}
	if rec.RolledBackAt != nil {
		return nil, ErrAlreadyRolledBack
	}

	current, err := tx.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	plan, err := PlanRestore(rec.Snapshot, current)
	if err != nil {
		var de *DivergenceError
		if errors.As(err, &de) {
			logger.Warn("rollback refused", "conflicts", len(de.Conflicts))
		}
		return nil, err
	}

	if err := ExecuteRestore(ctx, tx, plan); err != nil {
		logger.Error("rollback failed", "error", err)
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	if err := tx.InsertRollback(ctx, importID, plan.Counts); err != nil {
		return nil, fmt.Errorf("record rollback: %w", err)
	}

	c := plan.Counts
	if err := s.logAudit(ctx, tx, AuditLogParams{
		Action:       ActionImportRollback,
		ImportID:     importID,
		RowsAffected: c.Parts + c.VehicleApplications + c.Aliases,
		Reason:       rec.FileName,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rollback: %w", err)
	}

	logger.Info("import rolled back",
		"parts", c.Parts,
		"vehicle_applications", c.VehicleApplications,
		"cross_references", c.CrossReferences,
		"aliases", c.Aliases,
	)

	return &RollbackResult{
		Success:        true,
		ImportID:       importID,
		RestoredCounts: c,
		Status:         StatusRolledBack,
	}, nil
}

// RollbackPreview describes what rolling back an import would do.
type RollbackPreview struct {
	ImportID    string                 `json:"importId"`
	FileName    string                 `json:"fileName"`
	CreatedAt   time.Time              `json:"createdAt"`
	CanRollback bool                   `json:"canRollback"`
	Reason      string                 `json:"reason,omitempty"`
	Conflicts   []Conflict             `json:"conflicts,omitempty"`
	Counts      catalog.RestoredCounts `json:"counts"`
}

// PreviewRollback checks whether an import can be rolled back right now.
// It reads without locking, so Rollback may still refuse if another import
// lands in between.
func (s *Service) PreviewRollback(ctx context.Context, importID string) (*RollbackPreview, error) {
	rec, err := s.store.GetImport(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("get import: %w", err)
	}

	preview := &RollbackPreview{
		ImportID:  rec.ID,
		FileName:  rec.FileName,
		CreatedAt: rec.CreatedAt,
	}
	if rec.RolledBackAt != nil {
		preview.Reason = ErrAlreadyRolledBack.Error()
		return preview, nil
	}

	current, err := s.store.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	plan, err := PlanRestore(rec.Snapshot, current)
	if err != nil {
		var de *DivergenceError
		if !errors.As(err, &de) {
			return nil, err
		}
		preview.Reason = "catalog changed after this import"
		preview.Conflicts = de.Conflicts
		return preview, nil
	}

	preview.CanRollback = true
	preview.Counts = plan.Counts
	return preview, nil
}

// ListImports returns import history, newest first. A non-positive limit
// uses the configured page size.
func (s *Service) ListImports(ctx context.Context, limit, offset int) ([]catalog.ImportRecord, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListImports(ctx, limit, offset)
}

// GetImport returns one import record with its snapshot.
func (s *Service) GetImport(ctx context.Context, importID string) (*catalog.ImportRecord, error) {
	return s.store.GetImport(ctx, importID)
}
