package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/logging"
	"github.com/google/uuid"
)

// Defaults for ServiceConfig fields left zero.
const (
	DefaultMaxFileSize   int64 = 10 << 20
	DefaultImportTimeout       = 5 * time.Minute
	DefaultHistoryLimit        = 50
)

var (
	// ErrWarningsNotAcknowledged is returned by apply when the upload has
	// warnings and the caller did not acknowledge them.
	ErrWarningsNotAcknowledged = errors.New("warnings must be acknowledged before apply")

	// ErrStaleDiff is returned by apply when the catalog changed after the
	// diff was computed.
	ErrStaleDiff = errors.New("catalog changed since the diff was computed")

	// ErrAlreadyRolledBack is returned when rolling back an import twice.
	ErrAlreadyRolledBack = errors.New("import already rolled back")
)

// ValidationFailedError is returned by apply when the upload has blocking
// errors. Result holds every issue found.
type ValidationFailedError struct {
	Result *ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed with %d errors", len(e.Result.Errors))
}

// ServiceConfig tunes the import pipeline.
type ServiceConfig struct {
	MaxFileSize          int64
	MaxConcurrentImports int
	MaxWaitTime          time.Duration
	ImportTimeout        time.Duration
	PartDeletePolicy     PartDeletePolicy
	MinVehicleYear       int
	YearsAhead           int
	HistoryLimit         int
}

// Service runs the import pipeline against a Store.
type Service struct {
	store        Store
	validator    *Validator
	limiter      *ImportLimiter
	policy       PartDeletePolicy
	maxFileSize  int64
	timeout      time.Duration
	historyLimit int
	now          func() time.Time
}

// NewService creates a Service. Zero config fields take their defaults.
func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.PartDeletePolicy == "" {
		cfg.PartDeletePolicy = PartDeleteAbsence
	}
	if cfg.YearsAhead <= 0 {
		cfg.YearsAhead = DefaultYearsAhead
	}

	return &Service{
		store: store,
		validator: NewValidator(ValidatorOptions{
			MinYear: cfg.MinVehicleYear,
			MaxYear: time.Now().Year() + cfg.YearsAhead,
			Policy:  cfg.PartDeletePolicy,
		}),
		limiter:      NewImportLimiter(cfg.MaxConcurrentImports, cfg.MaxWaitTime),
		policy:       cfg.PartDeletePolicy,
		maxFileSize:  cfg.MaxFileSize,
		timeout:      cfg.ImportTimeout,
		historyLimit: cfg.HistoryLimit,
		now:          time.Now,
	}
}

// Policy returns the part delete policy diffs are computed with.
func (s *Service) Policy() PartDeletePolicy { return s.policy }

// MaxFileSize returns the upload size limit in bytes.
func (s *Service) MaxFileSize() int64 { return s.maxFileSize }

// Upload is a workbook submitted for import.
type Upload struct {
	FileName string
	Data     []byte
}

// Parse checks the file and parses the workbook. Failures are *ParseError.
func (s *Service) Parse(up Upload) (*ParseResult, error) {
	if err := CheckFile(up.FileName, int64(len(up.Data)), s.maxFileSize); err != nil {
		return nil, err
	}
	return ParseWorkbook(up.Data)
}

// PreparedImport is an upload that went through parse, validation and diff.
// It can be applied later with ApplyPrepared as long as the catalog does not
// change in between.
type PreparedImport struct {
	FileName   string
	FileSize   int64
	RowCount   int
	Validation *ValidationResult
	Diff       *DiffResult
}

// Prepare runs parse, validation and diff against the current catalog.
func (s *Service) Prepare(ctx context.Context, up Upload) (*PreparedImport, error) {
	parsed, err := s.Parse(up)
	if err != nil {
		return nil, err
	}

	state, err := s.store.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return &PreparedImport{
		FileName:   up.FileName,
		FileSize:   int64(len(up.Data)),
		RowCount:   parsed.RowCount(),
		Validation: s.validator.Validate(parsed, state),
		Diff:       ComputeDiff(parsed, state, s.policy),
	}, nil
}

// Validate returns the validation result of an upload. File-level failures
// are reported as a result with one blocking issue, not as an error.
func (s *Service) Validate(ctx context.Context, up Upload) (*ValidationResult, error) {
	p, err := s.Prepare(ctx, up)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return ValidationFromParseError(pe), nil
		}
		return nil, err
	}
	return p.Validation, nil
}

// PreviewResult is what a reviewer sees before confirming an import.
// Diff is nil when the file could not be parsed.
type PreviewResult struct {
	Validation *ValidationResult `json:"validation"`
	Diff       *DiffResult       `json:"diff,omitempty"`
}

// Preview validates and diffs an upload without writing anything.
func (s *Service) Preview(ctx context.Context, up Upload) (*PreviewResult, error) {
	p, err := s.Prepare(ctx, up)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return &PreviewResult{Validation: ValidationFromParseError(pe)}, nil
		}
		return nil, err
	}
	return &PreviewResult{Validation: p.Validation, Diff: p.Diff}, nil
}

// ApplyRequest is an upload plus the reviewer's acknowledgment of warnings.
type ApplyRequest struct {
	Upload
	AcknowledgeWarnings bool
}

// ApplySummary aggregates the records an apply changed.
type ApplySummary struct {
	TotalAdds    int `json:"totalAdds"`
	TotalUpdates int `json:"totalUpdates"`
	TotalDeletes int `json:"totalDeletes"`
	TotalChanges int `json:"totalChanges"`
}

// ApplyResult is returned by a successful apply. ExecutionTime is in
// milliseconds.
type ApplyResult struct {
	Success       bool              `json:"success"`
	ImportID      string            `json:"importId"`
	Summary       ApplySummary      `json:"summary"`
	Execution     *ExecutionSummary `json:"execution"`
	ExecutionTime int64             `json:"executionTime"`
}

// Apply prepares an upload and applies it in one call.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	p, err := s.Prepare(ctx, req.Upload)
	if err != nil {
		return nil, err
	}
	return s.ApplyPrepared(ctx, p, req.AcknowledgeWarnings)
}

// ApplyPrepared writes a prepared import in one transaction: it takes the
// catalog lock, checks the diff is still current, captures the snapshot,
// executes the diff and records the import and its audit entry. Either all
// of it commits or none of it does.
func (s *Service) ApplyPrepared(ctx context.Context, p *PreparedImport, acknowledgeWarnings bool) (*ApplyResult, error) {
	if !p.Validation.Valid {
		return nil, &ValidationFailedError{Result: p.Validation}
	}
	if p.Validation.HasWarnings() && !acknowledgeWarnings {
		return nil, ErrWarningsNotAcknowledged
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	importID := uuid.NewString()
	logger := logging.WithFields(ctx, "import_id", importID, "file", p.FileName)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.LockCatalog(ctx); err != nil {
		return nil, fmt.Errorf("lock catalog: %w", err)
	}
	state, err := tx.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if state.Fingerprint() != p.Diff.BaseFingerprint {
		return nil, ErrStaleDiff
	}

	snap := CaptureSnapshot(state, p.Diff, start)

	sum, err := Execute(ctx, tx, state, p.Diff)
	if err != nil {
		logger.Error("import failed", "error", err)
		return nil, fmt.Errorf("execute import: %w", err)
	}

	rec := &catalog.ImportRecord{
		ID:           importID,
		FileName:     p.FileName,
		FileSize:     p.FileSize,
		RowsImported: p.RowCount,
		Summary: catalog.ImportSummary{
			Adds:    sum.Adds(),
			Updates: sum.Updates(),
			Deletes: sum.Deletes(),
		},
		Snapshot:  snap,
		CreatedAt: start.UTC(),
	}
	if err := tx.InsertImport(ctx, rec); err != nil {
		return nil, fmt.Errorf("record import: %w", err)
	}

	affected := sum.Adds() + sum.Updates() + sum.Deletes() + sum.CascadedApplications
	if err := s.logAudit(ctx, tx, AuditLogParams{
		Action:       ActionImportApply,
		ImportID:     importID,
		RowsAffected: affected,
		Reason:       p.FileName,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	elapsed := s.now().Sub(start)
	logger.Info("import applied",
		"adds", sum.Adds(),
		"updates", sum.Updates(),
		"deletes", sum.Deletes(),
		"cascaded_applications", sum.CascadedApplications,
		"cascaded_cross_references", sum.CascadedCrossRefs,
		"duration_ms", elapsed.Milliseconds(),
	)

	return &ApplyResult{
		Success:  true,
		ImportID: importID,
		Summary: ApplySummary{
			TotalAdds:    sum.Adds(),
			TotalUpdates: sum.Updates(),
			TotalDeletes: sum.Deletes(),
			TotalChanges: sum.Adds() + sum.Updates() + sum.Deletes(),
		},
		Execution:     sum,
		ExecutionTime: elapsed.Milliseconds(),
	}, nil
}

// Catalog returns the persisted catalog.
func (s *Service) Catalog(ctx context.Context) (*catalog.State, error) {
	return s.store.LoadCatalog(ctx)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until no import or rollback is running, or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
