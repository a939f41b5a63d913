package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImportApply    AuditAction = "import_apply"
	ActionImportRollback AuditAction = "import_rollback"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action       AuditAction
	ImportID     string
	RowsAffected int
	Reason       string
}

// DefaultAuditLimit is the page size of audit listings without a limit.
const DefaultAuditLimit = 100

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction, rowsAffected int) AuditSeverity {
	switch action {
	case ActionImportRollback:
		return SeverityHigh
	case ActionImportApply:
		if rowsAffected == 0 {
			return SeverityLow
		}
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// logAudit writes an audit entry through tx, so it commits or rolls back
// with the change it describes. Client IP and user agent come from ctx.
func (s *Service) logAudit(ctx context.Context, tx Tx, params AuditLogParams) error {
	entry := &catalog.AuditEntry{
		ID:           uuid.NewString(),
		Action:       string(params.Action),
		Severity:     string(determineSeverity(params.Action, params.RowsAffected)),
		ImportID:     params.ImportID,
		RowsAffected: params.RowsAffected,
		IPAddress:    GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		Reason:       params.Reason,
		CreatedAt:    s.now().UTC(),
	}
	if err := tx.InsertAudit(ctx, entry); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// AuditLog lists audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, filter catalog.AuditFilter) ([]catalog.AuditEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.ListAudit(ctx, filter)
}
