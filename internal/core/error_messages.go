package core

// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Validation issues carry their own codes (see issues.go);
// the codes here cover errors returned by Service methods.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this key already exists
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key: Referenced record does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout"
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
// # File Errors (FILE001-FILE005)
//
// Returned as *ParseError; the code is the ParseError's own code.
//
//	FILE001 - Unsupported type: Only .xlsx workbooks are accepted
//	FILE002 - File too large: File exceeds the configured size limit
//	FILE003 - Empty file: The uploaded file is empty
//	FILE004 - Corrupt file: The workbook could not be read
//	FILE005 - Encoding error: The workbook contains invalid characters
//
// Structural parse failures (SCH001 missing sheet, SCH003 duplicate header)
// are *ParseError values too and map to their issue code.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Validation failed: The upload has blocking errors
//	IMP002 - Warnings not acknowledged: Review and acknowledge warnings
//	IMP003 - Stale diff: The catalog changed since the preview
//	IMP004 - Diverged: Records changed since the import; rollback refused
//	IMP005 - Already rolled back
//	IMP006 - Import not found
//
// # Request Errors (UPL001-UPL099)
//
//	UPL001 - System busy: Another import or rollback is running
//	         Patterns: "too many concurrent imports"
//	UPL002 - Request cancelled
//	         Patterns: "context canceled"
//	UPL003 - Request timeout
//	         Patterns: "context deadline exceeded"
//	UPL004 - No file: No file was provided
//	         Patterns: "no file provided"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check
// application logs for the original technical error when users report ERR000.
//
// # Matching
//
// Typed and sentinel errors are matched first with errors.As/errors.Is.
// Everything else is matched case-insensitively with strings.Contains over
// errorPatterns; the first matching pattern wins, so more specific patterns
// come first.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// sentinelMessages maps sentinel errors to user messages, checked with errors.Is.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrWarningsNotAcknowledged, UserMessage{
		Message: "The upload has warnings that were not acknowledged",
		Action:  "Review the warnings and confirm to apply",
		Code:    "IMP002",
	}},
	{ErrStaleDiff, UserMessage{
		Message: "The catalog changed since this preview was computed",
		Action:  "Preview the file again before applying",
		Code:    "IMP003",
	}},
	{ErrAlreadyRolledBack, UserMessage{
		Message: "This import was already rolled back",
		Action:  "No action needed",
		Code:    "IMP005",
	}},
	{ErrImportNotFound, UserMessage{
		Message: "Import not found",
		Action:  "Verify the import id in the import history",
		Code:    "IMP006",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Another import or rollback is running",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}},
}

// fileMessages maps parse error codes to user messages.
var fileMessages = map[IssueCode]UserMessage{
	CodeFileType: {
		Message: "Only .xlsx workbooks are accepted",
		Action:  "Save the file as an Excel workbook (.xlsx)",
	},
	CodeFileSize: {
		Message: "File exceeds the maximum size limit",
		Action:  "Remove unused sheets or split the upload",
	},
	CodeFileEmpty: {
		Message: "The uploaded file is empty",
		Action:  "Please upload a workbook with data rows",
	},
	CodeFileCorrupt: {
		Message: "The workbook could not be read",
		Action:  "Open and re-save the file in Excel, then upload again",
	},
	CodeFileEncoding: {
		Message: "The workbook contains invalid characters",
		Action:  "Remove unreadable characters and save as UTF-8",
	},
	CodeMissingSheet: {
		Message: "A required sheet is missing",
		Action:  "Start from an exported catalog workbook",
	},
	CodeDuplicateHeader: {
		Message: "Two columns have the same header",
		Action:  "Rename or remove the duplicate column",
	},
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// Database constraint errors.
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Check the upload for duplicate rows",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check the upload for duplicate rows",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure every application refers to an existing part",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure every application refers to an existing part",
			Code:    "DB003",
		},
	},

	// Database connection errors.
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// Request errors. These come before "timeout" so that a deadline is
	// reported as a request timeout.
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Another import or rollback is running",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again later; nothing was changed",
			Code:    "UPL003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Please select an .xlsx workbook to upload",
			Code:    "UPL004",
		},
	},

	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later; nothing was changed",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := svc.Rollback(ctx, id)
//	msg := MapError(err)
//	// msg.Code == "IMP004" when the catalog diverged
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pe *ParseError
	if errors.As(err, &pe) {
		msg, ok := fileMessages[pe.Code]
		if !ok {
			msg = UserMessage{Message: pe.Message, Action: "Fix the workbook and upload again"}
		}
		msg.Code = string(pe.Code)
		return msg
	}
	var vf *ValidationFailedError
	if errors.As(err, &vf) {
		return UserMessage{
			Message: fmt.Sprintf("The upload has %d blocking errors", len(vf.Result.Errors)),
			Action:  "Fix the listed rows and upload again",
			Code:    "IMP001",
		}
	}
	var de *DivergenceError
	if errors.As(err, &de) {
		return UserMessage{
			Message: fmt.Sprintf("%d records changed after this import", len(de.Conflicts)),
			Action:  "Roll back later imports first, or fix the records by uploading a corrected file",
			Code:    "IMP004",
		}
	}
	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
