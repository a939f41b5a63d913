package core

import "fmt"

// IssueCode identifies a validation issue. The set is closed: callers branch
// and localize on these values, so codes are never renamed or reused.
type IssueCode string

// File-format errors.
const (
	CodeFileType     IssueCode = "FILE001"
	CodeFileSize     IssueCode = "FILE002"
	CodeFileEmpty    IssueCode = "FILE003"
	CodeFileCorrupt  IssueCode = "FILE004"
	CodeFileEncoding IssueCode = "FILE005"
)

// Schema/structure errors.
const (
	CodeMissingSheet    IssueCode = "SCH001"
	CodeMissingHeader   IssueCode = "SCH002"
	CodeDuplicateHeader IssueCode = "SCH003"
)

// Field-level errors.
const (
	CodeRequired      IssueCode = "FLD001"
	CodeInvalidUUID   IssueCode = "FLD002"
	CodeInvalidNumber IssueCode = "FLD003"
	CodeMaxLength     IssueCode = "FLD004"
	CodeYearRange     IssueCode = "FLD005"
	CodeYearBounds    IssueCode = "FLD006"
	CodeInvalidStatus IssueCode = "FLD007"
	CodeAliasType     IssueCode = "FLD008"
	CodeDuplicateKey  IssueCode = "FLD009"
	CodeKeyImmutable  IssueCode = "FLD010"
)

// Referential-integrity errors.
const (
	CodeOrphan        IssueCode = "REF001"
	CodeUnknownID     IssueCode = "REF002"
	CodeDeletedParent IssueCode = "REF003"
)

// Warnings.
const (
	CodeLegacyDelimiter  IssueCode = "WRN001"
	CodeCascadeApp       IssueCode = "WRN002"
	CodeCascadeCrossRef  IssueCode = "WRN003"
	CodeRemovedByAbsence IssueCode = "WRN004"
	CodeDeleteNotFound   IssueCode = "WRN005"
)

// Severity says whether an issue blocks apply.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Severity returns the fixed severity of a code.
func (c IssueCode) Severity() Severity {
	if len(c) >= 3 && c[:3] == "WRN" {
		return SeverityWarning
	}
	return SeverityError
}

// Issue is one validation finding. Row is the 1-based spreadsheet row.
type Issue struct {
	Code     IssueCode `json:"code"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Sheet    string    `json:"sheet,omitempty"`
	Row      int       `json:"row,omitempty"`
	Column   string    `json:"column,omitempty"`
	Value    string    `json:"value,omitempty"`
	Expected string    `json:"expected,omitempty"`
}

func (i Issue) String() string {
	if i.Row > 0 {
		return fmt.Sprintf("%s %s row %d: %s", i.Code, i.Sheet, i.Row, i.Message)
	}
	if i.Sheet != "" {
		return fmt.Sprintf("%s %s: %s", i.Code, i.Sheet, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

func newIssue(code IssueCode, sheet string, row int, column, msg string) Issue {
	return Issue{
		Code:     code,
		Severity: code.Severity(),
		Message:  msg,
		Sheet:    sheet,
		Row:      row,
		Column:   column,
	}
}
