package web

// errors.go turns service errors into JSON responses. The technical error is
// logged with the request ID; the client gets the mapped user message and,
// for rejected imports and rollbacks, the details needed to fix them.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/logging"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Validation is set when an apply was refused for blocking errors.
	Validation *core.ValidationResult `json:"validation,omitempty"`

	// Conflicts is set when a rollback was refused for divergence.
	Conflicts []core.Conflict `json:"conflicts,omitempty"`
}

// errNoFile is returned when a multipart request has no "file" part.
var errNoFile = errors.New("no file provided")

// respondError logs err and writes the mapped error response. Errors without
// a specific user message are logged at error level whatever their status.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	msg := ue.User
	userFacing := core.IsUserFacing(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", msg.Code,
		"user_message", core.FormatUserError(err),
		"user_facing", userFacing,
	}
	if status >= http.StatusInternalServerError || !userFacing {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request rejected", args...)
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var vf *core.ValidationFailedError
	if errors.As(err, &vf) {
		resp.Validation = vf.Result
	}
	var de *core.DivergenceError
	if errors.As(err, &de) {
		resp.Conflicts = de.Conflicts
	}
	writeJSON(w, status, resp)
}

// writeError writes an error that did not come from the service.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Message: message, Code: code})
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var pe *core.ParseError
	if errors.As(err, &pe) {
		if pe.Code == core.CodeFileSize {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	}
	var vf *core.ValidationFailedError
	if errors.As(err, &vf) {
		return http.StatusUnprocessableEntity
	}
	var de *core.DivergenceError
	if errors.As(err, &de) {
		return http.StatusConflict
	}

	switch {
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrImportNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrWarningsNotAcknowledged),
		errors.Is(err, core.ErrStaleDiff),
		errors.Is(err, core.ErrAlreadyRolledBack),
		errors.Is(err, core.ErrTooManyImports):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
