package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/catalogsync/internal/catalog"
	"github.com/JonMunkholm/catalogsync/internal/logging"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// parseIntParam parses a non-negative integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// ImportSummaryResponse is one entry of the import history listing. The
// snapshot is left out; fetch the import by id to get it.
type ImportSummaryResponse struct {
	ID           string                `json:"id"`
	FileName     string                `json:"fileName"`
	FileSize     int64                 `json:"fileSize"`
	RowsImported int                   `json:"rowsImported"`
	Summary      catalog.ImportSummary `json:"importSummary"`
	CreatedAt    time.Time             `json:"createdAt"`
	RolledBackAt *time.Time            `json:"rolledBackAt,omitempty"`
}

// handleListImports lists import history, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)
	offset := parseIntParam(r, "offset", 0)

	recs, err := s.service.ListImports(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]ImportSummaryResponse, len(recs))
	for i, rec := range recs {
		out[i] = ImportSummaryResponse{
			ID:           rec.ID,
			FileName:     rec.FileName,
			FileSize:     rec.FileSize,
			RowsImported: rec.RowsImported,
			Summary:      rec.Summary,
			CreatedAt:    rec.CreatedAt,
			RolledBackAt: rec.RolledBackAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetImport returns one import with its snapshot.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetImport(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleRollbackPreview reports whether an import can be rolled back.
func (s *Server) handleRollbackPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.PreviewRollback(r.Context(), chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleRollback reverses an import.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	ctx := withRequestMetadata(r.Context(), r)
	result, err := s.service.Rollback(ctx, chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAuditLog lists audit entries, optionally filtered by action or
// import id.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.service.AuditLog(r.Context(), catalog.AuditFilter{
		Action:   q.Get("action"),
		ImportID: q.Get("importId"),
		Limit:    parseIntParam(r, "limit", 0),
		Offset:   parseIntParam(r, "offset", 0),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleExport downloads the catalog as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.Export(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("catalog_%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}
