package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/catalogsync/internal/core"
)

// multipartOverhead is the allowance for form fields and part headers on top
// of the workbook itself.
const multipartOverhead = 1 << 20

// readUpload reads the "file" part of a multipart request.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (core.Upload, error) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return core.Upload{}, &core.ParseError{
				Code:    core.CodeFileSize,
				Message: fmt.Sprintf("file too large: exceeds the %d byte limit", maxSize),
			}
		}
		return core.Upload{}, errNoFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.Upload{}, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	return core.Upload{FileName: header.Filename, Data: data}, nil
}

// handleValidate returns the validation result of an uploaded workbook.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Validate(r.Context(), up)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePreview returns validation and diff without writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.service.Preview(r.Context(), up)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleApply imports a workbook. Warnings must be acknowledged with the
// acknowledgeWarnings form field.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ack, _ := strconv.ParseBool(r.FormValue("acknowledgeWarnings"))

	ctx := withRequestMetadata(r.Context(), r)
	result, err := s.service.Apply(ctx, core.ApplyRequest{Upload: up, AcknowledgeWarnings: ack})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ImportStatusResponse reports whether the service can take an import now.
type ImportStatusResponse struct {
	core.ImportLimiterStatus
	PartDeletePolicy core.PartDeletePolicy `json:"part_delete_policy"`
	MaxFileSize      int64                 `json:"max_file_size"`
}

// handleImportStatus reports import slot usage and import settings.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ImportStatusResponse{
		ImportLimiterStatus: s.service.LimiterStatus(),
		PartDeletePolicy:    s.service.Policy(),
		MaxFileSize:         s.service.MaxFileSize(),
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
