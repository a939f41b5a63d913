package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/catalogsync/internal/core"
	"github.com/JonMunkholm/catalogsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantLog    []string
	}{
		{
			name:       "mapped error is a warning",
			err:        fmt.Errorf("get import: %w", core.ErrImportNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "IMP006",
			wantLog: []string{
				"level=WARN",
				"user_facing=true",
				`user_message="Import not found (Code: IMP006). Verify the import id in the import history"`,
				`error="get import: import not found"`,
			},
		},
		{
			name:       "unmapped error keeps the technical detail in the log only",
			err:        errors.New("checksum mismatch reading page from 10.0.0.5:5432"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "ERR000",
			wantLog: []string{
				"level=ERROR",
				"user_facing=false",
				"10.0.0.5:5432",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(logging.New(&buf, "debug", "text"))
			t.Cleanup(func() { slog.SetDefault(prev) })

			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/api/imports/x", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotContains(t, rec.Body.String(), "10.0.0.5", "technical detail must not reach the client")

			out := buf.String()
			for _, want := range tt.wantLog {
				assert.Contains(t, out, want)
			}
		})
	}
}
