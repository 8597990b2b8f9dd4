package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewRouter(t *testing.T) {
	router := NewRouter(zerolog.Nop())
	RecordFeatureRows(1)

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/health", http.StatusOK, "ok"},
		{http.MethodGet, "/metrics", http.StatusOK, "gtaa_features_rows_computed_total"},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/missing", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
			// Middleware runs on matched routes only.
			if tt.wantStatus == http.StatusOK && len(rec.Header().Get("X-Request-ID")) != 8 {
				t.Errorf("X-Request-ID = %q, want 8 chars", rec.Header().Get("X-Request-ID"))
			}
		})
	}
}
