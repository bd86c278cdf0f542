package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/middleware"
	"github.com/gin-gonic/gin"
)

func preflight(r *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCorsOriginMatching(t *testing.T) {
	setupDB(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Cors())
	r.POST("/api/analyze", func(c *gin.Context) { c.Status(http.StatusOK) })

	set := func(value string) {
		t.Helper()
		if err := op.SettingSetString(model.SettingKeyCORSAllowOrigins, value); err != nil {
			t.Fatalf("set cors origins: %v", err)
		}
	}

	// empty setting denies everything
	set("")
	if rec := preflight(r, "https://app.example.com"); rec.Code != http.StatusForbidden {
		t.Errorf("empty allow-list preflight status = %d, want 403", rec.Code)
	}

	// exact origin and bare host entries
	set("https://app.example.com, dashboard.example.com")
	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://app.example.com", true},
		{"http://dashboard.example.com", true},
		{"https://evil.example.net", false},
	}
	for _, tt := range tests {
		rec := preflight(r, tt.origin)
		got := rec.Code == http.StatusNoContent
		if got != tt.allowed {
			t.Errorf("origin %s: allowed = %v, want %v (status %d)", tt.origin, got, tt.allowed, rec.Code)
		}
		if tt.allowed && rec.Header().Get("Access-Control-Allow-Origin") != tt.origin {
			t.Errorf("origin %s: allow header = %q", tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
		}
	}

	// pattern entry for deploy-preview hosts
	set(`/^https:\/\/pr-\d+\.example\.dev$/`)
	if rec := preflight(r, "https://pr-42.example.dev"); rec.Code != http.StatusNoContent {
		t.Errorf("pattern match preflight status = %d, want 204", rec.Code)
	}
	if rec := preflight(r, "https://pr-abc.example.dev"); rec.Code != http.StatusForbidden {
		t.Errorf("pattern mismatch preflight status = %d, want 403", rec.Code)
	}
}
