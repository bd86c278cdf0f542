package relay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bestruirui/sprout/internal/conf"
	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/relay"
	"github.com/bestruirui/sprout/internal/server/auth"
)

const candidateJSON = `{"disease_name":"Late Blight","confidence":0.88,"disease_stage":"intermediate",` +
	`"symptoms":["dark lesions"],"action_plan":["remove infected leaves"],` +
	`"treatments":{"organic":["neem oil"],"chemical":["mancozeb"],"ipm":["crop rotation"],"cultural":["drip irrigation"]},` +
	`"recommended_videos":[],"faqs":[{"question":"Is it contagious?","answer":"Yes, between plants."}],` +
	`"tips":["water at soil level"],"yield_impact":"high","spread_risk":"high","recovery_chance":"moderate"}`

func setup(t *testing.T, upstream string) model.Company {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sprout.db")
	if err := db.InitDB("sqlite", dbPath, false); err != nil {
		t.Fatalf("init db: %v", err)
	}
	if err := op.InitCache(); err != nil {
		t.Fatalf("init cache: %v", err)
	}
	conf.AppConfig.Upstream = conf.Upstream{
		BaseURL:    upstream,
		Model:      "gemini-2.0-flash",
		TimeoutSec: 5,
	}

	company := model.Company{
		Name:               "Green Valley",
		Email:              "relay-" + filepath.Base(t.TempDir()) + "@example.com",
		APIKeyHash:         auth.HashAPIKey(auth.GenerateAPIKey()),
		GeminiKey:          "tenant-gemini-key",
		DailyLimit:         10,
		RateLimitPerMinute: 60,
		CostPerExtraCall:   0.1,
		Status:             model.CompanyStatusActive,
	}
	if err := op.CompanyCreate(&company, context.Background()); err != nil {
		t.Fatalf("create company: %v", err)
	}
	return company
}

func geminiStub(t *testing.T, candidateText string, tokens int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "tenant-gemini-key" {
			t.Errorf("upstream key header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": candidateText}}}},
			},
			"usageMetadata": map[string]any{"totalTokenCount": tokens},
		})
	}))
}

func TestAnalyzeSuccess(t *testing.T) {
	srv := geminiStub(t, candidateJSON, 1234)
	defer srv.Close()
	company := setup(t, srv.URL)
	ctx := context.Background()

	got, err := relay.Analyze(ctx, company, model.AnalyzeRequest{Image: "aGVsbG8=", Crop: "tomato"}, relay.Meta{
		Endpoint: "/api/analyze",
		Overage:  false,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.DiseaseName != "Late Blight" {
		t.Errorf("disease name = %q", got.DiseaseName)
	}
	if got.Fallback {
		t.Error("fallback set on clean parse")
	}
	if got.Branding != conf.Branding {
		t.Errorf("branding = %q", got.Branding)
	}
	if got.RemainingToday != 9 {
		t.Errorf("remaining_today = %d, want 9", got.RemainingToday)
	}

	updated, err := op.CompanyGet(company.ID, ctx)
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	if updated.CurrentUsage != 1 {
		t.Errorf("current usage = %d, want 1", updated.CurrentUsage)
	}

	logs, err := op.UsageLogList(ctx, model.UsageQuery{CompanyID: company.ID})
	if err != nil {
		t.Fatalf("usage list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("usage entries = %d, want 1", len(logs))
	}
	if !logs[0].Success || logs[0].TokensUsed != 1234 {
		t.Errorf("usage entry = %+v", logs[0])
	}
}

func TestAnalyzeResponseShape(t *testing.T) {
	// candidate omits the optional list fields so the encoder is forced to
	// handle them
	sparse := `{"disease_name":"Leaf Rust","confidence":0.7,"disease_stage":"early",` +
		`"symptoms":["orange pustules"],"yield_impact":"moderate","spread_risk":"high","recovery_chance":"high"}`
	srv := geminiStub(t, sparse, 200)
	defer srv.Close()
	company := setup(t, srv.URL)
	ctx := context.Background()

	got, err := relay.Analyze(ctx, company, model.AnalyzeRequest{Image: "aGVsbG8="}, relay.Meta{Endpoint: "/api/analyze"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// diagnosis fields sit at the top level next to branding, not under a
	// wrapper object
	if body["disease_name"] != "Leaf Rust" {
		t.Errorf("disease_name = %v", body["disease_name"])
	}
	if body["branding"] != conf.Branding {
		t.Errorf("branding = %v", body["branding"])
	}
	for _, key := range []string{"result", "powered_by"} {
		if _, ok := body[key]; ok {
			t.Errorf("unexpected %q key in response", key)
		}
	}
	for _, key := range []string{"disease_stage", "yield_impact", "spread_risk", "recovery_chance", "remaining_today", "overage"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %q key in response", key)
		}
	}
	// list fields marshal as arrays even when the model left them out
	for _, key := range []string{"action_plan", "recommended_videos", "faqs", "tips"} {
		if _, ok := body[key].([]any); !ok {
			t.Errorf("%q = %v (%T), want array", key, body[key], body[key])
		}
	}
}

func TestAnalyzeOverageBillsCost(t *testing.T) {
	srv := geminiStub(t, candidateJSON, 50)
	defer srv.Close()
	company := setup(t, srv.URL)
	ctx := context.Background()

	got, err := relay.Analyze(ctx, company, model.AnalyzeRequest{Image: "aGVsbG8="}, relay.Meta{
		Endpoint: "/api/analyze",
		Overage:  true,
		Cost:     0.1,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !got.Overage {
		t.Error("overage flag not carried through")
	}

	logs, err := op.UsageLogList(ctx, model.UsageQuery{CompanyID: company.ID})
	if err != nil {
		t.Fatalf("usage list: %v", err)
	}
	if len(logs) != 1 || logs[0].Cost != 0.1 {
		t.Fatalf("usage entries = %+v, want one entry at cost 0.1", logs)
	}
}

func TestAnalyzeFallbackOnProseReply(t *testing.T) {
	srv := geminiStub(t, "The plant appears healthy, no structured data available.", 80)
	defer srv.Close()
	company := setup(t, srv.URL)
	ctx := context.Background()

	got, err := relay.Analyze(ctx, company, model.AnalyzeRequest{Image: "aGVsbG8="}, relay.Meta{Endpoint: "/api/analyze"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !got.Fallback {
		t.Error("fallback not set for unparseable reply")
	}
	if got.DiseaseName != "Analysis Unavailable" {
		t.Errorf("fallback disease name = %q", got.DiseaseName)
	}
	if !strings.Contains(got.RawText, "appears healthy") {
		t.Errorf("raw text not preserved: %q", got.RawText)
	}

	// a fallback reply still bills as a successful call
	logs, err := op.UsageLogList(ctx, model.UsageQuery{CompanyID: company.ID})
	if err != nil {
		t.Fatalf("usage list: %v", err)
	}
	if len(logs) != 1 || !logs[0].Success {
		t.Fatalf("usage entries = %+v, want one successful entry", logs)
	}
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 503, "message": "overloaded", "status": "UNAVAILABLE"},
		})
	}))
	defer srv.Close()
	company := setup(t, srv.URL)
	ctx := context.Background()

	_, err := relay.Analyze(ctx, company, model.AnalyzeRequest{Image: "aGVsbG8="}, relay.Meta{Endpoint: "/api/analyze"})
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if strings.Contains(err.Error(), "tenant-gemini-key") {
		t.Errorf("error leaks the upstream credential: %v", err)
	}

	logs, listErr := op.UsageLogList(ctx, model.UsageQuery{CompanyID: company.ID})
	if listErr != nil {
		t.Fatalf("usage list: %v", listErr)
	}
	if len(logs) != 1 {
		t.Fatalf("usage entries = %d, want 1", len(logs))
	}
	if logs[0].Success || logs[0].Cost != 0 {
		t.Errorf("failed call entry = %+v, want success=false cost=0", logs[0])
	}

	updated, err := op.CompanyGet(company.ID, ctx)
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	if updated.CurrentUsage != 0 {
		t.Errorf("usage incremented on failure: %d", updated.CurrentUsage)
	}
}
