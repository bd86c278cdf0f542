package op_test

import (
	"context"
	"testing"
	"time"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/auth"
)

func TestUsageLogListAndAggregates(t *testing.T) {
	setup(t)
	ctx := context.Background()

	a := newCompany(t, auth.GenerateAPIKey(), nil)
	b := newCompany(t, auth.GenerateAPIKey(), nil)

	now := time.Now().Unix()
	entries := []model.UsageLog{
		{CompanyID: a.ID, Endpoint: "/api/analyze", ResponseTime: 100, TokensUsed: 500, Cost: 0, Success: true, Time: now},
		{CompanyID: a.ID, Endpoint: "/api/analyze", ResponseTime: 300, TokensUsed: 700, Cost: 0.1, Success: true, Time: now},
		{CompanyID: a.ID, Endpoint: "/api/analyze", ResponseTime: 200, Success: false, ErrorMessage: "upstream returned status 500", Time: now},
		{CompanyID: b.ID, Endpoint: "/api/analyze", ResponseTime: 150, TokensUsed: 400, Cost: 0, Success: true, Time: now},
	}
	for i, entry := range entries {
		if err := op.UsageLogAdd(ctx, entry); err != nil {
			t.Fatalf("add entry %d: %v", i, err)
		}
	}

	got, err := op.UsageLogList(ctx, model.UsageQuery{CompanyID: a.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("company A entries = %d, want 3", len(got))
	}

	summary, err := op.UsageSummary(ctx, a.ID, now-60, now+60)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalRequests != 3 {
		t.Errorf("total_requests = %d, want 3", summary.TotalRequests)
	}
	if summary.SuccessCount != 2 {
		t.Errorf("success_count = %d, want 2", summary.SuccessCount)
	}
	if summary.FailureCount != 1 {
		t.Errorf("failure_count = %d, want 1", summary.FailureCount)
	}
	if summary.TotalTokens != 1200 {
		t.Errorf("total_tokens = %d, want 1200", summary.TotalTokens)
	}
	if summary.TotalCost != 0.1 {
		t.Errorf("total_cost = %v, want 0.1", summary.TotalCost)
	}

	daily, err := op.UsageDaily(ctx, a.ID, now-60, now+60)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("daily buckets = %d, want 1", len(daily))
	}
	if daily[0].Requests != 3 {
		t.Errorf("bucket requests = %d, want 3", daily[0].Requests)
	}
	wantDay := time.Unix(now-now%86400, 0).UTC().Format("2006-01-02")
	if daily[0].Day != wantDay {
		t.Errorf("bucket day = %q, want %q", daily[0].Day, wantDay)
	}

	ranked, err := op.UsageByCompany(ctx, now-60, now+60)
	if err != nil {
		t.Fatalf("by company: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked companies = %d, want 2", len(ranked))
	}
	if ranked[0].CompanyID != a.ID {
		t.Errorf("top company = %s, want %s", ranked[0].CompanyID, a.ID)
	}

	byEndpoint, err := op.UsageByEndpoint(ctx, now-60, now+60)
	if err != nil {
		t.Fatalf("by endpoint: %v", err)
	}
	if len(byEndpoint) != 1 {
		t.Fatalf("endpoint rows = %d, want 1", len(byEndpoint))
	}
	if byEndpoint[0].Endpoint != "/api/analyze" || byEndpoint[0].Requests != 4 {
		t.Errorf("endpoint row = %+v", byEndpoint[0])
	}
}

func TestUsageLogNeverDropsEntries(t *testing.T) {
	setup(t)
	ctx := context.Background()

	company := newCompany(t, auth.GenerateAPIKey(), nil)

	now := time.Now().Unix()
	old := model.UsageLog{
		CompanyID: company.ID,
		Endpoint:  "/api/analyze",
		Success:   true,
		Time:      now - 400*24*3600,
	}
	if err := op.UsageLogAdd(ctx, old); err != nil {
		t.Fatalf("add old entry: %v", err)
	}
	const recent = 60
	for i := 0; i < recent; i++ {
		entry := model.UsageLog{
			CompanyID:  company.ID,
			Endpoint:   "/api/analyze",
			TokensUsed: 10,
			Success:    true,
			Time:       now,
		}
		if err := op.UsageLogAdd(ctx, entry); err != nil {
			t.Fatalf("add entry %d: %v", i, err)
		}
	}

	// flush + cleanup; default retention keeps everything
	if err := op.UsageLogSaveDBTask(ctx); err != nil {
		t.Fatalf("save task: %v", err)
	}

	got, err := op.UsageLogList(ctx, model.UsageQuery{CompanyID: company.ID, Size: 200})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != recent+1 {
		t.Fatalf("ledger entries = %d, want %d", len(got), recent+1)
	}
	oldest := got[len(got)-1]
	if oldest.Time != old.Time {
		t.Errorf("oldest entry time = %d, want %d", oldest.Time, old.Time)
	}
}

func TestUsageLogStreamTokens(t *testing.T) {
	token, err := op.UsageLogStreamTokenCreate()
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if !op.UsageLogStreamTokenVerify(token) {
		t.Error("fresh token does not verify")
	}
	op.UsageLogStreamTokenRevoke(token)
	if op.UsageLogStreamTokenVerify(token) {
		t.Error("revoked token still verifies")
	}
	if op.UsageLogStreamTokenVerify("deadbeef") {
		t.Error("unknown token verifies")
	}
}
