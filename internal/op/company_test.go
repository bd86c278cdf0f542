package op_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/auth"
)

var emailSeq atomic.Int64

func setup(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sprout.db")
	if err := db.InitDB("sqlite", dbPath, false); err != nil {
		t.Fatalf("init db: %v", err)
	}
	if err := op.InitCache(); err != nil {
		t.Fatalf("init cache: %v", err)
	}
}

func newCompany(t *testing.T, apiKey string, mutate func(*model.Company)) model.Company {
	t.Helper()
	company := model.Company{
		Name:               "Acme Farms",
		Email:              fmt.Sprintf("acme-%d@example.com", emailSeq.Add(1)),
		APIKeyHash:         auth.HashAPIKey(apiKey),
		GeminiKey:          "upstream-key",
		DailyLimit:         100,
		RateLimitPerMinute: 60,
		CostPerExtraCall:   0.1,
		Status:             model.CompanyStatusActive,
		ResetDate:          time.Now().Unix(),
	}
	if mutate != nil {
		mutate(&company)
	}
	if err := op.CompanyCreate(&company, context.Background()); err != nil {
		t.Fatalf("create company: %v", err)
	}
	return company
}

func TestCompanyKeyLookup(t *testing.T) {
	setup(t)
	ctx := context.Background()

	keyA := auth.GenerateAPIKey()
	keyB := auth.GenerateAPIKey()
	companyA := newCompany(t, keyA, nil)
	companyB := newCompany(t, keyB, nil)

	got, err := op.CompanyGetByKeyHash(auth.HashAPIKey(keyA), ctx)
	if err != nil {
		t.Fatalf("lookup keyA: %v", err)
	}
	if got.ID != companyA.ID {
		t.Errorf("keyA resolved to %s, want %s", got.ID, companyA.ID)
	}

	got, err = op.CompanyGetByKeyHash(auth.HashAPIKey(keyB), ctx)
	if err != nil {
		t.Fatalf("lookup keyB: %v", err)
	}
	if got.ID != companyB.ID {
		t.Errorf("keyB resolved to %s, want %s", got.ID, companyB.ID)
	}

	if _, err := op.CompanyGetByKeyHash(auth.HashAPIKey("sk-sprout-unknown"), ctx); err == nil {
		t.Error("unknown key hash resolved, want error")
	}
}

func TestCompanyRevokeAndRotate(t *testing.T) {
	setup(t)
	ctx := context.Background()

	oldKey := auth.GenerateAPIKey()
	company := newCompany(t, oldKey, nil)

	if err := op.CompanyRevokeKey(company.ID, ctx); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, err := op.CompanyGetByKeyHash(auth.HashAPIKey(oldKey), ctx)
	if err != nil {
		t.Fatalf("lookup after revoke: %v", err)
	}
	if !got.APIKeyRevoked {
		t.Error("company not marked revoked")
	}

	newKey := auth.GenerateAPIKey()
	if err := op.CompanyReplaceKeyHash(company.ID, auth.HashAPIKey(newKey), ctx); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := op.CompanyGetByKeyHash(auth.HashAPIKey(oldKey), ctx); err == nil {
		t.Error("old key still resolves after rotation")
	}
	got, err = op.CompanyGetByKeyHash(auth.HashAPIKey(newKey), ctx)
	if err != nil {
		t.Fatalf("lookup new key: %v", err)
	}
	if got.ID != company.ID {
		t.Errorf("new key resolved to %s, want %s", got.ID, company.ID)
	}
	if got.APIKeyRevoked {
		t.Error("rotation should clear the revoked flag")
	}
}

func TestCompanyRateWindowAnchorsAtLastRequest(t *testing.T) {
	setup(t)
	ctx := context.Background()

	company := newCompany(t, auth.GenerateAPIKey(), func(c *model.Company) {
		c.RateLimitPerMinute = 2
	})

	base := time.Now().Unix()
	for _, at := range []int64{base, base + 30} {
		allowed, _, err := op.CompanyRateConsume(company.ID, at, ctx)
		if err != nil {
			t.Fatalf("consume at +%d: %v", at-base, err)
		}
		if !allowed {
			t.Fatalf("request at +%d denied, want allowed", at-base)
		}
	}

	// 61s after the first request but only 31s after the last admitted one:
	// the window has not expired
	allowed, _, err := op.CompanyRateConsume(company.ID, base+61, ctx)
	if err != nil {
		t.Fatalf("consume at +61: %v", err)
	}
	if allowed {
		t.Error("request 31s after last admit allowed, want denied")
	}

	allowed, _, err = op.CompanyRateConsume(company.ID, base+90, ctx)
	if err != nil {
		t.Fatalf("consume at +90: %v", err)
	}
	if !allowed {
		t.Error("request 60s after last admit denied, want allowed")
	}

	var count int
	if err := db.GetDB().Raw("SELECT requests_this_minute FROM companies WHERE id = ?",
		company.ID).Scan(&count).Error; err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if count != 1 {
		t.Errorf("requests_this_minute = %d, want 1 after window restart", count)
	}
}

func TestCompanyRateWindow(t *testing.T) {
	setup(t)
	ctx := context.Background()

	company := newCompany(t, auth.GenerateAPIKey(), func(c *model.Company) {
		c.RateLimitPerMinute = 3
	})

	now := time.Now().Unix()
	for i := 0; i < 3; i++ {
		allowed, limit, err := op.CompanyRateConsume(company.ID, now, ctx)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if limit != 3 {
			t.Fatalf("limit = %d, want 3", limit)
		}
	}

	allowed, _, err := op.CompanyRateConsume(company.ID, now, ctx)
	if err != nil {
		t.Fatalf("consume over limit: %v", err)
	}
	if allowed {
		t.Error("4th request in window allowed, want denied")
	}

	// age the window past 60s, the next request restarts the count at 1
	if err := db.GetDB().Exec("UPDATE companies SET last_request_time = ? WHERE id = ?",
		now-61, company.ID).Error; err != nil {
		t.Fatalf("age window: %v", err)
	}
	allowed, _, err = op.CompanyRateConsume(company.ID, now, ctx)
	if err != nil {
		t.Fatalf("consume after window: %v", err)
	}
	if !allowed {
		t.Error("request after expired window denied, want allowed")
	}

	var count int
	if err := db.GetDB().Raw("SELECT requests_this_minute FROM companies WHERE id = ?",
		company.ID).Scan(&count).Error; err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if count != 1 {
		t.Errorf("requests_this_minute = %d after window reset, want 1", count)
	}
}

func TestCompanyAddUsageBeyondLimit(t *testing.T) {
	setup(t)
	ctx := context.Background()

	company := newCompany(t, auth.GenerateAPIKey(), func(c *model.Company) {
		c.DailyLimit = 2
	})

	for i := 0; i < 3; i++ {
		usage, err := op.CompanyAddUsage(company.ID, ctx)
		if err != nil {
			t.Fatalf("add usage %d: %v", i, err)
		}
		if usage != i+1 {
			t.Fatalf("usage after increment %d = %d, want %d", i, usage, i+1)
		}
	}

	got, err := op.CompanyGet(company.ID, ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// usage keeps counting past the limit, overage bills instead of blocking
	if got.CurrentUsage != 3 {
		t.Errorf("current_usage = %d, want 3", got.CurrentUsage)
	}
}

func TestCompanyResetAllUsage(t *testing.T) {
	setup(t)
	ctx := context.Background()

	a := newCompany(t, auth.GenerateAPIKey(), func(c *model.Company) { c.CurrentUsage = 5 })
	b := newCompany(t, auth.GenerateAPIKey(), func(c *model.Company) { c.CurrentUsage = 9 })

	count, err := op.CompanyResetAllUsage(ctx)
	if err != nil {
		t.Fatalf("reset all: %v", err)
	}
	if count != 2 {
		t.Errorf("reset affected %d rows, want 2", count)
	}

	for _, id := range []string{a.ID, b.ID} {
		got, err := op.CompanyGet(id, ctx)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.CurrentUsage != 0 {
			t.Errorf("company %s current_usage = %d after reset, want 0", id, got.CurrentUsage)
		}
	}

	// a second run is harmless
	if _, err := op.CompanyResetAllUsage(ctx); err != nil {
		t.Fatalf("second reset: %v", err)
	}
	got, _ := op.CompanyGet(a.ID, ctx)
	if got.CurrentUsage != 0 {
		t.Errorf("current_usage = %d after repeated reset, want 0", got.CurrentUsage)
	}
}

func TestCompanyUpdatePartial(t *testing.T) {
	setup(t)
	ctx := context.Background()

	company := newCompany(t, auth.GenerateAPIKey(), nil)

	newName := "Borealis Greenhouses"
	updated, err := op.CompanyUpdate(&model.CompanyUpdateRequest{
		ID:   company.ID,
		Name: &newName,
	}, ctx)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != newName {
		t.Errorf("name = %q, want %q", updated.Name, newName)
	}
	if updated.Email != company.Email {
		t.Errorf("email changed to %q, want untouched %q", updated.Email, company.Email)
	}
	if updated.DailyLimit != company.DailyLimit {
		t.Errorf("daily_limit changed to %d, want untouched %d", updated.DailyLimit, company.DailyLimit)
	}

	badStatus := model.CompanyStatus("frozen")
	if _, err := op.CompanyUpdate(&model.CompanyUpdateRequest{
		ID:     company.ID,
		Status: &badStatus,
	}, ctx); err == nil {
		t.Error("invalid status accepted, want error")
	}
}
