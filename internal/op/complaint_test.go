package op_test

import (
	"context"
	"testing"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/auth"
	"github.com/samber/lo"
)

func TestComplaintLifecycle(t *testing.T) {
	setup(t)
	ctx := context.Background()

	company := newCompany(t, auth.GenerateAPIKey(), nil)

	complaint := model.Complaint{
		CompanyID:   company.ID,
		IssueType:   model.IssueRateLimit,
		Description: "Throttled during harvest season peak",
	}
	if err := op.ComplaintCreate(&complaint, ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if complaint.Status != model.ComplaintOpen {
		t.Errorf("status = %q, want open", complaint.Status)
	}
	if complaint.ID == "" {
		t.Error("complaint has no id")
	}

	got, err := op.ComplaintUpdate(&model.ComplaintUpdateRequest{
		ID:     complaint.ID,
		Status: model.ComplaintInProgress,
	}, ctx)
	if err != nil {
		t.Fatalf("update in_progress: %v", err)
	}
	if got.ResolvedAt != 0 {
		t.Error("in_progress stamped resolved_at")
	}

	response := "Raised the per-minute limit"
	got, err = op.ComplaintUpdate(&model.ComplaintUpdateRequest{
		ID:            complaint.ID,
		Status:        model.ComplaintResolved,
		AdminResponse: &response,
	}, ctx)
	if err != nil {
		t.Fatalf("update resolved: %v", err)
	}
	if got.ResolvedAt == 0 {
		t.Error("resolved did not stamp resolved_at")
	}
	if got.AdminResponse != response {
		t.Errorf("admin_response = %q, want %q", got.AdminResponse, response)
	}

	// reopening clears the stamp
	got, err = op.ComplaintUpdate(&model.ComplaintUpdateRequest{
		ID:     complaint.ID,
		Status: model.ComplaintOpen,
	}, ctx)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.ResolvedAt != 0 {
		t.Error("reopen kept resolved_at")
	}

	if _, err := op.ComplaintUpdate(&model.ComplaintUpdateRequest{
		ID:     complaint.ID,
		Status: model.ComplaintStatus("escalated"),
	}, ctx); err == nil {
		t.Error("invalid status accepted, want error")
	}

	bad := model.Complaint{
		CompanyID:   company.ID,
		IssueType:   model.ComplaintIssueType("weather"),
		Description: "x",
	}
	if err := op.ComplaintCreate(&bad, ctx); err == nil {
		t.Error("invalid issue type accepted, want error")
	}

	complaints, err := op.ComplaintList(ctx, company.ID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !lo.ContainsBy(complaints, func(c model.Complaint) bool { return c.ID == complaint.ID }) {
		t.Error("created complaint missing from list")
	}
}
