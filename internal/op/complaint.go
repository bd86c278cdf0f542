package op

import (
	"context"
	"fmt"
	"time"

	"github.com/bestruirui/sprout/internal/db"
	"github.com/bestruirui/sprout/internal/model"
)

// Complaints are low volume, so they go straight to the database without a
// cache in front.

func ComplaintCreate(complaint *model.Complaint, ctx context.Context) error {
	if !complaint.IssueType.Valid() {
		return fmt.Errorf("invalid issue type: %s", complaint.IssueType)
	}
	if _, err := CompanyGet(complaint.CompanyID, ctx); err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	if err := db.GetDB().WithContext(ctx).Create(complaint).Error; err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	return nil
}

func ComplaintList(ctx context.Context, companyID string, status model.ComplaintStatus) ([]model.Complaint, error) {
	q := db.GetDB().WithContext(ctx).Model(&model.Complaint{})
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("invalid complaint status: %s", status)
		}
		q = q.Where("status = ?", status)
	}
	var complaints []model.Complaint
	if err := q.Order("created_at DESC").Find(&complaints).Error; err != nil {
		return nil, err
	}
	return complaints, nil
}

// ComplaintUpdate moves a complaint through its lifecycle. Entering resolved
// or closed stamps resolved_at once; reopening clears it.
func ComplaintUpdate(req *model.ComplaintUpdateRequest, ctx context.Context) (model.Complaint, error) {
	if !req.Status.Valid() {
		return model.Complaint{}, fmt.Errorf("invalid complaint status: %s", req.Status)
	}
	var complaint model.Complaint
	if err := db.GetDB().WithContext(ctx).First(&complaint, "id = ?", req.ID).Error; err != nil {
		return model.Complaint{}, fmt.Errorf("complaint not found")
	}

	updates := map[string]any{"status": req.Status}
	complaint.Status = req.Status
	if req.AdminResponse != nil {
		complaint.AdminResponse = *req.AdminResponse
		updates["admin_response"] = *req.AdminResponse
	}
	switch req.Status {
	case model.ComplaintResolved, model.ComplaintClosed:
		if complaint.ResolvedAt == 0 {
			complaint.ResolvedAt = time.Now().Unix()
			updates["resolved_at"] = complaint.ResolvedAt
		}
	default:
		if complaint.ResolvedAt != 0 {
			complaint.ResolvedAt = 0
			updates["resolved_at"] = 0
		}
	}

	if err := db.GetDB().WithContext(ctx).Model(&model.Complaint{}).
		Where("id = ?", req.ID).Updates(updates).Error; err != nil {
		return model.Complaint{}, fmt.Errorf("failed to update complaint: %w", err)
	}
	return complaint, nil
}
