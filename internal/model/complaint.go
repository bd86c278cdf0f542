package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ComplaintIssueType string

const (
	IssueAPIFailure ComplaintIssueType = "api_failure"
	IssueBilling    ComplaintIssueType = "billing"
	IssueRateLimit  ComplaintIssueType = "rate_limit"
	IssueOther      ComplaintIssueType = "other"
)

type ComplaintStatus string

const (
	ComplaintOpen       ComplaintStatus = "open"
	ComplaintInProgress ComplaintStatus = "in_progress"
	ComplaintResolved   ComplaintStatus = "resolved"
	ComplaintClosed     ComplaintStatus = "closed"
)

type Complaint struct {
	ID            string             `json:"id" gorm:"primaryKey;size:36"`
	CompanyID     string             `json:"company_id" gorm:"index;size:36;not null"`
	IssueType     ComplaintIssueType `json:"issue_type" gorm:"not null"`
	Description   string             `json:"description" gorm:"not null"`
	Status        ComplaintStatus    `json:"status" gorm:"default:open"`
	AdminResponse string             `json:"admin_response,omitempty"`
	CreatedAt     int64              `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     int64              `json:"updated_at" gorm:"autoUpdateTime"`
	ResolvedAt    int64              `json:"resolved_at,omitempty"`
}

func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ComplaintOpen
	}
	return nil
}

type ComplaintCreateRequest struct {
	CompanyID   string             `json:"company_id" binding:"required"`
	IssueType   ComplaintIssueType `json:"issue_type" binding:"required"`
	Description string             `json:"description" binding:"required"`
}

type ComplaintUpdateRequest struct {
	ID            string          `json:"id" binding:"required"`
	Status        ComplaintStatus `json:"status" binding:"required"`
	AdminResponse *string         `json:"admin_response,omitempty"`
}

func (t ComplaintIssueType) Valid() bool {
	switch t {
	case IssueAPIFailure, IssueBilling, IssueRateLimit, IssueOther:
		return true
	}
	return false
}

func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintOpen, ComplaintInProgress, ComplaintResolved, ComplaintClosed:
		return true
	}
	return false
}
