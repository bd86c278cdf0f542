package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompanyStatus string

const (
	CompanyStatusActive    CompanyStatus = "active"
	CompanyStatusSuspended CompanyStatus = "suspended"
	CompanyStatusExpired   CompanyStatus = "expired"
)

// Company is a billable tenant. Only the sha256 lookup hash of the API key is
// stored; the raw key is returned exactly once at creation or rotation.
type Company struct {
	ID                 string        `json:"id" gorm:"primaryKey;size:36"`
	Name               string        `json:"name" gorm:"not null"`
	Email              string        `json:"email" gorm:"unique;not null"`
	APIKeyHash         string        `json:"api_key_hash" gorm:"uniqueIndex;size:64;not null"`
	GeminiKey          string        `json:"-" gorm:"not null"` // upstream credential, never re-displayed
	DailyLimit         int           `json:"daily_limit" gorm:"default:100"`
	CurrentUsage       int           `json:"current_usage" gorm:"default:0"`
	ResetDate          int64         `json:"reset_date"`
	RateLimitPerMinute int           `json:"rate_limit_per_minute" gorm:"default:60"`
	RequestsThisMinute int           `json:"requests_this_minute" gorm:"default:0"`
	LastRequestTime    int64         `json:"last_request_time"` // anchors the 60s window, 0 = never
	CostPerExtraCall   float64       `json:"cost_per_extra_call" gorm:"default:0.1"`
	Status             CompanyStatus `json:"status" gorm:"default:active"`
	APIKeyRevoked      bool          `json:"api_key_revoked" gorm:"default:false"`
	ExpiryDate         int64         `json:"expiry_date"` // unix seconds, 0 = no expiry
	CreatedAt          int64         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          int64         `json:"updated_at" gorm:"autoUpdateTime"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type CompanyCreateRequest struct {
	Name               string  `json:"name" binding:"required"`
	Email              string  `json:"email" binding:"required"`
	GeminiKey          string  `json:"gemini_key" binding:"required"`
	DailyLimit         int     `json:"daily_limit,omitempty"`
	CostPerExtraCall   float64 `json:"cost_per_extra_call,omitempty"`
	RateLimitPerMinute int     `json:"rate_limit_per_minute,omitempty"`
	ExpiryDate         int64   `json:"expiry_date,omitempty"`
}

// CompanyUpdateRequest carries only the fields being changed.
type CompanyUpdateRequest struct {
	ID                 string         `json:"id" binding:"required"`
	Name               *string        `json:"name,omitempty"`
	Email              *string        `json:"email,omitempty"`
	GeminiKey          *string        `json:"gemini_key,omitempty"`
	DailyLimit         *int           `json:"daily_limit,omitempty"`
	CostPerExtraCall   *float64       `json:"cost_per_extra_call,omitempty"`
	RateLimitPerMinute *int           `json:"rate_limit_per_minute,omitempty"`
	Status             *CompanyStatus `json:"status,omitempty"`
	ExpiryDate         *int64         `json:"expiry_date,omitempty"`
}

// CompanyWithKey is the create/rotate response: the only moments the raw key
// is visible.
type CompanyWithKey struct {
	Company
	APIKey string `json:"api_key"`
}

func (s CompanyStatus) Valid() bool {
	switch s {
	case CompanyStatusActive, CompanyStatusSuspended, CompanyStatusExpired:
		return true
	}
	return false
}
