package model

type AuditAction string

const (
	AuditAccessDenied      AuditAction = "API_ACCESS_DENIED"
	AuditRateLimitExceeded AuditAction = "RATE_LIMIT_EXCEEDED"
	AuditRequestSuccess    AuditAction = "API_REQUEST_SUCCESS"
	AuditRequestFailed     AuditAction = "API_REQUEST_FAILED"
	AuditKeyRotated        AuditAction = "API_KEY_ROTATED"
	AuditKeyRevoked        AuditAction = "API_KEY_REVOKED"
)

// Denial reasons recorded under the details "reason" key.
const (
	DenyRevokedKey      = "revoked_key"
	DenyExpiredKey      = "expired_key"
	DenyInactiveCompany = "inactive_company"
)

type AuditLog struct {
	ID        int64          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CompanyID string         `json:"company_id" gorm:"index;size:36"`
	Action    AuditAction    `json:"action" gorm:"index"`
	Details   map[string]any `json:"details" gorm:"serializer:json"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Time      int64          `json:"time" gorm:"index"`
}

type AuditQuery struct {
	CompanyID string `form:"company_id"`
	Action    string `form:"action"`
	Start     int64  `form:"start"`
	End       int64  `form:"end"`
	Page      int    `form:"page"`
	Size      int    `form:"size"`
}
