package model

// UsageLog records one admitted request per tenant, successful or not.
type UsageLog struct {
	ID           int64   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CompanyID    string  `json:"company_id" gorm:"index;size:36"`
	Endpoint     string  `json:"endpoint"`
	ResponseTime int     `json:"response_time"` // milliseconds
	TokensUsed   int     `json:"tokens_used"`
	Cost         float64 `json:"cost"` // 0 inside quota, cost_per_extra_call beyond
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"error_message,omitempty"`
	IPAddress    string  `json:"ip_address"`
	UserAgent    string  `json:"user_agent"`
	Time         int64   `json:"time" gorm:"index"`
}

type UsageQuery struct {
	CompanyID string `form:"company_id"`
	Start     int64  `form:"start"`
	End       int64  `form:"end"`
	Page      int    `form:"page"`
	Size      int    `form:"size"`
}

// UsageSummary aggregates a tenant's logs over a window.
type UsageSummary struct {
	CompanyID     string  `json:"company_id"`
	TotalRequests int64   `json:"total_requests"`
	SuccessCount  int64   `json:"success_count"`
	FailureCount  int64   `json:"failure_count"`
	TotalTokens   int64   `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
	AvgResponseMs float64 `json:"avg_response_ms"`
}

// EndpointUsage aggregates the ledger per endpoint over a window.
type EndpointUsage struct {
	Endpoint      string  `json:"endpoint"`
	Requests      int64   `json:"requests"`
	SuccessCount  int64   `json:"success_count"`
	AvgResponseMs float64 `json:"avg_response_ms"`
}

// UsageBucket is one point of a per-day series.
type UsageBucket struct {
	Day      string  `json:"day"` // YYYY-MM-DD UTC
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}
