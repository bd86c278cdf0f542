package middleware

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/auth"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/utils/xurl"
	"github.com/gin-gonic/gin"
)

// Context keys set by APIKeyAuth for the analyze handler.
const (
	CtxCompany        = "company"
	CtxAnalyzeRequest = "analyze_request"
	CtxOverage        = "overage"
	CtxCallCost       = "call_cost"
)

const maxImageBytes = 10 << 20

// APIKeyAuth is the tenant admission gate. Checks run in a fixed order and
// each failure short-circuits: content type, key presence, image presence,
// key lookup, revocation, expiry, account status, rate limit. Denials from
// revocation onward are audited with the matching reason.
func APIKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := parseAnalyzeRequest(c)
		if !ok {
			return
		}

		apiKey := extractAPIKey(c, req)
		if apiKey == "" {
			resp.TenantFail(c, http.StatusUnauthorized, "API key required",
				"Provide the key in the x-api-key header, Authorization bearer, or api_key body field")
			return
		}

		if req.Image == "" {
			resp.TenantFail(c, http.StatusBadRequest, "Image required",
				"Provide a base64 or data URL encoded image")
			return
		}

		if !strings.HasPrefix(apiKey, auth.KeyPrefix) {
			resp.TenantFail(c, http.StatusUnauthorized, "Invalid API key", "")
			return
		}
		company, err := op.CompanyGetByKeyHash(auth.HashAPIKey(apiKey), c.Request.Context())
		if err != nil {
			resp.TenantFail(c, http.StatusUnauthorized, "Invalid API key", "")
			return
		}

		now := time.Now().Unix()

		if company.APIKeyRevoked {
			audit(c, company.ID, model.AuditAccessDenied, map[string]any{"reason": model.DenyRevokedKey})
			resp.TenantFail(c, http.StatusUnauthorized, "API key revoked",
				"Contact support to restore access")
			return
		}
		if company.ExpiryDate > 0 && company.ExpiryDate < now {
			audit(c, company.ID, model.AuditAccessDenied, map[string]any{"reason": model.DenyExpiredKey})
			resp.TenantFail(c, http.StatusUnauthorized, "API key expired", "")
			return
		}
		if company.Status != model.CompanyStatusActive {
			audit(c, company.ID, model.AuditAccessDenied, map[string]any{"reason": model.DenyInactiveCompany})
			resp.TenantFail(c, http.StatusForbidden, "Account inactive",
				fmt.Sprintf("Account status is %s", company.Status))
			return
		}

		allowed, limit, err := op.CompanyRateConsume(company.ID, now, c.Request.Context())
		if err != nil {
			resp.TenantFail(c, http.StatusInternalServerError, "Service unavailable", "")
			return
		}
		if !allowed {
			audit(c, company.ID, model.AuditRateLimitExceeded, map[string]any{"limit": limit})
			resp.TenantFail(c, http.StatusTooManyRequests, "Rate limit exceeded",
				fmt.Sprintf("Rate limit of %d requests per minute exceeded", limit))
			return
		}

		// Overage never blocks: beyond the daily limit calls bill at
		// cost_per_extra_call instead.
		overage := company.CurrentUsage >= company.DailyLimit
		cost := 0.0
		if overage {
			cost = company.CostPerExtraCall
		}

		c.Set(CtxCompany, company)
		c.Set(CtxAnalyzeRequest, req)
		c.Set(CtxOverage, overage)
		c.Set(CtxCallCost, cost)
		c.Next()
	}
}

// parseAnalyzeRequest reads the body once, here, so the handler never touches
// it again. Multipart uploads are folded into the same AnalyzeRequest shape
// as JSON bodies.
func parseAnalyzeRequest(c *gin.Context) (model.AnalyzeRequest, bool) {
	var req model.AnalyzeRequest
	contentType := c.ContentType()
	switch {
	case strings.Contains(contentType, "application/json"):
		if err := c.ShouldBindJSON(&req); err != nil {
			resp.TenantFail(c, http.StatusBadRequest, "Invalid JSON body", "")
			return req, false
		}
	case strings.Contains(contentType, "multipart/form-data"):
		file, header, err := c.Request.FormFile("image")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
			if readErr != nil || len(data) > maxImageBytes {
				resp.TenantFail(c, http.StatusBadRequest, "Image too large",
					"Images are limited to 10MB")
				return req, false
			}
			mediaType := header.Header.Get("Content-Type")
			if mediaType == "" {
				mediaType = "image/jpeg"
			}
			req.Image = "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
		}
		req.Crop = c.Request.FormValue("crop")
		req.Location = c.Request.FormValue("location")
		req.Symptoms = c.Request.FormValue("symptoms")
		req.APIKey = c.Request.FormValue("api_key")
	default:
		resp.TenantFail(c, http.StatusBadRequest, "Unsupported content type",
			"Use application/json or multipart/form-data")
		return req, false
	}

	if req.Image != "" && xurl.IsDataURL(req.Image) {
		if xurl.ParseDataURL(req.Image) == nil {
			resp.TenantFail(c, http.StatusBadRequest, "Invalid image encoding", "")
			return req, false
		}
	}
	return req, true
}

func extractAPIKey(c *gin.Context, req model.AnalyzeRequest) string {
	if key := c.Request.Header.Get("x-api-key"); key != "" {
		return key
	}
	if authHeader := c.Request.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return req.APIKey
}

func audit(c *gin.Context, companyID string, action model.AuditAction, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["endpoint"] = c.Request.URL.Path
	op.AuditLogAdd(c.Request.Context(), model.AuditLog{
		CompanyID: companyID,
		Action:    action,
		Details:   details,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
