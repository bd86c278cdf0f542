package handlers

import (
	"net/http"
	"time"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/auth"
	"github.com/bestruirui/sprout/internal/server/middleware"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/server/router"
	"github.com/gin-gonic/gin"
)

func init() {
	router.NewGroupRouter("/api/companies").
		Use(middleware.Auth()).
		Use(middleware.RequireJSON()).
		AddRoute(
			router.NewRoute("", http.MethodPost).
				Handle(createCompany),
		).
		AddRoute(
			router.NewRoute("", http.MethodGet).
				Handle(listCompany),
		).
		AddRoute(
			router.NewRoute("/update", http.MethodPost).
				Handle(updateCompany),
		).
		AddRoute(
			router.NewRoute("/:id", http.MethodDelete).
				Handle(deleteCompany),
		).
		AddRoute(
			router.NewRoute("/:id/revoke", http.MethodPost).
				Handle(revokeCompanyKey),
		).
		AddRoute(
			router.NewRoute("/:id/rotate-key", http.MethodPost).
				Handle(rotateCompanyKey),
		).
		AddRoute(
			router.NewRoute("/:id/reset-usage", http.MethodPost).
				Handle(resetCompanyUsage),
		)
}

func createCompany(c *gin.Context) {
	var req model.CompanyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.ErrInvalidJSON)
		return
	}

	company := model.Company{
		Name:               req.Name,
		Email:              req.Email,
		GeminiKey:          req.GeminiKey,
		DailyLimit:         100,
		RateLimitPerMinute: 60,
		CostPerExtraCall:   0.1,
		Status:             model.CompanyStatusActive,
		ResetDate:          time.Now().Unix(),
		ExpiryDate:         req.ExpiryDate,
	}
	if req.DailyLimit > 0 {
		company.DailyLimit = req.DailyLimit
	}
	if req.RateLimitPerMinute > 0 {
		company.RateLimitPerMinute = req.RateLimitPerMinute
	}
	if req.CostPerExtraCall > 0 {
		company.CostPerExtraCall = req.CostPerExtraCall
	}

	apiKey := auth.GenerateAPIKey()
	if apiKey == "" {
		resp.Error(c, http.StatusInternalServerError, resp.ErrInternalServer)
		return
	}
	company.APIKeyHash = auth.HashAPIKey(apiKey)

	if err := op.CompanyCreate(&company, c.Request.Context()); err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	// the raw key is shown here and never again
	resp.Success(c, model.CompanyWithKey{Company: company, APIKey: apiKey})
}

func listCompany(c *gin.Context) {
	companies, err := op.CompanyList(c.Request.Context())
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, companies)
}

func updateCompany(c *gin.Context) {
	var req model.CompanyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.ErrInvalidJSON)
		return
	}
	company, err := op.CompanyUpdate(&req, c.Request.Context())
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, company)
}

func deleteCompany(c *gin.Context) {
	if err := op.CompanyDelete(c.Param("id"), c.Request.Context()); err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, nil)
}

func revokeCompanyKey(c *gin.Context) {
	id := c.Param("id")
	if err := op.CompanyRevokeKey(id, c.Request.Context()); err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	op.AuditLogAdd(c.Request.Context(), model.AuditLog{
		CompanyID: id,
		Action:    model.AuditKeyRevoked,
		Details:   map[string]any{"by": "admin"},
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	resp.Success(c, nil)
}

func rotateCompanyKey(c *gin.Context) {
	id := c.Param("id")

	apiKey := auth.GenerateAPIKey()
	if apiKey == "" {
		resp.Error(c, http.StatusInternalServerError, resp.ErrInternalServer)
		return
	}
	if err := op.CompanyReplaceKeyHash(id, auth.HashAPIKey(apiKey), c.Request.Context()); err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	op.AuditLogAdd(c.Request.Context(), model.AuditLog{
		CompanyID: id,
		Action:    model.AuditKeyRotated,
		Details:   map[string]any{"by": "admin"},
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})

	company, err := op.CompanyGet(id, c.Request.Context())
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, model.CompanyWithKey{Company: company, APIKey: apiKey})
}

func resetCompanyUsage(c *gin.Context) {
	if err := op.CompanyResetUsage(c.Param("id"), c.Request.Context()); err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, nil)
}
