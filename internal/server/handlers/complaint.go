package handlers

import (
	"net/http"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/middleware"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/server/router"
	"github.com/gin-gonic/gin"
)

func init() {
	// tenants file complaints themselves, so create skips admin auth
	router.NewGroupRouter("/api/complaints").
		Use(middleware.RequireJSON()).
		AddRoute(
			router.NewRoute("", http.MethodPost).
				Handle(createComplaint),
		)

	router.NewGroupRouter("/api/complaints").
		Use(middleware.Auth()).
		Use(middleware.RequireJSON()).
		AddRoute(
			router.NewRoute("", http.MethodGet).
				Handle(listComplaint),
		).
		AddRoute(
			router.NewRoute("/update", http.MethodPost).
				Handle(updateComplaint),
		)
}

func createComplaint(c *gin.Context) {
	var req model.ComplaintCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.ErrInvalidJSON)
		return
	}
	complaint := model.Complaint{
		CompanyID:   req.CompanyID,
		IssueType:   req.IssueType,
		Description: req.Description,
	}
	if err := op.ComplaintCreate(&complaint, c.Request.Context()); err != nil {
		resp.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	resp.Success(c, complaint)
}

func listComplaint(c *gin.Context) {
	complaints, err := op.ComplaintList(c.Request.Context(),
		c.Query("company_id"), model.ComplaintStatus(c.Query("status")))
	if err != nil {
		resp.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	resp.Success(c, complaints)
}

func updateComplaint(c *gin.Context) {
	var req model.ComplaintUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.ErrInvalidJSON)
		return
	}
	complaint, err := op.ComplaintUpdate(&req, c.Request.Context())
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, complaint)
}
