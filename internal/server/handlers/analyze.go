package handlers

import (
	"net/http"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/relay"
	"github.com/bestruirui/sprout/internal/server/middleware"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/server/router"
	"github.com/gin-gonic/gin"
)

func init() {
	router.NewGroupRouter("/api").
		AddRoute(
			router.NewRoute("/analyze", http.MethodPost).
				Use(middleware.APIKeyAuth()).
				Handle(analyze),
		)
}

func analyze(c *gin.Context) {
	company := c.MustGet(middleware.CtxCompany).(model.Company)
	req := c.MustGet(middleware.CtxAnalyzeRequest).(model.AnalyzeRequest)

	response, err := relay.Analyze(c.Request.Context(), company, req, relay.Meta{
		Endpoint:  c.Request.URL.Path,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Overage:   c.GetBool(middleware.CtxOverage),
		Cost:      c.GetFloat64(middleware.CtxCallCost),
	})
	if err != nil {
		// diagnostic detail only, never the tenant's upstream credential
		resp.TenantFail(c, http.StatusInternalServerError, "Analysis failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, response)
}
