package handlers

import (
	"net/http"
	"strconv"

	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/middleware"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/server/router"
	"github.com/gin-gonic/gin"
)

func init() {
	router.NewGroupRouter("/api/analysis").
		Use(middleware.Auth()).
		AddRoute(
			router.NewRoute("", http.MethodGet).
				Handle(listAnalysis),
		)
}

func listAnalysis(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	records, err := op.AnalysisRecordList(c.Request.Context(), c.Query("company_id"), page, size)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, records)
}
