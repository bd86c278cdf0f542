package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bestruirui/sprout/internal/model"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/middleware"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/server/router"
	"github.com/gin-gonic/gin"
	"github.com/tmaxmax/go-sse"
)

func init() {
	router.NewGroupRouter("/api/usage").
		Use(middleware.Auth()).
		AddRoute(
			router.NewRoute("", http.MethodGet).
				Handle(usageOverview),
		).
		AddRoute(
			router.NewRoute("/recent", http.MethodGet).
				Handle(recentUsage),
		).
		AddRoute(
			router.NewRoute("/company/:id", http.MethodGet).
				Handle(companyUsage),
		).
		AddRoute(
			router.NewRoute("/stream-token", http.MethodGet).
				Handle(getUsageStreamToken),
		)

	// the stream authenticates with a one-off token instead of the JWT,
	// because EventSource cannot set headers
	router.NewGroupRouter("/api/usage").
		AddRoute(
			router.NewRoute("/stream", http.MethodGet).
				Handle(streamUsage),
		)
}

// periodRange maps 1d/7d/30d/90d to a [start, end] unix range, defaulting to
// 7d.
func periodRange(c *gin.Context) (int64, int64) {
	days := 7
	switch c.DefaultQuery("period", "7d") {
	case "1d":
		days = 1
	case "7d":
		days = 7
	case "30d":
		days = 30
	case "90d":
		days = 90
	}
	end := time.Now().Unix()
	return end - int64(days)*86400, end
}

func usageOverview(c *gin.Context) {
	start, end := periodRange(c)
	ctx := c.Request.Context()

	summary, err := op.UsageSummary(ctx, "", start, end)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	daily, err := op.UsageDaily(ctx, "", start, end)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	companies, err := op.UsageByCompany(ctx, start, end)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	endpoints, err := op.UsageByEndpoint(ctx, start, end)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, gin.H{
		"summary":   summary,
		"daily":     daily,
		"companies": companies,
		"endpoints": endpoints,
	})
}

func recentUsage(c *gin.Context) {
	var query model.UsageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.ErrInvalidParam)
		return
	}
	entries, err := op.UsageLogList(c.Request.Context(), query)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, entries)
}

func companyUsage(c *gin.Context) {
	id := c.Param("id")
	if _, err := op.CompanyGet(id, c.Request.Context()); err != nil {
		resp.Error(c, http.StatusNotFound, resp.ErrResourceNotFound)
		return
	}
	start, end := periodRange(c)

	summary, err := op.UsageSummary(c.Request.Context(), id, start, end)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	daily, err := op.UsageDaily(c.Request.Context(), id, start, end)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, gin.H{
		"summary": summary,
		"daily":   daily,
	})
}

func getUsageStreamToken(c *gin.Context) {
	token, err := op.UsageLogStreamTokenCreate()
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, gin.H{"token": token})
}

func streamUsage(c *gin.Context) {
	token := c.Query("token")
	if token == "" || !op.UsageLogStreamTokenVerify(token) {
		resp.Error(c, http.StatusUnauthorized, "invalid stream token")
		return
	}
	op.UsageLogStreamTokenRevoke(token)

	session, err := sse.Upgrade(c.Writer, c.Request)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, resp.ErrInternalServer)
		return
	}

	entryChan := op.UsageLogSubscribe()
	defer op.UsageLogUnsubscribe(entryChan)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entryChan:
			if !ok {
				return
			}
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			msg := &sse.Message{}
			msg.AppendData(string(data))
			if err := session.Send(msg); err != nil {
				return
			}
			if err := session.Flush(); err != nil {
				return
			}
		}
	}
}
