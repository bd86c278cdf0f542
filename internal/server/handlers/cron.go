package handlers

import (
	"net/http"
	"time"

	"github.com/bestruirui/sprout/internal/conf"
	"github.com/bestruirui/sprout/internal/helper"
	"github.com/bestruirui/sprout/internal/op"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/server/router"
	"github.com/bestruirui/sprout/internal/utils/log"
	"github.com/gin-gonic/gin"
)

func init() {
	router.NewGroupRouter("/api/cron").
		AddRoute(
			router.NewRoute("/reset-daily-usage", http.MethodPost).
				Handle(resetDailyUsage),
		)
}

// resetDailyUsage is called by the external scheduler at UTC midnight. It is
// idempotent, so a retried trigger is harmless.
func resetDailyUsage(c *gin.Context) {
	secret := conf.AppConfig.Cron.Secret
	if secret == "" || c.GetHeader("x-cron-secret") != secret {
		resp.Error(c, http.StatusUnauthorized, resp.ErrUnauthorized)
		return
	}
	count, err := op.CompanyResetAllUsage(c.Request.Context())
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	log.Infof("daily usage reset via cron, %d companies", count)
	resp.Success(c, gin.H{
		"companies_reset": count,
		"next_reset":      helper.NextMidnightUTC(time.Now()),
	})
}
