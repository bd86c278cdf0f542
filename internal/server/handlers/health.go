package handlers

import (
	"net/http"

	"github.com/bestruirui/sprout/internal/conf"
	"github.com/bestruirui/sprout/internal/server/resp"
	"github.com/bestruirui/sprout/internal/server/router"
	"github.com/gin-gonic/gin"
)

func init() {
	router.NewGroupRouter("/health").
		AddRoute(
			router.NewRoute("", http.MethodGet).
				Handle(health),
		)
}

func health(c *gin.Context) {
	resp.Success(c, gin.H{"status": "ok", "version": conf.Version})
}
