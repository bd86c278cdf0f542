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
	router.NewGroupRouter("/api/settings").
		Use(middleware.Auth()).
		Use(middleware.RequireJSON()).
		AddRoute(
			router.NewRoute("", http.MethodGet).
				Handle(listSetting),
		).
		AddRoute(
			router.NewRoute("", http.MethodPost).
				Handle(updateSetting),
		)
}

func listSetting(c *gin.Context) {
	settings, err := op.SettingList(c.Request.Context())
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Success(c, settings)
}

func updateSetting(c *gin.Context) {
	var settings []model.Setting
	if err := c.ShouldBindJSON(&settings); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.ErrInvalidJSON)
		return
	}
	for _, setting := range settings {
		if err := op.SettingSetString(setting.Key, setting.Value); err != nil {
			resp.Error(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	resp.Success(c, nil)
}
