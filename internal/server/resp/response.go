package resp

import (
	"net/http"

	"github.com/bestruirui/sprout/internal/conf"
	"github.com/gin-gonic/gin"
)

type ResponseStruct struct {
	Code    int         `json:"code" example:"200"`
	Message string      `json:"message" example:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, ResponseStruct{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, err string) {
	c.AbortWithStatusJSON(code, ResponseStruct{
		Code:    code,
		Message: err,
	})
}

// TenantError is the flat error shape of the metered analyze endpoint. Tenant
// integrations predate the admin envelope and parse this form.
type TenantError struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Branding string `json:"branding"`
}

func TenantFail(c *gin.Context, code int, err, message string) {
	c.AbortWithStatusJSON(code, TenantError{
		Error:    err,
		Message:  message,
		Branding: conf.Branding,
	})
}
