package v1

import (
	"github.com/gin-gonic/gin"
)

// Response statuses used in the envelope.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope every non-token endpoint answers with.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, code int, message string, data any) {
	c.JSON(code, APIResponse{Status: StatusSuccess, Message: message, Data: data})
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{Status: StatusError, Message: message})
}

// failWithData is fail plus a payload, used for per-field validation errors.
func failWithData(c *gin.Context, code int, message string, data any) {
	c.JSON(code, APIResponse{Status: StatusError, Message: message, Data: data})
}
