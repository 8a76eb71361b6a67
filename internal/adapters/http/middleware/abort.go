package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/application-intake/internal/adapters/http/dto"
)

// abortWithCode aborts the chain with the standard error envelope.
func abortWithCode(c *gin.Context, code, message string) {
	if c.Writer.Written() {
		c.Abort()
		return
	}

	errResp := dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c))
	c.AbortWithStatusJSON(dto.HTTPStatusFromCode(code), errResp)
}
