package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abortWithFailure writes the same failure shape the handlers use.
func abortWithFailure(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"status":  "fail",
		"code":    code,
		"message": message,
	}
	if id, ok := c.Get(CtxRequestID); ok {
		if s, ok := id.(string); ok && s != "" {
			body["requestId"] = s
		}
	}

	c.AbortWithStatusJSON(status, body)
}
