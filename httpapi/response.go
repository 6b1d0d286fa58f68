package httpapi

import "github.com/gin-gonic/gin"

const msgInternal = "Internal server error."

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}
