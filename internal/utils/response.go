package utils

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, data gin.H) {
	Respond(c, 200, data)
}

// Respond writes the success envelope with a custom status code.
func Respond(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   msg,
	})
}

// ErrorWithCode adds a machine-readable reason next to the message.
func ErrorWithCode(c *gin.Context, code int, reason, msg string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   msg,
		"code":    reason,
	})
}
