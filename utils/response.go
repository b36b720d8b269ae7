package utils

import "github.com/gin-gonic/gin"

// JSONSuccess writes {status: success, data}.
func JSONSuccess(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"status": "success", "data": data})
}

// JSONError writes {status: error, message}. The intake client surfaces
// message to staff verbatim.
func JSONError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "error", "message": message})
}
