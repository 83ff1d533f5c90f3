package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pixeldraw/internal/middleware"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// requireOwner 读取 Auth 中间件设置的所有者，缺失时直接返回 401
func requireOwner(c *gin.Context) (string, bool) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return ownerID, true
}
