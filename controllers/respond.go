package controllers

import (
	"errors"
	"net/http"

	"TodoFlowGo/config"
	"TodoFlowGo/services"

	"github.com/gin-gonic/gin"
)

// respondError 将业务错误映射为HTTP响应
func respondError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPermission):
		c.JSON(http.StatusForbidden, gin.H{"error": "没有权限访问该资源"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "资源不存在"})
	default:
		config.Logger.Errorw("请求处理失败",
			"error", err,
			"path", c.Request.URL.Path,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}

// currentActor 从gin.Context取出认证中间件写入的操作者
func currentActor(c *gin.Context) (services.Actor, bool) {
	uid, exists := c.Get("uid")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未获取到用户ID"})
		return services.Actor{}, false
	}
	return services.Actor{ID: uid.(string), Role: c.GetString("role")}, true
}
