package controllers

import (
	"net/http"

	"TodoFlowGo/models"
	"TodoFlowGo/services"

	"github.com/gin-gonic/gin"
)

// AIController AI任务生成控制器
type AIController struct {
	ai *services.AIService
}

func NewAIController(ai *services.AIService) *AIController {
	return &AIController{ai: ai}
}

// GenerateTask 根据自然语言需求生成一条任务
func (ac *AIController) GenerateTask(c *gin.Context) {
	if ac.ai == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI服务未配置"})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req models.GenerateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := ac.ai.GenerateTask(c.Request.Context(), actor, req.UserRequirement)
	if err != nil {
		respondError(c, err)
		return
	}
	invalidateStatsCache(c, actor.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Task generated successfully",
		"task":    task,
	})
}
