package controllers

import (
	"net/http"
	"time"

	"TodoFlowGo/config"
	"TodoFlowGo/models"
	"TodoFlowGo/services"

	"github.com/gin-gonic/gin"
)

// TaskController 任务控制器
type TaskController struct {
	tasks *services.TaskService
}

func NewTaskController(tasks *services.TaskService) *TaskController {
	return &TaskController{tasks: tasks}
}

// CreateTask 创建任务
func (tc *TaskController) CreateTask(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := tc.tasks.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	invalidateStatsCache(c, actor.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    task,
	})
}

// GetAllTasks 列出任务
func (tc *TaskController) GetAllTasks(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	tasks, err := tc.tasks.List(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTaskByID 按ID查询任务
func (tc *TaskController) GetTaskByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	task, err := tc.tasks.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetTasksByStatus 按状态筛选任务
func (tc *TaskController) GetTasksByStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	tasks, err := tc.tasks.ListByStatus(c.Request.Context(), actor, c.Param("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTasksByCategory 按分类筛选任务
func (tc *TaskController) GetTasksByCategory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	tasks, err := tc.tasks.ListByCategory(c.Request.Context(), actor, c.Param("categoryId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTodayDeadlines 查询今天到期的未结束任务
func (tc *TaskController) GetTodayDeadlines(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	tasks, err := tc.tasks.TodayDeadlines(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// UpdateTask 更新任务字段（不含状态）
func (tc *TaskController) UpdateTask(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := tc.tasks.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task updated successfully",
		"task":    task,
	})
}

// StartTask 开始任务
func (tc *TaskController) StartTask(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	task, err := tc.tasks.Start(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	invalidateStatsCache(c, actor.ID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Task started successfully",
		"task":    task,
	})
}

// FinishTask 完成任务
func (tc *TaskController) FinishTask(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	task, err := tc.tasks.Finish(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	invalidateStatsCache(c, actor.ID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Task marked as completed",
		"task":    task,
	})
}

// GiveUpTask 放弃任务
func (tc *TaskController) GiveUpTask(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	task, err := tc.tasks.GiveUp(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	invalidateStatsCache(c, actor.ID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Task marked as given-up",
		"task":    task,
	})
}

// DeleteTask 删除任务
func (tc *TaskController) DeleteTask(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := tc.tasks.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// PruneTasks 内部维护接口：清理结束任务并回撤统计
func (tc *TaskController) PruneTasks(c *gin.Context) {
	var req models.PruneTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	before := time.Now().UTC()
	if req.Before != nil {
		before = req.Before.UTC()
	}

	pruned, err := tc.tasks.PruneFinished(c.Request.Context(), req.UserID, before)
	if err != nil {
		respondError(c, err)
		return
	}

	config.Logger.Infow("内部接口调用：清理结束任务",
		"userID", req.UserID,
		"pruned", pruned,
		"sourceIP", c.ClientIP(),
	)
	invalidateStatsCache(c, req.UserID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Finished tasks pruned",
		"pruned":  pruned,
	})
}
