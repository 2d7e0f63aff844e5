package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"TodoFlowGo/config"
	"TodoFlowGo/models"
	"TodoFlowGo/services"

	"github.com/gin-gonic/gin"
)

// 统计响应在Redis中的缓存时长
const statsCacheTTL = 60 * time.Second

// StatController 统计控制器
type StatController struct {
	stats *services.StatService
}

func NewStatController(stats *services.StatService) *StatController {
	return &StatController{stats: stats}
}

// GetStats 查询当前用户的统计总账，优先走Redis缓存
func (sc *StatController) GetStats(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if config.RedisClient != nil {
		if cached, err := config.RedisClient.Get(c.Request.Context(), statsCacheKey(actor.ID)).Result(); err == nil {
			var resp models.StatResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	resp, err := sc.stats.Get(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	if config.RedisClient != nil {
		if payload, err := json.Marshal(resp); err == nil {
			if err := config.RedisClient.Set(c.Request.Context(), statsCacheKey(actor.ID), payload, statsCacheTTL).Err(); err != nil {
				config.Logger.Warnw("统计缓存写入失败", "error", err, "userID", actor.ID)
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RebuildStats 从任务表全量重建当前用户的统计总账
func (sc *StatController) RebuildStats(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := sc.stats.Rebuild(c.Request.Context(), actor.ID); err != nil {
		respondError(c, err)
		return
	}
	invalidateStatsCache(c, actor.ID)

	resp, err := sc.stats.Get(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Stats rebuilt successfully",
		"stats":   resp,
	})
}

func statsCacheKey(userID string) string {
	return fmt.Sprintf("stats:%s", userID)
}

// invalidateStatsCache 统计相关的写操作之后失效缓存
func invalidateStatsCache(c *gin.Context, userID string) {
	if config.RedisClient == nil {
		return
	}
	if err := config.RedisClient.Del(c.Request.Context(), statsCacheKey(userID)).Err(); err != nil {
		config.Logger.Warnw("统计缓存失效失败", "error", err, "userID", userID)
	}
}
