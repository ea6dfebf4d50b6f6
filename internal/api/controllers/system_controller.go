package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"threat-radar/internal/monitoring"
	"threat-radar/internal/redis"
)

// SystemController 系统控制器
type SystemController struct {
	monitor     *monitoring.Monitor
	redisClient *redis.Client
}

// NewSystemController 创建系统控制器实例
func NewSystemController(monitor *monitoring.Monitor, redisClient *redis.Client) *SystemController {
	return &SystemController{
		monitor:     monitor,
		redisClient: redisClient,
	}
}

// Health 健康检查接口
func (c *SystemController) Health(ctx *gin.Context) {
	status := "running"
	redisStatus := "disabled"

	if c.redisClient != nil {
		if err := c.redisClient.GetRawClient().Ping(ctx.Request.Context()).Err(); err != nil {
			redisStatus = "disconnected"
			status = "degraded"
		} else {
			redisStatus = "connected"
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"status":       status,
			"service":      "threat-radar",
			"redis_status": redisStatus,
			"timestamp":    time.Now().Unix(),
		},
	})
}

// Version 版本信息接口
func (c *SystemController) Version(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"version": "1.0.0",
			"name":    "threat-radar",
		},
	})
}

// GetSystemStats 获取系统资源统计
func (c *SystemController) GetSystemStats(ctx *gin.Context) {
	stats := c.monitor.GetSystemStats()
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    stats,
	})
}
