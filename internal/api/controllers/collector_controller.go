package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threat-radar/internal/collector"
	"threat-radar/internal/models"
)

// CollectorController 采集调度控制器
type CollectorController struct {
	collector *collector.Collector
}

// NewCollectorController 创建采集调度控制器实例
func NewCollectorController(c *collector.Collector) *CollectorController {
	return &CollectorController{collector: c}
}

// Start 启动采集
func (c *CollectorController) Start(ctx *gin.Context) {
	c.collector.Start()
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "Collection started",
		"data": gin.H{
			"active": c.collector.IsActive(),
		},
	})
}

// Stop 停止采集
func (c *CollectorController) Stop(ctx *gin.Context) {
	c.collector.Stop()
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "Collection stopped",
		"data": gin.H{
			"active": c.collector.IsActive(),
		},
	})
}

// Status 查询采集状态
func (c *CollectorController) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"active": c.collector.IsActive(),
		},
	})
}

// DrainAttacks 取走队列中全部待消费的攻击事件
// 每条记录只会被消费一次
func (c *CollectorController) DrainAttacks(ctx *gin.Context) {
	attacks := c.collector.Drain()
	if attacks == nil {
		attacks = []models.Attack{}
	}
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"attacks": attacks,
			"count":   len(attacks),
		},
	})
}
