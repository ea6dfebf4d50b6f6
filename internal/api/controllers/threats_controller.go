package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"threat-radar/internal/store"
)

// ThreatsController 威胁情报查询控制器
type ThreatsController struct {
	store *store.ThreatStore
}

// NewThreatsController 创建威胁情报查询控制器实例
func NewThreatsController(threatStore *store.ThreatStore) *ThreatsController {
	return &ThreatsController{store: threatStore}
}

// windowDays 从查询参数解析统计窗口，默认30天
func windowDays(ctx *gin.Context) int {
	days, err := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		days = 30
	}
	return days
}

// GetFamilies 获取威胁家族排名
// 按窗口内活动数排序，并列时按累计攻击总数
func (c *ThreatsController) GetFamilies(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	families, err := c.store.GetTopThreatFamilies(windowDays(ctx), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get threat families",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    families,
	})
}

// GetFamilyEvolution 获取单个威胁家族的按日活动时间序列
func (c *ThreatsController) GetFamilyEvolution(ctx *gin.Context) {
	name := ctx.Param("name")
	if name == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Family name is required",
		})
		return
	}

	points, err := c.store.GetThreatFamilyEvolution(name, windowDays(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get family evolution",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    points,
	})
}

// GetActors 获取威胁组织列表
func (c *ThreatsController) GetActors(ctx *gin.Context) {
	actors, err := c.store.GetThreatActors()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get threat actors",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    actors,
	})
}

// GetActorActivity 获取威胁组织的按日活动统计
func (c *ThreatsController) GetActorActivity(ctx *gin.Context) {
	name := ctx.Param("name")
	if name == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Actor name is required",
		})
		return
	}

	points, err := c.store.GetThreatActorActivity(name, windowDays(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get actor activity",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    points,
	})
}

// GetStats 获取存储层聚合统计
func (c *ThreatsController) GetStats(ctx *gin.Context) {
	stats, err := c.store.GetStats()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get threat stats",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    stats,
	})
}

// GetHistorical 获取按日期和威胁家族分组的历史统计
func (c *ThreatsController) GetHistorical(ctx *gin.Context) {
	stats, err := c.store.GetHistoricalStats(windowDays(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get historical stats",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data":    stats,
	})
}
