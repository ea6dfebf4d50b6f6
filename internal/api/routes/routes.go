package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"threat-radar/internal/api/controllers"
	"threat-radar/internal/auth"
	"threat-radar/internal/collector"
	"threat-radar/internal/monitoring"
	"threat-radar/internal/redis"
	"threat-radar/internal/store"
)

// Router API路由器，负责注册所有API路由
type Router struct {
	authController      *controllers.AuthController
	collectorController *controllers.CollectorController
	threatsController   *controllers.ThreatsController
	systemController    *controllers.SystemController
	jwtManager          *auth.JWTManager
}

// NewRouter 创建API路由器实例
func NewRouter(
	userManager *auth.UserManager,
	jwtManager *auth.JWTManager,
	collectorSvc *collector.Collector,
	threatStore *store.ThreatStore,
	monitor *monitoring.Monitor,
	redisClient *redis.Client,
) *Router {
	return &Router{
		authController:      controllers.NewAuthController(userManager, jwtManager),
		collectorController: controllers.NewCollectorController(collectorSvc),
		threatsController:   controllers.NewThreatsController(threatStore),
		systemController:    controllers.NewSystemController(monitor, redisClient),
		jwtManager:          jwtManager,
	}
}

// RegisterRoutes 注册所有API路由
func (r *Router) RegisterRoutes(ginRouter *gin.Engine) {
	// 添加CORS中间件
	ginRouter.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	apiGroup := ginRouter.Group("/api")
	{
		// 健康检查和版本信息 - 不需要JWT验证
		apiGroup.GET("/health", r.systemController.Health)
		apiGroup.GET("/version", r.systemController.Version)

		// 认证相关API - 不需要JWT验证
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.GET("/first-run", r.authController.CheckFirstRun)
			authGroup.POST("/login", r.authController.Login)
			authGroup.POST("/logout", r.authController.Logout)
		}

		// 需要JWT验证的API组
		protectedGroup := apiGroup.Group("/")
		protectedGroup.Use(auth.JWTAuthMiddleware(r.jwtManager))
		{
			// 攻击事件队列API
			protectedGroup.GET("/attacks", r.collectorController.DrainAttacks)

			// 采集调度API
			collectorGroup := protectedGroup.Group("/collector")
			{
				collectorGroup.POST("/start", r.collectorController.Start)
				collectorGroup.POST("/stop", r.collectorController.Stop)
				collectorGroup.GET("/status", r.collectorController.Status)
			}

			// 威胁情报查询API
			threatsGroup := protectedGroup.Group("/threats")
			{
				threatsGroup.GET("/families", r.threatsController.GetFamilies)
				threatsGroup.GET("/families/:name/evolution", r.threatsController.GetFamilyEvolution)
				threatsGroup.GET("/actors", r.threatsController.GetActors)
				threatsGroup.GET("/actors/:name/activity", r.threatsController.GetActorActivity)
				threatsGroup.GET("/stats", r.threatsController.GetStats)
				threatsGroup.GET("/historical", r.threatsController.GetHistorical)
			}

			// 系统资源API
			protectedGroup.GET("/system/stats", r.systemController.GetSystemStats)
		}
	}
}
