package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"threat-radar/internal/api/routes"
	"threat-radar/internal/auth"
	"threat-radar/internal/collector"
	"threat-radar/internal/config"
	"threat-radar/internal/feeds"
	"threat-radar/internal/geo"
	"threat-radar/internal/logging"
	"threat-radar/internal/monitoring"
	"threat-radar/internal/queue"
	"threat-radar/internal/redis"
	"threat-radar/internal/store"
)

func main() {
	// 解析命令行参数
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 按配置重建默认日志记录器
	logging.DefaultLogger = logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
	})

	// 初始化存储层
	threatStore, err := store.NewThreatStore(&cfg.Storage, logging.DefaultLogger)
	if err != nil {
		log.Fatalf("Failed to initialize threat store: %v", err)
	}
	defer threatStore.Close()
	logging.DefaultLogger.Info("Threat store initialized (%s)", cfg.Storage.Type)

	// 初始化Redis客户端（可选，失败时降级为无实时发布）
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			logging.DefaultLogger.Warn("Redis unavailable, live publishing disabled: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			logging.DefaultLogger.Info("Redis connected, publishing to channel %s", cfg.Redis.Channel)
		}
	}

	// 初始化地理解析器，mmdb缺失时回退到内置前缀表
	resolver := geo.NewResolver(cfg.Feeds.GeoIPDatabase)
	defer resolver.Close()

	// 按配置组装外部数据源
	var sources []feeds.Source
	if cfg.Feeds.OTX.Enabled {
		sources = append(sources, feeds.NewOTXSource(cfg.Feeds.OTX, resolver, logging.DefaultLogger))
	}
	if cfg.Feeds.AbuseIPDB.Enabled {
		sources = append(sources, feeds.NewAbuseIPDBSource(cfg.Feeds.AbuseIPDB, logging.DefaultLogger))
	}
	if cfg.Feeds.MISP.Enabled {
		sources = append(sources, feeds.NewMISPSource(cfg.Feeds.MISP, threatStore, logging.DefaultLogger))
	}
	logging.DefaultLogger.Info("Configured %d external threat feeds", len(sources))

	// 初始化采集调度器
	attackQueue := queue.NewAttackQueue(cfg.Collector.QueueCapacity)
	collectorSvc := collector.NewCollector(
		cfg.Collector,
		sources,
		feeds.NewSyntheticSource(),
		attackQueue,
		threatStore,
		redisClient,
		logging.DefaultLogger,
	)
	collectorSvc.Start()
	defer collectorSvc.Stop()

	// 启动监控
	monitor := monitoring.NewMonitor(monitoring.Config{
		Enabled:           cfg.Monitoring.Enabled,
		PrometheusAddress: cfg.Monitoring.PrometheusAddress,
	}, logging.DefaultLogger)
	monitor.Start()
	defer monitor.Stop()

	// 初始化认证模块
	userManager := auth.NewUserManager(cfg.Auth.DataDir)
	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		SecretKey:  cfg.Auth.SecretKey,
		ExpireTime: cfg.Auth.ExpireTime,
	})

	// 初始化Gin路由并注册API
	ginRouter := gin.Default()
	apiRouter := routes.NewRouter(userManager, jwtManager, collectorSvc, threatStore, monitor, redisClient)
	apiRouter.RegisterRoutes(ginRouter)

	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	server := &http.Server{
		Addr:    apiAddr,
		Handler: ginRouter,
	}

	go func() {
		logging.DefaultLogger.Info("API server starting on %s", apiAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start API server: %v", err)
		}
	}()

	// 等待退出信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.DefaultLogger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.DefaultLogger.Error("Server shutdown error: %v", err)
	}
}
