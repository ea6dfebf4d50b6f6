package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"threat-radar/internal/logging"
)

// Metrics 监控指标
var (
	feedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatradar_feed_fetches_total",
			Help: "Total number of feed fetch invocations",
		},
		[]string{"source"},
	)

	attacksIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatradar_attacks_ingested_total",
			Help: "Total number of attacks ingested",
		},
		[]string{"source"},
	)

	realFetchCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "threatradar_real_fetch_cycles_total",
			Help: "Total number of rate-budgeted external fetch cycles",
		},
	)

	syntheticFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "threatradar_synthetic_fallbacks_total",
			Help: "Total number of synthetic fallback generations",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatradar_queue_depth",
			Help: "Current number of attacks waiting in the queue",
		},
	)

	drainedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "threatradar_attacks_drained_total",
			Help: "Total number of attacks delivered to consumers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		feedFetchesTotal,
		attacksIngestedTotal,
		realFetchCyclesTotal,
		syntheticFallbacksTotal,
		queueDepth,
		drainedTotal,
	)
}

// RecordFetch 记录一次数据源拉取及其产出数量
func RecordFetch(source string, count int) {
	feedFetchesTotal.WithLabelValues(source).Inc()
	attacksIngestedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordRealFetchCycle 记录一次真实外部拉取周期
func RecordRealFetchCycle() {
	realFetchCyclesTotal.Inc()
}

// RecordSyntheticFallback 记录一次合成兜底
func RecordSyntheticFallback() {
	syntheticFallbacksTotal.Inc()
}

// SetQueueDepth 更新队列深度
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// RecordDrained 记录消费者取走的攻击数
func RecordDrained(count int) {
	drainedTotal.Add(float64(count))
}

// SystemStats 系统资源快照
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
}

// Monitor 监控管理器
type Monitor struct {
	server *http.Server
	logger *logging.Logger
}

// Config 监控配置
type Config struct {
	Enabled           bool
	PrometheusAddress string
}

// NewMonitor 创建监控管理器
func NewMonitor(config Config, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.DefaultLogger
	}

	m := &Monitor{logger: logger}
	if config.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		m.server = &http.Server{
			Addr:    config.PrometheusAddress,
			Handler: mux,
		}
	}
	return m
}

// Start 启动Prometheus指标服务
func (m *Monitor) Start() {
	if m.server == nil {
		return
	}
	go func() {
		m.logger.Info("Prometheus metrics listening on %s", m.server.Addr)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server error: %v", err)
		}
	}()
}

// Stop 停止指标服务
func (m *Monitor) Stop() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Error("Metrics server shutdown error: %v", err)
	}
}

// GetSystemStats 采集系统资源快照
func (m *Monitor) GetSystemStats() SystemStats {
	stats := SystemStats{
		Goroutines: runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	if uptime, err := host.Uptime(); err == nil {
		stats.UptimeSeconds = uptime
	}

	return stats
}
