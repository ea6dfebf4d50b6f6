package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"threat-radar/internal/config"
	"threat-radar/internal/feeds"
	"threat-radar/internal/logging"
	"threat-radar/internal/models"
	"threat-radar/internal/monitoring"
	"threat-radar/internal/queue"
	"threat-radar/internal/redis"
	"threat-radar/internal/store"
)

// Collector 威胁情报采集调度器
// 快速tick保持数据流持续可见，真实外部拉取受速率预算约束；
// 外部源全部失败时回退到合成生成器，消费者永远不会看到空流
type Collector struct {
	cfg       config.CollectorConfig
	sources   []feeds.Source
	synthetic feeds.Source
	queue     *queue.AttackQueue
	store     *store.ThreatStore
	redis     *redis.Client
	logger    *logging.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu            sync.Mutex
	active        bool
	lastRealFetch time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector 创建采集调度器
// 依赖全部显式注入；store和redis可为nil（仅内存模式）
func NewCollector(
	cfg config.CollectorConfig,
	sources []feeds.Source,
	synthetic feeds.Source,
	attackQueue *queue.AttackQueue,
	threatStore *store.ThreatStore,
	redisClient *redis.Client,
	logger *logging.Logger,
) *Collector {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	if synthetic == nil {
		synthetic = feeds.NewSyntheticSource()
	}
	return &Collector{
		cfg:       cfg,
		sources:   sources,
		synthetic: synthetic,
		queue:     attackQueue,
		store:     threatStore,
		redis:     redisClient,
		logger:    logger,
	}
}

// Start 启动采集，Idle→Active
// 已处于Active时为no-op；立即执行一次完整拉取，随后开始周期tick
func (c *Collector) Start() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.logger.Info("Starting threat intelligence collection")

	// 启动时立即执行一次真实拉取
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.realFetchCycle(c.ctx)
	}()

	tick := c.cfg.TickInterval
	if tick <= 0 {
		tick = 8
	}

	c.cron = cron.New()
	entryID, err := c.cron.AddFunc(fmt.Sprintf("@every %ds", tick), c.Tick)
	if err != nil {
		c.logger.Error("Failed to schedule collection tick: %v", err)
		return
	}
	c.entryID = entryID
	c.cron.Start()
}

// Stop 停止采集，Active→Idle
// 取消后续所有tick；进行中的拉取允许完成，其结果被丢弃
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.cron != nil {
		c.cron.Stop()
	}
	c.wg.Wait()

	c.logger.Info("Stopped threat intelligence collection")
}

// IsActive 采集是否处于Active状态
func (c *Collector) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Drain 取出当前队列全部内容
func (c *Collector) Drain() []models.Attack {
	attacks := c.queue.Drain()
	monitoring.RecordDrained(len(attacks))
	monitoring.SetQueueDepth(0)
	return attacks
}

// Tick 一次调度周期
// 距上次真实拉取超过速率预算时走外部源，否则用合成数据填充
func (c *Collector) Tick() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	minInterval := time.Duration(c.cfg.MinFetchInterval) * time.Second
	due := time.Since(c.lastRealFetch) > minInterval
	c.mu.Unlock()

	if due {
		c.realFetchCycle(ctx)
		return
	}

	// 真实拉取窗口未到，用合成数据保持数据流可见
	batch := c.synthetic.Fetch(ctx)
	monitoring.RecordFetch(c.synthetic.Name(), len(batch))
	c.deliver(batch)
}

// realFetchCycle 完整的外部拉取周期
// 所有适配器并发执行，等待全部结束后合并；
// 合并结果为空时用合成生成器兜底
func (c *Collector) realFetchCycle(ctx context.Context) {
	c.mu.Lock()
	c.lastRealFetch = time.Now()
	c.mu.Unlock()

	monitoring.RecordRealFetchCycle()
	c.logger.Info("Fetching threat data from %d external sources", len(c.sources))

	results := make([][]models.Attack, len(c.sources))
	var fetchWg sync.WaitGroup
	for i, source := range c.sources {
		fetchWg.Add(1)
		go func(idx int, src feeds.Source) {
			defer fetchWg.Done()
			batch := src.Fetch(ctx)
			monitoring.RecordFetch(src.Name(), len(batch))
			results[idx] = batch
		}(i, source)
	}
	fetchWg.Wait()

	// 保持各适配器内部顺序的拼接合并
	var merged []models.Attack
	for _, batch := range results {
		merged = append(merged, batch...)
	}

	if len(merged) == 0 {
		c.logger.Warn("All external sources returned empty, falling back to synthetic data")
		monitoring.RecordSyntheticFallback()
		merged = c.synthetic.Fetch(ctx)
		monitoring.RecordFetch(c.synthetic.Name(), len(merged))
	}

	c.deliver(merged)
}

// deliver 批次入队、持久化并发布
// 持久化和发布失败都不阻塞队列更新
func (c *Collector) deliver(batch []models.Attack) {
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if !active {
		// Stop之后完成的在途拉取，结果丢弃
		return
	}

	c.queue.Push(batch)
	monitoring.SetQueueDepth(c.queue.Len())

	if c.store != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.store.StoreAttackBatch(batch)
		}()
	}

	if c.redis != nil {
		if err := c.redis.PublishAttacks(batch); err != nil {
			c.logger.Error("Failed to publish attack batch to redis: %v", err)
		}
	}
}
