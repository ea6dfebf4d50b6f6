package collector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"threat-radar/internal/config"
	"threat-radar/internal/feeds"
	"threat-radar/internal/models"
	"threat-radar/internal/queue"
)

// stubSource 可计数的测试数据源
type stubSource struct {
	mu    sync.Mutex
	name  string
	calls int
	batch []models.Attack
}

func (s *stubSource) Name() string {
	return s.name
}

func (s *stubSource) Fetch(ctx context.Context) []models.Attack {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.batch
}

func (s *stubSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func stubBatch(prefix string, count int) []models.Attack {
	batch := make([]models.Attack, count)
	for i := range batch {
		batch[i] = models.Attack{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Timestamp: time.Now(),
		}
	}
	return batch
}

// testConfig tick间隔拉长到测试期间cron不会触发
func testConfig() config.CollectorConfig {
	return config.CollectorConfig{
		TickInterval:     3600,
		MinFetchInterval: 3600,
		QueueCapacity:    500,
	}
}

func TestStartStop(t *testing.T) {
	network := &stubSource{name: "network", batch: stubBatch("n", 2)}
	synthetic := &stubSource{name: "synthetic", batch: stubBatch("s", 8)}
	q := queue.NewAttackQueue(500)

	c := NewCollector(testConfig(), []feeds.Source{network}, synthetic, q, nil, nil, nil)

	assert.False(t, c.IsActive())
	c.Start()
	assert.True(t, c.IsActive())

	// 启动时立即执行一次真实拉取
	assert.Eventually(t, func() bool {
		return network.fetchCount() == 1 && q.Len() > 0
	}, 2*time.Second, 10*time.Millisecond)

	// 重复Start为no-op
	c.Start()
	assert.True(t, c.IsActive())

	c.Stop()
	assert.False(t, c.IsActive())

	// 重复Stop为no-op
	c.Stop()
	assert.False(t, c.IsActive())
}

func TestTickRateLimiting(t *testing.T) {
	network := &stubSource{name: "network", batch: stubBatch("n", 2)}
	synthetic := &stubSource{name: "synthetic", batch: stubBatch("s", 8)}
	q := queue.NewAttackQueue(500)

	c := NewCollector(testConfig(), []feeds.Source{network}, synthetic, q, nil, nil, nil)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return network.fetchCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 窗口内重复tick不再触发真实拉取，只走合成数据
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	assert.Equal(t, 1, network.fetchCount())
	assert.GreaterOrEqual(t, synthetic.fetchCount(), 5)
}

func TestTickTriggersRealFetchAfterWindow(t *testing.T) {
	network := &stubSource{name: "network", batch: stubBatch("n", 2)}
	synthetic := &stubSource{name: "synthetic", batch: stubBatch("s", 8)}
	q := queue.NewAttackQueue(500)

	cfg := testConfig()
	cfg.MinFetchInterval = 0 // 每个tick都超过窗口
	c := NewCollector(cfg, []feeds.Source{network}, synthetic, q, nil, nil, nil)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return network.fetchCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	before := network.fetchCount()
	time.Sleep(5 * time.Millisecond)
	c.Tick()
	assert.Greater(t, network.fetchCount(), before)
}

func TestSyntheticFallbackOnEmptySources(t *testing.T) {
	// 所有外部源返回空 → 合成兜底
	network := &stubSource{name: "network", batch: nil}
	synthetic := &stubSource{name: "synthetic", batch: stubBatch("s", 8)}
	q := queue.NewAttackQueue(500)

	c := NewCollector(testConfig(), []feeds.Source{network}, synthetic, q, nil, nil, nil)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return synthetic.fetchCount() >= 1 && q.Len() >= 8
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDrainExactlyOnce(t *testing.T) {
	network := &stubSource{name: "network", batch: stubBatch("n", 3)}
	synthetic := &stubSource{name: "synthetic", batch: stubBatch("s", 8)}
	q := queue.NewAttackQueue(500)

	c := NewCollector(testConfig(), []feeds.Source{network}, synthetic, q, nil, nil, nil)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return q.Len() == 3
	}, 2*time.Second, 10*time.Millisecond)

	first := c.Drain()
	assert.Len(t, first, 3)
	assert.Empty(t, c.Drain())
}

func TestNoSourcesFallsBackToSynthetic(t *testing.T) {
	synthetic := &stubSource{name: "synthetic", batch: stubBatch("s", 10)}
	q := queue.NewAttackQueue(500)

	// 无外部数据源时真实周期直接走合成兜底
	c := NewCollector(testConfig(), nil, synthetic, q, nil, nil, nil)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return q.Len() == 10
	}, 2*time.Second, 10*time.Millisecond)
}
