package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"threat-radar/internal/models"
)

func makeAttacks(prefix string, count int) []models.Attack {
	attacks := make([]models.Attack, count)
	for i := 0; i < count; i++ {
		attacks[i] = models.Attack{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Timestamp: time.Now(),
		}
	}
	return attacks
}

func TestPushAndDrain(t *testing.T) {
	q := NewAttackQueue(100)

	// 推入保持顺序
	q.Push(makeAttacks("a", 3))
	q.Push(makeAttacks("b", 2))
	assert.Equal(t, 5, q.Len())

	attacks := q.Drain()
	assert.Len(t, attacks, 5)
	assert.Equal(t, "a-0", attacks[0].ID)
	assert.Equal(t, "b-1", attacks[4].ID)

	// 取出后队列为空
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestDrainExactlyOnce(t *testing.T) {
	q := NewAttackQueue(100)
	q.Push(makeAttacks("x", 10))

	// 同一条记录只能被消费一次
	first := q.Drain()
	second := q.Drain()
	assert.Len(t, first, 10)
	assert.Empty(t, second)
}

func TestOverflowKeepsNewest(t *testing.T) {
	q := NewAttackQueue(10)

	// 超出容量后丢弃较旧的一半
	q.Push(makeAttacks("old", 10))
	q.Push(makeAttacks("new", 1))

	attacks := q.Drain()
	assert.LessOrEqual(t, len(attacks), 10)

	// 最新的记录必须保留
	last := attacks[len(attacks)-1]
	assert.Equal(t, "new-0", last.ID)

	// 最旧的记录已被丢弃
	for _, a := range attacks {
		assert.NotEqual(t, "old-0", a.ID)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	q := NewAttackQueue(50)

	for i := 0; i < 20; i++ {
		q.Push(makeAttacks(fmt.Sprintf("batch%d", i), 10))
		assert.LessOrEqual(t, q.Len(), 50)
	}
}

func TestConcurrentPushDrain(t *testing.T) {
	q := NewAttackQueue(500)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(makeAttacks(fmt.Sprintf("c%d", n), 10))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, q.Len())
	assert.Len(t, q.Drain(), 100)
}

func TestDefaultCapacity(t *testing.T) {
	q := NewAttackQueue(0)
	assert.Equal(t, DefaultCapacity, q.Capacity())
}
