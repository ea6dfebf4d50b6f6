package queue

import (
	"sync"

	"threat-radar/internal/models"
)

// DefaultCapacity 默认队列容量
const DefaultCapacity = 500

// AttackQueue 攻击事件缓冲队列
// 采集器push、消费者drain并发安全；超出容量时丢弃较旧的一半，
// 持续摄入快于消费时内存有界
type AttackQueue struct {
	mu       sync.Mutex
	attacks  []models.Attack
	capacity int
}

// NewAttackQueue 创建攻击队列，capacity<=0时使用默认容量
func NewAttackQueue(capacity int) *AttackQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AttackQueue{
		attacks:  make([]models.Attack, 0, capacity),
		capacity: capacity,
	}
}

// Push 追加一批攻击事件
func (q *AttackQueue) Push(batch []models.Attack) {
	if len(batch) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.attacks = append(q.attacks, batch...)

	// 超出容量时保留最新的一半
	if len(q.attacks) > q.capacity {
		keep := q.capacity / 2
		trimmed := make([]models.Attack, keep)
		copy(trimmed, q.attacks[len(q.attacks)-keep:])
		q.attacks = trimmed
	}
}

// Drain 原子地取出并清空当前全部队列内容
// 每个事件恰好被消费一次
func (q *AttackQueue) Drain() []models.Attack {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.attacks
	q.attacks = make([]models.Attack, 0, q.capacity)
	return drained
}

// Len 当前队列长度
func (q *AttackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.attacks)
}

// Capacity 队列容量
func (q *AttackQueue) Capacity() int {
	return q.capacity
}
