package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"threat-radar/internal/models"
)

// TestNewClient 测试创建Redis客户端
func TestNewClient(t *testing.T) {
	// 这个测试需要实际的Redis服务器，我们暂时跳过
	t.Skip("Skipping test that requires actual Redis server")

	// 测试使用默认端口连接
	client, err := NewClient("localhost:6379", "")
	assert.NoError(t, err)
	assert.NotNil(t, client)

	if client != nil {
		defer client.Close()
	}

	// 测试使用URL格式连接
	client, err = NewClient("redis://localhost:6379/0", "")
	assert.NoError(t, err)
	assert.NotNil(t, client)

	if client != nil {
		defer client.Close()
	}
}

// TestPublishAndSubscribe 测试实时攻击通道的发布与订阅
func TestPublishAndSubscribe(t *testing.T) {
	// 这个测试需要实际的Redis服务器，我们暂时跳过
	t.Skip("Skipping test that requires actual Redis server")

	client, err := NewClient("localhost:6379", "threatradar:attacks:test")
	assert.NoError(t, err)
	assert.NotNil(t, client)
	defer client.Close()

	batches, stop, err := client.Subscribe()
	assert.NoError(t, err)
	defer stop()

	err = client.PublishAttacks([]models.Attack{
		{ID: "test-1", Timestamp: time.Now()},
	})
	assert.NoError(t, err)

	select {
	case batch := <-batches:
		assert.Len(t, batch, 1)
		assert.Equal(t, "test-1", batch[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch received")
	}
}

// TestPublishEmptyBatch 空批次不应发起发布
func TestPublishEmptyBatch(t *testing.T) {
	client := &Client{}
	assert.NoError(t, client.PublishAttacks(nil))
}
