package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-redis/redis/v8"

	"threat-radar/internal/models"
)

// Client Redis客户端封装
// 用于向订阅的仪表盘进程实时发布攻击批次
type Client struct {
	client  *redis.Client
	ctx     context.Context
	channel string
}

// NewClient 创建Redis客户端
// 支持两种格式的Redis URL:
// 1. 简单格式: localhost:6379
// 2. URL格式: redis://[password@]host:port/db
func NewClient(redisURL, channel string) (*Client, error) {
	opt := &redis.Options{}

	if !strings.Contains(redisURL, "://") {
		opt.Addr = redisURL
		if !strings.Contains(opt.Addr, ":") {
			opt.Addr = fmt.Sprintf("%s:6379", opt.Addr)
		}
	} else {
		parsed, err := url.Parse(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %v", err)
		}

		opt.Addr = parsed.Host
		if !strings.Contains(opt.Addr, ":") {
			opt.Addr = fmt.Sprintf("%s:6379", opt.Addr)
		}

		// 解析密码
		if parsed.User != nil {
			opt.Password, _ = parsed.User.Password()
		}

		// 解析数据库
		db := 0
		if parsed.Path != "" && parsed.Path != "/" {
			fmt.Sscanf(parsed.Path[1:], "%d", &db)
		}
		opt.DB = db
	}

	client := redis.NewClient(opt)
	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	if channel == "" {
		channel = "threatradar:attacks:live"
	}

	return &Client{
		client:  client,
		ctx:     ctx,
		channel: channel,
	}, nil
}

// PublishAttacks 发布一批攻击事件到实时通道
func (c *Client) PublishAttacks(attacks []models.Attack) error {
	if len(attacks) == 0 {
		return nil
	}
	payload, err := json.Marshal(attacks)
	if err != nil {
		return err
	}
	return c.client.Publish(c.ctx, c.channel, payload).Err()
}

// Subscribe 订阅实时攻击通道
// 返回的channel在连接关闭时被关闭
func (c *Client) Subscribe() (<-chan []models.Attack, func(), error) {
	sub := c.client.Subscribe(c.ctx, c.channel)
	if _, err := sub.Receive(c.ctx); err != nil {
		return nil, nil, err
	}

	out := make(chan []models.Attack)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var attacks []models.Attack
			if err := json.Unmarshal([]byte(msg.Payload), &attacks); err != nil {
				continue
			}
			out <- attacks
		}
	}()

	return out, func() { sub.Close() }, nil
}

// GetRawClient 获取原始Redis客户端实例
func (c *Client) GetRawClient() *redis.Client {
	return c.client
}

// Close 关闭Redis连接
func (c *Client) Close() error {
	return c.client.Close()
}
