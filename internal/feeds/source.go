package feeds

import (
	"context"
	"net/http"
	"time"

	"threat-radar/internal/models"
)

// Source 数据源适配器统一契约
// Fetch绝不向调度器抛出错误：网络失败、非2xx响应、
// 畸形payload都在适配器内部记录并转换为空结果
type Source interface {
	// Name 数据源名称，用于日志和指标
	Name() string
	// Fetch 拉取并归一化一批攻击事件
	Fetch(ctx context.Context) []models.Attack
}

// newHTTPClient 创建带超时的HTTP客户端
// 单个慢源不能无限阻塞采集周期
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 15 * time.Second,
	}
}
