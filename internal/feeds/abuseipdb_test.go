package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"threat-radar/internal/config"
	"threat-radar/internal/models"
)

func newAbuseIPDBServer(t *testing.T, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API key通过Key头传递
		assert.Equal(t, "test-key", r.Header.Get("Key"))
		assert.Contains(t, r.URL.RawQuery, "confidenceMinimum=75")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestAbuseIPDBFetch(t *testing.T) {
	server := newAbuseIPDBServer(t, `{
		"data": [
			{"ip": "185.220.101.1", "abuseConfidencePercentage": 96, "countryCode": "RU", "usageType": "Data Center/Web Hosting/Transit", "isp": "Example ISP", "totalReports": 60, "lastReportedAt": "2026-08-01T10:00:00+00:00"},
			{"ip": "61.177.172.1", "abuseConfidencePercentage": 92, "countryCode": "CN", "usageType": "Fixed Line ISP", "isp": "China Telecom", "totalReports": 20},
			{"ip": "1.2.3.4", "abuseConfidencePercentage": 70, "countryCode": "US", "totalReports": 5},
			{"ip": "5.6.7.8", "abuseConfidencePercentage": 99, "countryCode": "", "totalReports": 90}
		]
	}`)
	defer server.Close()

	source := NewAbuseIPDBSource(config.AbuseIPDBConfig{
		BaseURL:           server.URL,
		APIKey:            "test-key",
		ConfidenceMinimum: 75,
		Limit:             50,
	}, nil)

	attacks := source.Fetch(context.Background())

	// 置信度70和缺少国家的记录被过滤
	assert.Len(t, attacks, 2)

	first := attacks[0]
	// 高置信+高报告数 → critical，置信度>90 → active
	assert.Equal(t, models.SeverityCritical, first.Severity)
	assert.Equal(t, models.StatusActive, first.Status)
	assert.Equal(t, "Russia", first.SourceCountry)
	assert.Equal(t, "185.220.101.1", first.SourceIP)
	// hosting类usage → C&C流量
	assert.Equal(t, "Command & Control Traffic", first.AttackType)
	// lastReportedAt被解析为时间戳
	assert.Equal(t, 2026, first.Timestamp.Year())

	second := attacks[1]
	// 置信度92但报告数不足 → high，仍>90 → active
	assert.Equal(t, models.SeverityHigh, second.Severity)
	assert.Equal(t, models.StatusActive, second.Status)
	assert.Equal(t, "China", second.SourceCountry)
}

func TestAbuseIPDBStatusThreshold(t *testing.T) {
	server := newAbuseIPDBServer(t, `{
		"data": [
			{"ip": "8.8.4.4", "abuseConfidencePercentage": 85, "countryCode": "US", "totalReports": 10}
		]
	}`)
	defer server.Close()

	source := NewAbuseIPDBSource(config.AbuseIPDBConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, nil)

	attacks := source.Fetch(context.Background())
	assert.Len(t, attacks, 1)

	// 置信度≤90 → blocked
	assert.Equal(t, models.StatusBlocked, attacks[0].Status)
	assert.Equal(t, models.SeverityMedium, attacks[0].Severity)
}

func TestAbuseIPDBNoAPIKey(t *testing.T) {
	// 未配置API key时直接跳过，不发起网络请求
	source := NewAbuseIPDBSource(config.AbuseIPDBConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	assert.Nil(t, source.Fetch(context.Background()))
}

func TestAbuseIPDBServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source := NewAbuseIPDBSource(config.AbuseIPDBConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, nil)

	// 上游错误不panic，返回空批次
	assert.Nil(t, source.Fetch(context.Background()))
}
