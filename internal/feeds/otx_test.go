package feeds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"threat-radar/internal/config"
	"threat-radar/internal/geo"
	"threat-radar/internal/models"
)

func TestOTXFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// API key通过X-OTX-API-KEY头传递
		assert.Equal(t, "test-key", r.Header.Get("X-OTX-API-KEY"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [
				{
					"id": "pulse-1",
					"name": "LockBit ransomware infrastructure",
					"author_name": "AlienVault Labs",
					"modified": "2026-08-20T12:00:00",
					"tags": ["ransomware", "lockbit"],
					"malware_families": ["LockBit"],
					"targeted_countries": ["Germany"],
					"indicators": [
						{"id": 1, "indicator": "175.45.176.1", "type": "IPv4"},
						{"id": 2, "indicator": "evil.example.com", "type": "domain"},
						{"id": 3, "indicator": "5.45.1.1", "type": "IPv4"},
						{"id": 4, "indicator": "46.1.2.3", "type": "IPv4"},
						{"id": 5, "indicator": "deadbeef", "type": "FileHash-MD5"}
					]
				}
			]
		}`))
	}))
	defer server.Close()

	resolver := geo.NewResolver("")
	defer resolver.Close()

	source := NewOTXSource(config.OTXConfig{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		PulseLimit: 20,
	}, resolver, nil)

	attacks := source.Fetch(context.Background())

	// 每个pulse最多3个IPv4/domain指标，hash指标被跳过
	assert.Len(t, attacks, 3)

	for _, attack := range attacks {
		// ransomware tag优先命中
		assert.Equal(t, "Ransomware Deployment", attack.AttackType)
		// 目标国家来自pulse
		assert.Equal(t, "Germany", attack.TargetCountry)
		// 恶意软件家族来自pulse
		assert.Equal(t, "LockBit", attack.ThreatFamily)
		// 可信作者直接作为威胁组织
		assert.Equal(t, "AlienVault Labs", attack.ThreatActor)
		// ransomware是高严重度信号
		assert.Contains(t, []string{models.SeverityCritical, models.SeverityHigh}, attack.Severity)
		assert.True(t, models.ValidStatus(attack.Status))
	}

	// 首个指标命中北韩前缀表
	assert.Equal(t, "North Korea", attacks[0].SourceCountry)

	// pulse修改时间被解析
	assert.Equal(t, 2026, attacks[0].Timestamp.Year())
}

func TestOTXNoAPIKey(t *testing.T) {
	resolver := geo.NewResolver("")
	defer resolver.Close()

	source := NewOTXSource(config.OTXConfig{BaseURL: "http://127.0.0.1:1"}, resolver, nil)
	assert.Nil(t, source.Fetch(context.Background()))
}

func TestOTXMalwareFamilyUnmarshal(t *testing.T) {
	// 字符串形态
	var f otxMalwareFamily
	assert.NoError(t, json.Unmarshal([]byte(`"Emotet"`), &f))
	assert.Equal(t, "Emotet", f.displayName())

	// 对象形态
	assert.NoError(t, json.Unmarshal([]byte(`{"display_name": "Emotet Banking Trojan", "name": "emotet"}`), &f))
	assert.Equal(t, "Emotet Banking Trojan", f.displayName())
}

func TestParsePulseTime(t *testing.T) {
	// 支持无时区的OTX时间格式
	parsed := parsePulseTime("2026-08-20T12:30:45.123456")
	assert.Equal(t, 2026, parsed.Year())

	parsed = parsePulseTime("2026-08-20T12:30:45Z")
	assert.Equal(t, 2026, parsed.Year())

	// 无法解析时回退到当前时间
	parsed = parsePulseTime("not-a-time")
	assert.False(t, parsed.IsZero())
}
