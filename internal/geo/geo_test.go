package geo

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinates(t *testing.T) {
	// 已知国家有坐标
	coord, ok := Coordinates("China")
	assert.True(t, ok)
	assert.InDelta(t, 35.8617, coord.Lat, 0.001)

	// 未知国家没有坐标
	_, ok = Coordinates("Atlantis")
	assert.False(t, ok)
}

func TestCountryFromCode(t *testing.T) {
	assert.Equal(t, "China", CountryFromCode("CN"))
	assert.Equal(t, "United States", CountryFromCode("US"))
	assert.Equal(t, "North Korea", CountryFromCode("KP"))

	// 未知代码返回Unknown
	assert.Equal(t, "Unknown", CountryFromCode("ZZ"))
}

func TestRandomHighRiskCountry(t *testing.T) {
	// 高风险国家必须来自预定义列表
	valid := make(map[string]bool)
	for _, c := range HighRiskCountries {
		valid[c] = true
	}
	for _, c := range AllCountries() {
		valid[c] = true
	}

	for i := 0; i < 200; i++ {
		assert.True(t, valid[RandomHighRiskCountry()])
	}
}

func TestRandomHighRiskCountryWeighting(t *testing.T) {
	// 高风险列表的命中率应显著高于均匀分布
	highRisk := make(map[string]bool)
	for _, c := range HighRiskCountries {
		highRisk[c] = true
	}

	hits := 0
	const rounds = 2000
	for i := 0; i < rounds; i++ {
		if highRisk[RandomHighRiskCountry()] {
			hits++
		}
	}

	// 期望约60%，留出宽松的统计余量
	assert.Greater(t, hits, rounds/3)
}

func TestRandomTargetCountry(t *testing.T) {
	valid := make(map[string]bool)
	for _, c := range CommonTargetCountries {
		valid[c] = true
	}
	for _, c := range AllCountries() {
		valid[c] = true
	}

	for i := 0; i < 200; i++ {
		assert.True(t, valid[RandomTargetCountry()])
	}
}

func TestRealisticIP(t *testing.T) {
	// 生成的地址必须是合法IPv4
	for _, country := range []string{"China", "Russia", "United States", "Atlantis"} {
		for i := 0; i < 50; i++ {
			ip := RealisticIP(country)
			assert.NotNil(t, net.ParseIP(ip), "invalid IP %s for %s", ip, country)
		}
	}

	// 已知国家的地址使用其前缀
	ip := RealisticIP("North Korea")
	fromRange := strings.HasPrefix(ip, "175.45.") || strings.HasPrefix(ip, "210.52.")
	assert.True(t, fromRange, "unexpected prefix for %s", ip)
}

func TestCountryFromIPFallback(t *testing.T) {
	// 无mmdb时使用内置前缀表
	r := NewResolver("")
	defer r.Close()

	assert.Equal(t, "North Korea", r.CountryFromIP("175.45.1.2"))
	assert.Equal(t, "China", r.CountryFromIP("61.135.1.2"))

	// 未知前缀返回空字符串
	assert.Equal(t, "", r.CountryFromIP("127.0.0.1"))
}

func TestResolverDegradesOnMissingDatabase(t *testing.T) {
	// 数据库文件不存在时不报错，回退模式继续工作
	r := NewResolver("/nonexistent/GeoLite2-Country.mmdb")
	defer r.Close()
	assert.NotNil(t, r)
	assert.Equal(t, "China", r.CountryFromIP("61.135.1.2"))
}

func TestCommonPortAndProtocol(t *testing.T) {
	ports := make(map[int]bool)
	for _, p := range commonPorts {
		ports[p] = true
	}
	protos := make(map[string]bool)
	for _, p := range protocols {
		protos[p] = true
	}

	for i := 0; i < 100; i++ {
		assert.True(t, ports[CommonPort()])
		assert.True(t, protos[RandomProtocol()])
	}
}

func TestKnownCountry(t *testing.T) {
	assert.True(t, KnownCountry("Germany"))
	assert.False(t, KnownCountry("Atlantis"))
}
