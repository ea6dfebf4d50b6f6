package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"threat-radar/internal/models"
)

func attackTypeSet() map[string]bool {
	set := make(map[string]bool, len(AttackTypes))
	for _, t := range AttackTypes {
		set[t] = true
	}
	return set
}

func TestAttackTypeFromTags(t *testing.T) {
	// 有序规则：首个命中生效
	assert.Equal(t, "Ransomware Deployment", AttackTypeFromTags([]string{"LockBit-Ransomware"}, nil))
	assert.Equal(t, "Phishing Campaign", AttackTypeFromTags([]string{"credential-phishing"}, nil))
	assert.Equal(t, "Botnet Activity", AttackTypeFromTags([]string{"mirai-botnet"}, nil))

	// ransomware优先于malware
	assert.Equal(t, "Ransomware Deployment", AttackTypeFromTags([]string{"ransomware", "malware"}, nil))

	// tag无命中时回退到恶意软件家族名
	assert.Equal(t, "Ransomware Deployment", AttackTypeFromTags([]string{"unrelated"}, []string{"SomeRansomware"}))
	assert.Equal(t, "Data Exfiltration", AttackTypeFromTags(nil, []string{"Zeus Banking Trojan"}))

	// 全部无命中时从词表采样
	valid := attackTypeSet()
	for i := 0; i < 100; i++ {
		assert.True(t, valid[AttackTypeFromTags(nil, nil)])
	}
}

func TestAttackTypeFromUsage(t *testing.T) {
	assert.Equal(t, "Command & Control Traffic", AttackTypeFromUsage("Data Center/Web Hosting/Transit", "", 50))
	assert.Equal(t, "Data Exfiltration", AttackTypeFromUsage("Commercial Business", "", 50))
	assert.Equal(t, "Malware C&C Communication", AttackTypeFromUsage("Fixed Line Residential", "", 50))

	// ISP信号
	assert.Equal(t, "Advanced Persistent Threat", AttackTypeFromUsage("", "Tor Exit Node", 50))

	// 无usage信号时按置信度分档
	assert.Equal(t, "Advanced Persistent Threat", AttackTypeFromUsage("", "", 96))
	assert.Equal(t, "Malware C&C Communication", AttackTypeFromUsage("", "", 90))
	assert.Equal(t, "Botnet Activity", AttackTypeFromUsage("", "", 80))
}

func TestAttackTypeFromInfo(t *testing.T) {
	assert.Equal(t, "Ransomware Deployment", AttackTypeFromInfo("New ransomware campaign targeting hospitals"))
	assert.Equal(t, "Data Exfiltration", AttackTypeFromInfo("Cyber espionage operation"))
	assert.Equal(t, "Advanced Persistent Threat", AttackTypeFromInfo("APT activity in Europe"))

	// 无关键字时使用默认类型
	assert.Equal(t, "Command & Control Traffic", AttackTypeFromInfo("generic event"))
}

func TestSeverityFromConfidence(t *testing.T) {
	// 固定阈值映射
	assert.Equal(t, models.SeverityCritical, SeverityFromConfidence(96, 60))
	assert.Equal(t, models.SeverityHigh, SeverityFromConfidence(96, 10)) // 报告数不足
	assert.Equal(t, models.SeverityHigh, SeverityFromConfidence(92, 100))
	assert.Equal(t, models.SeverityMedium, SeverityFromConfidence(85, 100))
	assert.Equal(t, models.SeverityLow, SeverityFromConfidence(79, 100))
}

func TestSeverityFromThreatLevel(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, SeverityFromThreatLevel(1))
	assert.Equal(t, models.SeverityHigh, SeverityFromThreatLevel(2))
	assert.Equal(t, models.SeverityMedium, SeverityFromThreatLevel(3))
	assert.Equal(t, models.SeverityLow, SeverityFromThreatLevel(4))

	// 未知等级回退到medium
	assert.Equal(t, models.SeverityMedium, SeverityFromThreatLevel(0))
	assert.Equal(t, models.SeverityMedium, SeverityFromThreatLevel(9))
}

func TestSeverityFromTags(t *testing.T) {
	// 高严重度信号只产生critical或high
	for i := 0; i < 100; i++ {
		sev := SeverityFromTags([]string{"zero-day"}, nil)
		assert.Contains(t, []string{models.SeverityCritical, models.SeverityHigh}, sev)
	}

	// 关键行业信号同样
	for i := 0; i < 100; i++ {
		sev := SeverityFromTags(nil, []string{"Government"})
		assert.Contains(t, []string{models.SeverityCritical, models.SeverityHigh}, sev)
	}

	// 无信号时落在合法枚举内
	for i := 0; i < 100; i++ {
		assert.True(t, models.ValidSeverity(SeverityFromTags(nil, nil)))
	}
}

func TestSampleSeverityDistribution(t *testing.T) {
	counts := make(map[string]int)
	const rounds = 5000
	for i := 0; i < rounds; i++ {
		counts[SampleSeverity(SyntheticSeverity)]++
	}

	// 所有档位都应出现，medium应为最大档（40%）
	assert.Greater(t, counts[models.SeverityCritical], 0)
	assert.Greater(t, counts[models.SeverityLow], 0)
	assert.Greater(t, counts[models.SeverityMedium], counts[models.SeverityCritical])
}

func TestSampleStatus(t *testing.T) {
	counts := make(map[string]int)
	for i := 0; i < 5000; i++ {
		status := SampleStatus(SyntheticStatus)
		assert.True(t, models.ValidStatus(status))
		counts[status]++
	}

	// 三种状态都应出现
	assert.Greater(t, counts[models.StatusActive], 0)
	assert.Greater(t, counts[models.StatusBlocked], 0)
	assert.Greater(t, counts[models.StatusResolved], 0)
}

func TestAttributeActor(t *testing.T) {
	// 可信作者直接采用
	assert.Equal(t, "AlienVault Labs", AttributeActor("China", "AlienVault Labs"))

	// 含@或user的作者不可信
	actor := AttributeActor("Atlantis", "a@b.com")
	assert.NotEqual(t, "a@b.com", actor)
	actor = AttributeActor("Atlantis", "user123")
	assert.NotEqual(t, "user123", actor)

	// 归属结果必须是已知组织或空
	known := make(map[string]bool)
	for _, a := range KnownThreatActors {
		known[a] = true
	}
	attributed := 0
	for i := 0; i < 500; i++ {
		actor := AttributeActor("Russia", "")
		if actor != "" {
			attributed++
			assert.True(t, known[actor], "unknown actor %s", actor)
		}
	}

	// 大多数记录不归属组织
	assert.Less(t, attributed, 400)
	assert.Greater(t, attributed, 0)
}

func TestActorCountry(t *testing.T) {
	assert.Equal(t, "Russia", ActorCountry("APT28"))
	assert.Equal(t, "North Korea", ActorCountry("Lazarus Group"))
	assert.Equal(t, "", ActorCountry("SomeUnknownGroup"))
}

func TestActorType(t *testing.T) {
	assert.Equal(t, models.ActorNationState, ActorType("APT28 (Fancy Bear)"))
	assert.Equal(t, models.ActorNationState, ActorType("Lazarus Group"))
	assert.Equal(t, models.ActorCybercriminal, ActorType("FIN7"))
}
