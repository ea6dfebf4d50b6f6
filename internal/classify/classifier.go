package classify

import (
	"math/rand"
	"strings"

	"threat-radar/internal/models"
)

// AttackTypes 攻击类型词表，所有分类结果必须落在该词表内
var AttackTypes = []string{
	"Malware C&C Communication",
	"Phishing Campaign",
	"Botnet Activity",
	"Data Exfiltration",
	"Ransomware Deployment",
	"SQL Injection Attempt",
	"Cross-Site Scripting (XSS)",
	"Brute Force Attack",
	"Port Scanning",
	"Vulnerability Exploitation",
	"DNS Hijacking",
	"Command & Control Traffic",
	"Lateral Movement",
	"Privilege Escalation",
	"Cryptocurrency Mining",
	"DDoS Attack",
	"Man-in-the-Middle",
	"Social Engineering",
	"Zero-day Exploit",
	"Advanced Persistent Threat",
}

// KnownThreatActors 已知威胁组织
var KnownThreatActors = []string{
	"APT1 (Comment Crew)",
	"APT28 (Fancy Bear)",
	"APT29 (Cozy Bear)",
	"Lazarus Group",
	"Carbanak",
	"FIN7",
	"Equation Group",
	"Dark Halo",
	"Sandworm Team",
	"Turla",
	"Kimsuky",
	"Mustang Panda",
	"Sidewinder",
	"OceanLotus",
	"Winnti Group",
	"APT33",
	"APT34",
	"APT35",
	"Dragonfly",
	"Machete",
	"Patchwork",
	"Sofacy",
	"Taidoor",
}

// countryActors 按来源国家归属的威胁组织
var countryActors = map[string][]string{
	"China":       {"APT1 (Comment Crew)", "Winnti Group", "Mustang Panda", "OceanLotus"},
	"Russia":      {"APT28 (Fancy Bear)", "APT29 (Cozy Bear)", "Sandworm Team", "Turla"},
	"North Korea": {"Lazarus Group", "Kimsuky"},
	"Iran":        {"APT33", "APT34", "APT35"},
}

// actorCountries 威胁组织到国家的反查表（MISP galaxy归属）
var actorCountries = map[string]string{
	"APT28":         "Russia",
	"APT29":         "Russia",
	"Fancy Bear":    "Russia",
	"Cozy Bear":     "Russia",
	"Lazarus Group": "North Korea",
	"APT1":          "China",
	"Comment Crew":  "China",
	"APT33":         "Iran",
	"APT34":         "Iran",
	"APT35":         "Iran",
}

// nationStateActors 国家级威胁组织
var nationStateActors = []string{"APT28", "APT29", "Lazarus Group", "APT1", "APT33", "APT34", "APT35"}

// tagRule tag关键字到攻击类型的有序匹配规则，首个命中即生效
type tagRule struct {
	Keyword string
	Type    string
}

// tagRules 规则按优先级排列
var tagRules = []tagRule{
	{"ransomware", "Ransomware Deployment"},
	{"phishing", "Phishing Campaign"},
	{"botnet", "Botnet Activity"},
	{"malware", "Malware C&C Communication"},
	{"apt", "Advanced Persistent Threat"},
	{"trojan", "Malware C&C Communication"},
	{"backdoor", "Command & Control Traffic"},
	{"mining", "Cryptocurrency Mining"},
	{"ddos", "DDoS Attack"},
}

// infoRules MISP事件描述关键字规则
var infoRules = []tagRule{
	{"ransomware", "Ransomware Deployment"},
	{"phishing", "Phishing Campaign"},
	{"espionage", "Data Exfiltration"},
	{"malware", "Malware C&C Communication"},
	{"apt", "Advanced Persistent Threat"},
}

// 严重度累积分布：rand < Critical → critical, < High → high, < Medium → medium, 否则 low
type SeverityDistribution struct {
	Critical float64
	High     float64
	Medium   float64
}

// 状态累积分布：rand < Active → active, < Blocked → blocked, 否则 resolved
type StatusDistribution struct {
	Active  float64
	Blocked float64
}

// 按数据源命名的概率表，测试依赖这些常量保持稳定
var (
	// SyntheticSeverity 合成数据源严重度分布 12/20/40/28
	SyntheticSeverity = SeverityDistribution{Critical: 0.12, High: 0.32, Medium: 0.72}
	// PulseSeverity OTX pulse无信号时的默认分布 15/20/35/30
	PulseSeverity = SeverityDistribution{Critical: 0.15, High: 0.35, Medium: 0.70}

	// SyntheticStatus 合成数据源状态分布 35/40/25
	SyntheticStatus = StatusDistribution{Active: 0.35, Blocked: 0.75}
	// PulseStatus OTX pulse状态分布 40/30/30
	PulseStatus = StatusDistribution{Active: 0.40, Blocked: 0.70}
)

// 威胁组织归属概率
const (
	// CountryActorProbability 来源国家有已知组织时的归属概率
	CountryActorProbability = 0.25
	// GlobalActorProbability 从全局组织表归属的概率
	GlobalActorProbability = 0.15
	// BlacklistActorProbability AbuseIPDB记录尝试归属组织的概率
	BlacklistActorProbability = 0.2
)

// highSeverityTags 高严重度tag信号
var highSeverityTags = []string{"apt", "ransomware", "critical", "zero-day", "nation-state"}

// criticalIndustries 关键行业信号
var criticalIndustries = []string{"government", "financial", "healthcare", "energy"}

// AttackTypeFromTags 从tag和恶意软件家族推断攻击类型
// 有序规则优先，其次家族名称，最后从词表均匀采样
func AttackTypeFromTags(tags []string, malwareFamilies []string) string {
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, rule := range tagRules {
			if strings.Contains(lower, rule.Keyword) {
				return rule.Type
			}
		}
	}

	for _, family := range malwareFamilies {
		lower := strings.ToLower(family)
		if strings.Contains(lower, "ransomware") {
			return "Ransomware Deployment"
		}
		if strings.Contains(lower, "banking") {
			return "Data Exfiltration"
		}
	}

	return RandomAttackType()
}

// AttackTypeFromUsage 从AbuseIPDB的usage-type和置信度推断攻击类型
func AttackTypeFromUsage(usageType, isp string, confidence int) string {
	usage := strings.ToLower(usageType)
	ispLower := strings.ToLower(isp)

	if strings.Contains(usage, "hosting") {
		return "Command & Control Traffic"
	}
	if strings.Contains(usage, "datacenter") {
		return "Botnet Activity"
	}
	if strings.Contains(usage, "business") {
		return "Data Exfiltration"
	}
	if strings.Contains(usage, "residential") {
		return "Malware C&C Communication"
	}
	if strings.Contains(ispLower, "tor") || strings.Contains(ispLower, "vpn") {
		return "Advanced Persistent Threat"
	}

	// 无usage信号时按置信度分档
	if confidence > 95 {
		return "Advanced Persistent Threat"
	}
	if confidence > 85 {
		return "Malware C&C Communication"
	}
	return "Botnet Activity"
}

// AttackTypeFromInfo 从MISP事件描述推断攻击类型
func AttackTypeFromInfo(info string) string {
	lower := strings.ToLower(info)
	for _, rule := range infoRules {
		if strings.Contains(lower, rule.Keyword) {
			return rule.Type
		}
	}
	return "Command & Control Traffic"
}

// RandomAttackType 从词表均匀采样
func RandomAttackType() string {
	return AttackTypes[rand.Intn(len(AttackTypes))]
}

// SeverityFromTags 从OTX tag/行业信号推断严重度
// 命中高严重度信号时在critical/high之间加权，否则按默认分布采样
func SeverityFromTags(tags []string, industries []string) string {
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, hs := range highSeverityTags {
			if strings.Contains(lower, hs) {
				if rand.Float64() < 0.7 {
					return models.SeverityCritical
				}
				return models.SeverityHigh
			}
		}
	}

	for _, industry := range industries {
		lower := strings.ToLower(industry)
		for _, ci := range criticalIndustries {
			if strings.Contains(lower, ci) {
				if rand.Float64() < 0.5 {
					return models.SeverityCritical
				}
				return models.SeverityHigh
			}
		}
	}

	return SampleSeverity(PulseSeverity)
}

// SeverityFromConfidence AbuseIPDB置信度到严重度的固定阈值映射
func SeverityFromConfidence(confidence, totalReports int) string {
	if confidence >= 95 && totalReports > 50 {
		return models.SeverityCritical
	}
	if confidence >= 90 {
		return models.SeverityHigh
	}
	if confidence >= 80 {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// SeverityFromThreatLevel MISP threat_level_id直接映射严重度
func SeverityFromThreatLevel(threatLevelID int) string {
	switch threatLevelID {
	case 1:
		return models.SeverityCritical
	case 2:
		return models.SeverityHigh
	case 3:
		return models.SeverityMedium
	case 4:
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}

// SampleSeverity 按累积分布采样严重度
func SampleSeverity(dist SeverityDistribution) string {
	r := rand.Float64()
	switch {
	case r < dist.Critical:
		return models.SeverityCritical
	case r < dist.High:
		return models.SeverityHigh
	case r < dist.Medium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// SampleStatus 按累积分布采样状态
func SampleStatus(dist StatusDistribution) string {
	r := rand.Float64()
	switch {
	case r < dist.Active:
		return models.StatusActive
	case r < dist.Blocked:
		return models.StatusBlocked
	default:
		return models.StatusResolved
	}
}

// AttributeActor 威胁组织归属
// 来源作者可信时直接采用；其次按国家表低概率归属；再次全局表更低概率；
// 大多数记录不归属任何组织
func AttributeActor(sourceCountry, author string) string {
	if plausibleAuthor(author) {
		return author
	}

	if actors, ok := countryActors[sourceCountry]; ok {
		if rand.Float64() < CountryActorProbability {
			return actors[rand.Intn(len(actors))]
		}
	}

	if rand.Float64() < GlobalActorProbability {
		return KnownThreatActors[rand.Intn(len(KnownThreatActors))]
	}

	return ""
}

// plausibleAuthor 作者字符串是否可直接作为威胁组织名
func plausibleAuthor(author string) bool {
	return len(author) > 3 && !strings.Contains(author, "@") && !strings.Contains(author, "user")
}

// ActorCountry 威胁组织所属国家，未知返回空字符串
func ActorCountry(actorName string) string {
	if country, ok := actorCountries[actorName]; ok {
		return country
	}
	return ""
}

// ActorType 威胁组织类型归类
func ActorType(actorName string) string {
	for _, state := range nationStateActors {
		if strings.Contains(actorName, state) {
			return models.ActorNationState
		}
	}
	return models.ActorCybercriminal
}
