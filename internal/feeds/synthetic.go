package feeds

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"threat-radar/internal/classify"
	"threat-radar/internal/geo"
	"threat-radar/internal/models"
)

// 每次生成的攻击数范围
const (
	syntheticMinAttacks = 8
	syntheticMaxAttacks = 12
)

// SyntheticSource 合成攻击生成器
// 无网络I/O，仅依赖地理表和分类器的概率分布；
// 作为默认数据源和所有外部源失败时的兜底
type SyntheticSource struct{}

// NewSyntheticSource 创建合成数据源
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{}
}

// Name 数据源名称
func (s *SyntheticSource) Name() string {
	return "synthetic"
}

// Fetch 生成8-12条统计形态合理的攻击事件
func (s *SyntheticSource) Fetch(ctx context.Context) []models.Attack {
	count := rand.Intn(syntheticMaxAttacks-syntheticMinAttacks+1) + syntheticMinAttacks
	now := time.Now()

	attacks := make([]models.Attack, 0, count)
	for i := 0; i < count; i++ {
		attacks = append(attacks, s.generate(now))
	}
	return attacks
}

// generate 按命名分布生成单条攻击
func (s *SyntheticSource) generate(timestamp time.Time) models.Attack {
	sourceCountry := geo.RandomHighRiskCountry()
	targetCountry := geo.RandomTargetCountry()

	return models.Attack{
		ID:            fmt.Sprintf("synthetic-%d-%s", timestamp.UnixNano(), uuid.NewString()[:8]),
		Timestamp:     timestamp,
		SourceCountry: sourceCountry,
		TargetCountry: targetCountry,
		AttackType:    classify.RandomAttackType(),
		Severity:      classify.SampleSeverity(classify.SyntheticSeverity),
		Status:        classify.SampleStatus(classify.SyntheticStatus),
		SourceIP:      geo.RealisticIP(sourceCountry),
		TargetIP:      geo.RealisticIP(targetCountry),
		Port:          geo.CommonPort(),
		Protocol:      geo.RandomProtocol(),
		ThreatActor:   classify.AttributeActor(sourceCountry, ""),
	}
}
