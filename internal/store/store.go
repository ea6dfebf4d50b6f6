package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"threat-radar/internal/config"
	"threat-radar/internal/logging"
	"threat-radar/internal/models"
)

// ThreatStore 威胁情报持久化存储
// attacks、threat_families、threat_actors、misp_events四张表，
// family/actor按名称upsert，绝不产生重名实体
type ThreatStore struct {
	db     *gorm.DB
	logger *logging.Logger
}

// HistoricalStat 按日期和威胁家族分组的历史统计
type HistoricalStat struct {
	Date         string   `json:"date"`
	ThreatFamily string   `json:"threat_family"`
	AttackCount  int      `json:"attack_count"`
	Countries    []string `json:"countries"`
	Severity     string   `json:"severity"`
}

// EvolutionPoint 威胁家族随时间的活动点
type EvolutionPoint struct {
	ThreatFamily string   `json:"threat_family"`
	Date         string   `json:"date"`
	AttackCount  int      `json:"attack_count"`
	Countries    []string `json:"countries"`
	Techniques   []string `json:"techniques"`
}

// ActivityPoint 威胁组织按日活动点
type ActivityPoint struct {
	Date       string   `json:"date"`
	Attacks    int      `json:"attacks"`
	Targets    []string `json:"targets"`
	Techniques []string `json:"techniques"`
}

// Stats 存储层聚合统计
type Stats struct {
	TotalAttacks    int64      `json:"total_attacks"`
	TotalFamilies   int64      `json:"total_families"`
	TotalActors     int64      `json:"total_actors"`
	TotalMispEvents int64      `json:"total_misp_events"`
	OldestAttack    *time.Time `json:"oldest_attack,omitempty"`
	NewestAttack    *time.Time `json:"newest_attack,omitempty"`
}

// NewThreatStore 按存储配置创建存储实例
func NewThreatStore(cfg *config.StorageConfig, logger *logging.Logger) (*ThreatStore, error) {
	if logger == nil {
		logger = logging.DefaultLogger
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, errors.New("postgres storage selected but postgres_url is empty")
		}
		dialector = postgres.Open(cfg.PostgresURL)
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, errors.New("sqlite storage selected but sqlite_path is empty")
		}
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	store := &ThreatStore{db: db, logger: logger}
	if err := store.autoMigrate(); err != nil {
		return nil, err
	}

	logger.Info("Threat intelligence store initialized (%s)", cfg.Type)
	return store, nil
}

// autoMigrate 建表和索引
func (s *ThreatStore) autoMigrate() error {
	return s.db.AutoMigrate(
		&models.Attack{},
		&models.ThreatFamily{},
		&models.ThreatActor{},
		&models.MispEvent{},
	)
}

// StoreAttack 写入攻击记录，family/eventRef可为空
// 同id重复写入为幂等覆盖
func (s *ThreatStore) StoreAttack(attack models.Attack, threatFamily, mispEventID string) error {
	attack.ThreatFamily = threatFamily
	attack.MispEventID = mispEventID
	if attack.CreatedAt.IsZero() {
		attack.CreatedAt = time.Now()
	}
	return s.db.Save(&attack).Error
}

// StoreAttackBatch 批量写入攻击记录
// 单条失败只记录日志，不中断整批
func (s *ThreatStore) StoreAttackBatch(attacks []models.Attack) {
	for _, attack := range attacks {
		if err := s.StoreAttack(attack, attack.ThreatFamily, attack.MispEventID); err != nil {
			s.logger.Error("Failed to persist attack %s: %v", attack.ID, err)
		}
	}
}

// StoreThreatFamily 按名称upsert威胁家族
// 合并语义：国家/别名/技术/行业取并集，计数累加，lastSeen前移，firstSeen绝不回退
func (s *ThreatStore) StoreThreatFamily(family models.ThreatFamily) error {
	var existing models.ThreatFamily
	err := s.db.Where("name = ?", family.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if family.CreatedAt.IsZero() {
			family.CreatedAt = time.Now()
		}
		family.UpdatedAt = time.Now()
		return s.db.Create(&family).Error
	}
	if err != nil {
		return err
	}

	existing.Countries = unionStrings(existing.Countries, family.Countries)
	existing.Aliases = unionStrings(existing.Aliases, family.Aliases)
	existing.Techniques = unionStrings(existing.Techniques, family.Techniques)
	existing.TargetSectors = unionStrings(existing.TargetSectors, family.TargetSectors)
	existing.TotalAttacks += family.TotalAttacks
	if family.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = family.LastSeen
	}
	if !family.FirstSeen.IsZero() && family.FirstSeen.Before(existing.FirstSeen) {
		existing.FirstSeen = family.FirstSeen
	}
	if existing.Description == "" {
		existing.Description = family.Description
	}
	existing.UpdatedAt = time.Now()
	return s.db.Save(&existing).Error
}

// StoreThreatActor 按名称upsert威胁组织，合并语义同上
func (s *ThreatStore) StoreThreatActor(actor models.ThreatActor) error {
	var existing models.ThreatActor
	err := s.db.Where("name = ?", actor.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if actor.CreatedAt.IsZero() {
			actor.CreatedAt = time.Now()
		}
		actor.UpdatedAt = time.Now()
		return s.db.Create(&actor).Error
	}
	if err != nil {
		return err
	}

	existing.ActiveAttacks += actor.ActiveAttacks
	existing.TotalAttacks += actor.TotalAttacks
	existing.Families = unionStrings(existing.Families, actor.Families)
	if actor.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = actor.LastSeen
	}
	if severityRank(actor.RiskLevel) > severityRank(existing.RiskLevel) {
		existing.RiskLevel = actor.RiskLevel
	}
	existing.UpdatedAt = time.Now()
	return s.db.Save(&existing).Error
}

// StoreMispEvent 写入MISP原始事件，按event_id幂等
func (s *ThreatStore) StoreMispEvent(event models.MispEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	var existing models.MispEvent
	err := s.db.Where("event_id = ?", event.EventID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&event).Error
	}
	if err != nil {
		return err
	}
	event.ID = existing.ID
	return s.db.Save(&event).Error
}

// GetHistoricalStats 按日历日期和威胁家族分组的窗口统计
func (s *ThreatStore) GetHistoricalStats(windowDays int) ([]HistoricalStat, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	var attacks []models.Attack
	if err := s.db.Where("timestamp > ? AND threat_family <> ''", cutoff).Find(&attacks).Error; err != nil {
		return nil, err
	}

	type key struct {
		date     string
		family   string
		severity string
	}
	grouped := make(map[key]*HistoricalStat)
	countries := make(map[key]map[string]bool)

	for _, attack := range attacks {
		k := key{
			date:     attack.Timestamp.Format("2006-01-02"),
			family:   attack.ThreatFamily,
			severity: attack.Severity,
		}
		stat, ok := grouped[k]
		if !ok {
			stat = &HistoricalStat{Date: k.date, ThreatFamily: k.family, Severity: k.severity}
			grouped[k] = stat
			countries[k] = make(map[string]bool)
		}
		stat.AttackCount++
		countries[k][attack.SourceCountry] = true
	}

	result := make([]HistoricalStat, 0, len(grouped))
	for k, stat := range grouped {
		stat.Countries = sortedKeys(countries[k])
		result = append(result, *stat)
	}

	// 日期倒序，同日期按攻击数倒序
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date > result[j].Date
		}
		return result[i].AttackCount > result[j].AttackCount
	})
	return result, nil
}

// GetThreatFamilyEvolution 单个威胁家族按日的活动时间序列
func (s *ThreatStore) GetThreatFamilyEvolution(familyName string, windowDays int) ([]EvolutionPoint, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	var attacks []models.Attack
	if err := s.db.Where("threat_family = ? AND timestamp > ?", familyName, cutoff).Find(&attacks).Error; err != nil {
		return nil, err
	}

	grouped := make(map[string]*EvolutionPoint)
	countries := make(map[string]map[string]bool)
	techniques := make(map[string]map[string]bool)

	for _, attack := range attacks {
		date := attack.Timestamp.Format("2006-01-02")
		point, ok := grouped[date]
		if !ok {
			point = &EvolutionPoint{ThreatFamily: familyName, Date: date}
			grouped[date] = point
			countries[date] = make(map[string]bool)
			techniques[date] = make(map[string]bool)
		}
		point.AttackCount++
		countries[date][attack.SourceCountry] = true
		techniques[date][attack.AttackType] = true
	}

	result := make([]EvolutionPoint, 0, len(grouped))
	for date, point := range grouped {
		point.Countries = sortedKeys(countries[date])
		point.Techniques = sortedKeys(techniques[date])
		result = append(result, *point)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	return result, nil
}

// GetTopThreatFamilies 按窗口内活动数排名的威胁家族
// 并列时按累计攻击总数排序
func (s *ThreatStore) GetTopThreatFamilies(windowDays, limit int) ([]models.ThreatFamily, error) {
	if limit <= 0 {
		limit = 20
	}
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	var families []models.ThreatFamily
	if err := s.db.Find(&families).Error; err != nil {
		return nil, err
	}

	recent := make(map[string]int)
	rows, err := s.db.Model(&models.Attack{}).
		Select("threat_family, count(*) as cnt").
		Where("timestamp > ? AND threat_family <> ''", cutoff).
		Group("threat_family").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var family string
		var cnt int
		if err := rows.Scan(&family, &cnt); err != nil {
			return nil, err
		}
		recent[family] = cnt
	}

	sort.Slice(families, func(i, j int) bool {
		ri, rj := recent[families[i].Name], recent[families[j].Name]
		if ri != rj {
			return ri > rj
		}
		return families[i].TotalAttacks > families[j].TotalAttacks
	})

	if len(families) > limit {
		families = families[:limit]
	}
	return families, nil
}

// GetThreatActorActivity 威胁组织按日活动统计
func (s *ThreatStore) GetThreatActorActivity(actorName string, windowDays int) ([]ActivityPoint, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	var attacks []models.Attack
	if err := s.db.Where("threat_actor = ? AND timestamp > ?", actorName, cutoff).Find(&attacks).Error; err != nil {
		return nil, err
	}

	grouped := make(map[string]*ActivityPoint)
	targets := make(map[string]map[string]bool)
	techniques := make(map[string]map[string]bool)

	for _, attack := range attacks {
		date := attack.Timestamp.Format("2006-01-02")
		point, ok := grouped[date]
		if !ok {
			point = &ActivityPoint{Date: date}
			grouped[date] = point
			targets[date] = make(map[string]bool)
			techniques[date] = make(map[string]bool)
		}
		point.Attacks++
		targets[date][attack.TargetCountry] = true
		techniques[date][attack.AttackType] = true
	}

	result := make([]ActivityPoint, 0, len(grouped))
	for date, point := range grouped {
		point.Targets = sortedKeys(targets[date])
		point.Techniques = sortedKeys(techniques[date])
		result = append(result, *point)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	return result, nil
}

// GetThreatFamilies 返回全部威胁家族
func (s *ThreatStore) GetThreatFamilies() ([]models.ThreatFamily, error) {
	var families []models.ThreatFamily
	err := s.db.Order("total_attacks desc").Find(&families).Error
	return families, err
}

// GetThreatActors 返回全部威胁组织
func (s *ThreatStore) GetThreatActors() ([]models.ThreatActor, error) {
	var actors []models.ThreatActor
	err := s.db.Order("total_attacks desc").Find(&actors).Error
	return actors, err
}

// GetStats 存储层聚合统计
func (s *ThreatStore) GetStats() (*Stats, error) {
	stats := &Stats{}

	if err := s.db.Model(&models.Attack{}).Count(&stats.TotalAttacks).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ThreatFamily{}).Count(&stats.TotalFamilies).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ThreatActor{}).Count(&stats.TotalActors).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.MispEvent{}).Count(&stats.TotalMispEvents).Error; err != nil {
		return nil, err
	}

	if stats.TotalAttacks > 0 {
		var oldest, newest models.Attack
		if err := s.db.Order("timestamp asc").First(&oldest).Error; err == nil {
			stats.OldestAttack = &oldest.Timestamp
		}
		if err := s.db.Order("timestamp desc").First(&newest).Error; err == nil {
			stats.NewestAttack = &newest.Timestamp
		}
	}

	return stats, nil
}

// Close 关闭底层数据库连接
func (s *ThreatStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// unionStrings 去重合并两个字符串列表，保持首次出现顺序
func unionStrings(a, b models.StringList) models.StringList {
	seen := make(map[string]bool, len(a)+len(b))
	result := make(models.StringList, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, v := range lists {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

// sortedKeys map键排序输出
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// severityRank 严重度排序值
func severityRank(severity string) int {
	switch severity {
	case models.SeverityCritical:
		return 4
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	default:
		return 0
	}
}
