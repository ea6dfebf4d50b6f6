package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"threat-radar/internal/classify"
	"threat-radar/internal/config"
	"threat-radar/internal/geo"
	"threat-radar/internal/logging"
	"threat-radar/internal/models"
	"threat-radar/internal/store"
)

// MispEvent MISP事件
type MispEvent struct {
	ID            string          `json:"id"`
	Info          string          `json:"info"`
	ThreatLevelID int             `json:"threat_level_id"`
	Analysis      int             `json:"analysis"`
	Date          string          `json:"date"`
	Timestamp     string          `json:"timestamp"`
	Attributes    []MispAttribute `json:"Attribute"`
	Tags          []MispTag       `json:"Tag"`
	Galaxies      []MispGalaxy    `json:"Galaxy"`
}

// MispAttribute 事件属性（IP指标等）
type MispAttribute struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Value    string `json:"value"`
	Comment  string `json:"comment"`
	ToIDS    bool   `json:"to_ids"`
}

// MispTag 事件标签
type MispTag struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Colour string `json:"colour"`
}

// MispGalaxy galaxy分类（威胁组织/恶意软件家族）
type MispGalaxy struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Type     string              `json:"type"`
	Clusters []MispGalaxyCluster `json:"GalaxyCluster"`
}

// MispGalaxyCluster galaxy内的具体条目
type MispGalaxyCluster struct {
	ID          string          `json:"id"`
	Value       string          `json:"value"`
	Description string          `json:"description"`
	Meta        mispClusterMeta `json:"meta"`
}

// mispClusterMeta cluster元数据
type mispClusterMeta struct {
	Country  []string `json:"country"`
	Synonyms []string `json:"synonyms"`
}

// mispSearchResponse restSearch响应
type mispSearchResponse struct {
	Response []MispEvent `json:"response"`
}

// mispSearchRequest restSearch请求体
type mispSearchRequest struct {
	ReturnFormat     string `json:"returnFormat"`
	Last             string `json:"last"`
	IncludeGalaxy    bool   `json:"includeGalaxy"`
	IncludeEventTags bool   `json:"includeEventTags"`
}

// mispTargetCountries 从事件描述中识别目标国家的候选表
var mispTargetCountries = []string{"united states", "germany", "united kingdom", "france", "japan"}

// mispTargetSectors 从事件描述中识别的目标行业候选表
var mispTargetSectors = []string{"government", "financial", "healthcare", "energy", "defense"}

// mispCommonPorts MISP事件缺少端口信号时的采样表
var mispCommonPorts = []int{80, 443, 22, 21, 25, 53, 135, 139, 445}

// mispProtocols MISP事件缺少协议信号时的采样表
var mispProtocols = []string{"TCP", "UDP", "HTTP", "HTTPS"}

// MISPSource MISP数据源适配器
// 除了产出攻击事件外，成功解析的事件还会把威胁家族/组织
// 和原始事件upsert进ThreatStore
type MISPSource struct {
	cfg    config.MISPConfig
	client *http.Client
	st     *store.ThreatStore
	logger *logging.Logger
}

// NewMISPSource 创建MISP适配器，store可为nil（纯转换模式）
func NewMISPSource(cfg config.MISPConfig, st *store.ThreatStore, logger *logging.Logger) *MISPSource {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &MISPSource{
		cfg:    cfg,
		client: newHTTPClient(),
		st:     st,
		logger: logger,
	}
}

// Name 数据源名称
func (s *MISPSource) Name() string {
	return "misp"
}

// Fetch 拉取近期MISP事件并转换为攻击事件
func (s *MISPSource) Fetch(ctx context.Context) []models.Attack {
	events := s.fetchEvents(ctx)
	if len(events) == 0 {
		return nil
	}

	attacks := s.ConvertEvents(events)
	s.extractAndStoreFamilies(events)
	s.extractAndStoreActors(events)
	s.logger.Info("Generated %d attacks from %d MISP events", len(attacks), len(events))
	return attacks
}

// fetchEvents 调用restSearch，未配置API key时回退到内置公开事件
func (s *MISPSource) fetchEvents(ctx context.Context) []MispEvent {
	if s.cfg.APIKey == "" {
		s.logger.Warn("MISP API key not configured, using public data")
		return publicMispEvents()
	}

	days := s.cfg.LookbackDays
	if days <= 0 {
		days = 7
	}

	body, err := json.Marshal(mispSearchRequest{
		ReturnFormat:     "json",
		Last:             fmt.Sprintf("%dd", days),
		IncludeGalaxy:    true,
		IncludeEventTags: true,
	})
	if err != nil {
		s.logger.Error("Failed to marshal MISP request: %v", err)
		return publicMispEvents()
	}

	url := fmt.Sprintf("%s/events/restSearch", s.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Failed to build MISP request: %v", err)
		return publicMispEvents()
	}
	req.Header.Set("Authorization", s.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("Failed to fetch MISP events: %v", err)
		return publicMispEvents()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("MISP API error: status %d", resp.StatusCode)
		return publicMispEvents()
	}

	var data mispSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		s.logger.Error("Failed to decode MISP response: %v", err)
		return publicMispEvents()
	}

	return data.Response
}

// ConvertEvents MISP事件到攻击事件的转换
// 每个ip-src/ip-dst属性产生一条攻击记录
func (s *MISPSource) ConvertEvents(events []MispEvent) []models.Attack {
	var attacks []models.Attack

	for _, event := range events {
		actor := extractThreatActor(event)
		family := extractThreatFamily(event)
		sourceIPs := extractSourceIPs(event)
		targetCountries := extractTargetCountries(event)
		timestamp := parseMispTimestamp(event.Timestamp)

		sourceCountry := classify.ActorCountry(actor)
		if sourceCountry == "" {
			sourceCountry = "Unknown"
		}

		status := models.StatusResolved
		if event.Analysis == 2 {
			status = models.StatusActive
		}

		for _, sourceIP := range sourceIPs {
			targetCountry := ""
			if len(targetCountries) > 0 {
				targetCountry = targetCountries[0]
			}
			if targetCountry == "" {
				targetCountry = geo.CommonTargetCountries[rand.Intn(len(geo.CommonTargetCountries))]
			}

			attack := models.Attack{
				ID:            fmt.Sprintf("misp-%s-%s-%d", event.ID, strings.ReplaceAll(sourceIP, ".", "-"), time.Now().UnixNano()),
				Timestamp:     timestamp,
				SourceCountry: sourceCountry,
				TargetCountry: targetCountry,
				AttackType:    classify.AttackTypeFromInfo(event.Info),
				Severity:      classify.SeverityFromThreatLevel(event.ThreatLevelID),
				Status:        status,
				SourceIP:      sourceIP,
				TargetIP:      fmt.Sprintf("192.168.%d.%d", rand.Intn(255), rand.Intn(255)),
				Port:          mispCommonPorts[rand.Intn(len(mispCommonPorts))],
				Protocol:      mispProtocols[rand.Intn(len(mispProtocols))],
				ThreatActor:   actor,
				ThreatFamily:  family,
				MispEventID:   event.ID,
			}
			attacks = append(attacks, attack)
		}

		s.storeRawEvent(event)
	}

	return attacks
}

// extractAndStoreFamilies 从galaxy提取恶意软件家族并upsert
func (s *MISPSource) extractAndStoreFamilies(events []MispEvent) {
	if s.st == nil {
		return
	}

	for _, event := range events {
		timestamp := parseMispTimestamp(event.Timestamp)
		for _, galaxy := range event.Galaxies {
			if galaxy.Type != "malware" && !strings.Contains(strings.ToLower(galaxy.Name), "malware") {
				continue
			}
			for _, cluster := range galaxy.Clusters {
				countries := models.StringList{}
				if country := classify.ActorCountry(cluster.Value); country != "" {
					countries = append(countries, country)
				}

				family := models.ThreatFamily{
					ID:            fmt.Sprintf("misp-family-%s", cluster.ID),
					Name:          cluster.Value,
					Category:      "Malware",
					FirstSeen:     timestamp,
					LastSeen:      timestamp,
					TotalAttacks:  1,
					Countries:     countries,
					Description:   cluster.Description,
					Aliases:       cluster.Meta.Synonyms,
					Techniques:    extractTechniques(event),
					TargetSectors: extractTargetSectors(event),
				}
				if err := s.st.StoreThreatFamily(family); err != nil {
					s.logger.Error("Failed to store threat family %s: %v", family.Name, err)
				}
			}
		}
	}
}

// extractAndStoreActors 从galaxy提取威胁组织并upsert
func (s *MISPSource) extractAndStoreActors(events []MispEvent) {
	if s.st == nil {
		return
	}

	for _, event := range events {
		name := extractThreatActor(event)
		if name == "" {
			continue
		}

		country := classify.ActorCountry(name)
		if country == "" {
			country = "Unknown"
		}

		active := 0
		if event.Analysis == 2 {
			active = 1
		}

		actor := models.ThreatActor{
			ID:            fmt.Sprintf("misp-actor-%s", strings.ToLower(strings.ReplaceAll(name, " ", "-"))),
			Name:          name,
			Country:       country,
			Type:          classify.ActorType(name),
			ActiveAttacks: active,
			TotalAttacks:  1,
			LastSeen:      parseMispTimestamp(event.Timestamp),
			RiskLevel:     classify.SeverityFromThreatLevel(event.ThreatLevelID),
		}
		if err := s.st.StoreThreatActor(actor); err != nil {
			s.logger.Error("Failed to store threat actor %s: %v", actor.Name, err)
		}
	}
}

// storeRawEvent 保存MISP原始事件
func (s *MISPSource) storeRawEvent(event MispEvent) {
	if s.st == nil {
		return
	}

	attributes, _ := json.Marshal(event.Attributes)
	tags, _ := json.Marshal(event.Tags)
	galaxies, _ := json.Marshal(event.Galaxies)

	raw := models.MispEvent{
		ID:            fmt.Sprintf("misp-%s", event.ID),
		EventID:       event.ID,
		Info:          event.Info,
		ThreatLevelID: event.ThreatLevelID,
		Analysis:      event.Analysis,
		Date:          event.Date,
		Timestamp:     parseMispTimestamp(event.Timestamp),
		Attributes:    string(attributes),
		Tags:          string(tags),
		Galaxies:      string(galaxies),
	}
	if err := s.st.StoreMispEvent(raw); err != nil {
		s.logger.Error("Failed to store MISP event %s: %v", event.ID, err)
	}
}

// extractThreatActor 从galaxy或标签中提取威胁组织名
func extractThreatActor(event MispEvent) string {
	for _, galaxy := range event.Galaxies {
		if galaxy.Type == "threat-actor" || strings.Contains(strings.ToLower(galaxy.Name), "threat") {
			for _, cluster := range galaxy.Clusters {
				return cluster.Value
			}
		}
	}

	// 标签形如 misp-galaxy:threat-actor="APT28"
	for _, tag := range event.Tags {
		if strings.Contains(tag.Name, "threat-actor=") {
			parts := strings.SplitN(tag.Name, "=", 2)
			if len(parts) == 2 {
				return strings.Trim(parts[1], `"`)
			}
		}
	}

	return ""
}

// extractThreatFamily 从galaxy中提取恶意软件家族名
func extractThreatFamily(event MispEvent) string {
	for _, galaxy := range event.Galaxies {
		if galaxy.Type == "malware" || strings.Contains(strings.ToLower(galaxy.Name), "malware") {
			for _, cluster := range galaxy.Clusters {
				return cluster.Value
			}
		}
	}
	return ""
}

// extractSourceIPs 提取ip-src/ip-dst属性值
func extractSourceIPs(event MispEvent) []string {
	var ips []string
	for _, attr := range event.Attributes {
		if attr.Type == "ip-src" || attr.Type == "ip-dst" {
			ips = append(ips, attr.Value)
		}
	}
	return ips
}

// extractTargetCountries 从事件描述中识别目标国家
func extractTargetCountries(event MispEvent) []string {
	info := strings.ToLower(event.Info)
	var countries []string
	for _, country := range mispTargetCountries {
		if strings.Contains(info, country) {
			countries = append(countries, titleCase(country))
		}
	}
	return countries
}

// extractTechniques 从属性类别中提取技术列表
func extractTechniques(event MispEvent) models.StringList {
	var techniques models.StringList
	for _, attr := range event.Attributes {
		if attr.Category == "Payload delivery" || attr.Category == "Network activity" {
			techniques = append(techniques, attr.Type)
		}
	}
	return techniques
}

// extractTargetSectors 从事件描述中识别目标行业
func extractTargetSectors(event MispEvent) models.StringList {
	info := strings.ToLower(event.Info)
	var sectors models.StringList
	for _, sector := range mispTargetSectors {
		if strings.Contains(info, sector) {
			sectors = append(sectors, sector)
		}
	}
	return sectors
}

// parseMispTimestamp MISP时间戳为unix秒字符串
func parseMispTimestamp(value string) time.Time {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0)
	}
	return time.Now()
}

// titleCase 每个单词首字母大写
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// publicMispEvents 未配置API key时的内置公开威胁情报事件
func publicMispEvents() []MispEvent {
	now := time.Now()
	timestamp := strconv.FormatInt(now.Unix(), 10)
	date := now.Format("2006-01-02")

	return []MispEvent{
		{
			ID:            "misp-1",
			Info:          "APT28 Fancy Bear Campaign - Government Targeting",
			ThreatLevelID: 1,
			Analysis:      2,
			Date:          date,
			Timestamp:     timestamp,
			Attributes: []MispAttribute{
				{
					ID:       "attr-1",
					Type:     "ip-src",
					Category: "Network activity",
					Value:    "185.86.151.11",
					Comment:  "C&C Server",
					ToIDS:    true,
				},
			},
			Tags: []MispTag{
				{ID: "tag-1", Name: "tlp:amber", Colour: "#FFC000"},
				{ID: "tag-2", Name: `misp-galaxy:threat-actor="APT28"`, Colour: "#FF0000"},
			},
			Galaxies: []MispGalaxy{
				{
					ID:   "galaxy-1",
					Name: "Threat Actor",
					Type: "threat-actor",
					Clusters: []MispGalaxyCluster{
						{
							ID:          "cluster-1",
							Value:       "APT28",
							Description: "Russian military intelligence cyber espionage group",
							Meta:        mispClusterMeta{Country: []string{"Russia"}, Synonyms: []string{"Fancy Bear", "Sofacy"}},
						},
					},
				},
			},
		},
		{
			ID:            "misp-2",
			Info:          "Lazarus Group Cryptocurrency Exchange Attack",
			ThreatLevelID: 1,
			Analysis:      2,
			Date:          date,
			Timestamp:     timestamp,
			Galaxies: []MispGalaxy{
				{
					ID:   "galaxy-2",
					Name: "Threat Actor",
					Type: "threat-actor",
					Clusters: []MispGalaxyCluster{
						{
							ID:          "cluster-2",
							Value:       "Lazarus Group",
							Description: "North Korean state-sponsored cyber group",
							Meta:        mispClusterMeta{Country: []string{"North Korea"}, Synonyms: []string{"HIDDEN COBRA"}},
						},
					},
				},
			},
		},
	}
}
