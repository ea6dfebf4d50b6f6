package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"threat-radar/internal/classify"
	"threat-radar/internal/config"
	"threat-radar/internal/geo"
	"threat-radar/internal/logging"
	"threat-radar/internal/models"
)

// 每个pulse最多取的指标数
const maxIndicatorsPerPulse = 3

// OTXPulse AlienVault OTX威胁报告
type OTXPulse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	AuthorName        string             `json:"author_name"`
	Created           string             `json:"created"`
	Modified          string             `json:"modified"`
	Tags              []string           `json:"tags"`
	MalwareFamilies   []otxMalwareFamily `json:"malware_families"`
	Industries        []string           `json:"industries"`
	TargetedCountries []string           `json:"targeted_countries"`
	Indicators        []OTXIndicator     `json:"indicators"`
}

// OTXIndicator pulse内的单个可观测指标
type OTXIndicator struct {
	ID          int64  `json:"id"`
	Indicator   string `json:"indicator"`
	Type        string `json:"type"`
	Created     string `json:"created"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// otxMalwareFamily OTX的恶意软件家族字段既可能是字符串也可能是对象
type otxMalwareFamily struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
}

// UnmarshalJSON 兼容字符串和对象两种形态
func (f *otxMalwareFamily) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Name = s
		return nil
	}
	type alias otxMalwareFamily
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*f = otxMalwareFamily(obj)
	return nil
}

// displayName 家族的展示名称
func (f otxMalwareFamily) displayName() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

// otxPulseResponse pulses/subscribed响应
type otxPulseResponse struct {
	Results []OTXPulse `json:"results"`
}

// OTXSource AlienVault OTX数据源适配器
type OTXSource struct {
	cfg      config.OTXConfig
	client   *http.Client
	resolver *geo.Resolver
	logger   *logging.Logger
}

// NewOTXSource 创建OTX适配器
func NewOTXSource(cfg config.OTXConfig, resolver *geo.Resolver, logger *logging.Logger) *OTXSource {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &OTXSource{
		cfg:      cfg,
		client:   newHTTPClient(),
		resolver: resolver,
		logger:   logger,
	}
}

// Name 数据源名称
func (s *OTXSource) Name() string {
	return "otx"
}

// Fetch 拉取订阅的pulse并转换为攻击事件
func (s *OTXSource) Fetch(ctx context.Context) []models.Attack {
	if s.cfg.APIKey == "" {
		s.logger.Warn("OTX API key not configured, skipping OTX feed")
		return nil
	}

	limit := s.cfg.PulseLimit
	if limit <= 0 {
		limit = 20
	}

	url := fmt.Sprintf("%s/pulses/subscribed?limit=%d&page=1", s.cfg.BaseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Error("Failed to build OTX request: %v", err)
		return nil
	}
	req.Header.Set("X-OTX-API-KEY", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("Failed to fetch OTX data: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("OTX API error: status %d", resp.StatusCode)
		return nil
	}

	var data otxPulseResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		s.logger.Error("Failed to decode OTX response: %v", err)
		return nil
	}

	attacks := s.convertPulses(data.Results)
	s.logger.Info("Generated %d attacks from %d OTX pulses", len(attacks), len(data.Results))
	return attacks
}

// convertPulses pulse到攻击事件的转换
// 每个pulse最多取3个IPv4/domain指标
func (s *OTXSource) convertPulses(pulses []OTXPulse) []models.Attack {
	var attacks []models.Attack

	for _, pulse := range pulses {
		timestamp := parsePulseTime(pulse.Modified)

		families := make([]string, 0, len(pulse.MalwareFamilies))
		for _, family := range pulse.MalwareFamilies {
			families = append(families, family.displayName())
		}

		count := 0
		for _, indicator := range pulse.Indicators {
			if indicator.Type != "IPv4" && indicator.Type != "domain" {
				continue
			}
			if count >= maxIndicatorsPerPulse {
				break
			}
			count++

			sourceCountry := s.resolver.CountryFromIP(indicator.Indicator)
			if sourceCountry == "" {
				sourceCountry = geo.RandomHighRiskCountry()
			}

			targetCountry := ""
			if len(pulse.TargetedCountries) > 0 {
				targetCountry = pulse.TargetedCountries[0]
			}
			if targetCountry == "" {
				targetCountry = geo.RandomTargetCountry()
			}

			family := ""
			if len(families) > 0 {
				family = families[0]
			}

			attacks = append(attacks, models.Attack{
				ID:            fmt.Sprintf("otx-%s-%d-%d", pulse.ID, indicator.ID, time.Now().UnixNano()),
				Timestamp:     timestamp,
				SourceCountry: sourceCountry,
				TargetCountry: targetCountry,
				AttackType:    classify.AttackTypeFromTags(pulse.Tags, families),
				Severity:      classify.SeverityFromTags(pulse.Tags, pulse.Industries),
				Status:        classify.SampleStatus(classify.PulseStatus),
				SourceIP:      geo.RealisticIP(sourceCountry),
				TargetIP:      geo.RealisticIP(targetCountry),
				Port:          geo.CommonPort(),
				Protocol:      geo.RandomProtocol(),
				ThreatActor:   classify.AttributeActor(sourceCountry, pulse.AuthorName),
				ThreatFamily:  family,
			})
		}
	}

	return attacks
}

// parsePulseTime 解析pulse时间戳，失败时使用当前时间
func parsePulseTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now()
}
