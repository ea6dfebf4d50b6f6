package geo

import (
	"fmt"
	"math/rand"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"threat-radar/internal/logging"
)

// Coordinate 国家中心点坐标（经度、纬度）
type Coordinate struct {
	Lon float64
	Lat float64
}

// countryCoordinates 国家坐标表
var countryCoordinates = map[string]Coordinate{
	"United States":        {-95.7129, 37.0902},
	"China":                {104.1954, 35.8617},
	"Russia":               {105.3188, 61.5240},
	"Germany":              {10.4515, 51.1657},
	"United Kingdom":       {-3.4360, 55.3781},
	"France":               {2.2137, 46.2276},
	"Japan":                {138.2529, 36.2048},
	"South Korea":          {127.7669, 35.9078},
	"India":                {78.9629, 20.5937},
	"Brazil":               {-51.9253, -14.2350},
	"Canada":               {-106.3468, 56.1304},
	"Australia":            {133.7751, -25.2744},
	"Netherlands":          {5.2913, 52.1326},
	"Sweden":               {18.6435, 60.1282},
	"Israel":               {34.8516, 32.7940},
	"Iran":                 {53.6880, 32.4279},
	"North Korea":          {127.5101, 40.3399},
	"Ukraine":              {31.1656, 49.0139},
	"Poland":               {19.1343, 51.9194},
	"Turkey":               {35.2433, 38.9637},
	"Italy":                {12.5674, 41.8719},
	"Spain":                {-3.7492, 40.4637},
	"Mexico":               {-102.5528, 23.6345},
	"Argentina":            {-63.6167, -38.4161},
	"South Africa":         {22.9375, -30.5595},
	"Egypt":                {30.8025, 26.8206},
	"Nigeria":              {8.6753, 9.0820},
	"Kenya":                {37.9062, -0.0236},
	"Thailand":             {100.9925, 15.8700},
	"Vietnam":              {108.2772, 14.0583},
	"Indonesia":            {113.9213, -0.7893},
	"Malaysia":             {101.9758, 4.2105},
	"Singapore":            {103.8198, 1.3521},
	"Philippines":          {121.7740, 12.8797},
	"Pakistan":             {69.3451, 30.3753},
	"Bangladesh":           {90.3563, 23.6850},
	"Saudi Arabia":         {45.0792, 23.8859},
	"United Arab Emirates": {53.8478, 23.4241},
	"Romania":              {24.9668, 45.9432},
	"Bulgaria":             {25.4858, 42.7339},
	"Hungary":              {19.5033, 47.1625},
	"Czech Republic":       {15.4730, 49.8175},
	"Norway":               {8.4689, 60.4720},
	"Finland":              {25.7482, 61.9241},
	"Denmark":              {9.5018, 56.2639},
	"Belgium":              {4.4699, 50.5039},
	"Switzerland":          {8.2275, 46.8182},
	"Austria":              {14.5501, 47.5162},
	"Portugal":             {-8.2245, 39.3999},
	"Ireland":              {-8.2439, 53.4129},
}

// countryCodeNames ISO国家代码到名称映射
var countryCodeNames = map[string]string{
	"US": "United States", "CN": "China", "RU": "Russia", "DE": "Germany",
	"GB": "United Kingdom", "FR": "France", "JP": "Japan", "KR": "South Korea",
	"IN": "India", "BR": "Brazil", "CA": "Canada", "AU": "Australia",
	"NL": "Netherlands", "SE": "Sweden", "IL": "Israel", "IR": "Iran",
	"KP": "North Korea", "UA": "Ukraine", "PL": "Poland", "TR": "Turkey",
}

// ipPrefixCountries IP前缀到国家的简化映射，按前缀长度降序匹配
var ipPrefixCountries = []struct {
	Prefix  string
	Country string
}{
	{"175.45.", "North Korea"},
	{"210.52.", "North Korea"},
	{"61.", "China"}, {"125.", "China"}, {"202.", "China"}, {"218.", "China"},
	{"5.", "Russia"}, {"46.", "Russia"}, {"78.", "Russia"}, {"95.", "Russia"},
	{"8.", "United States"}, {"23.", "United States"}, {"50.", "United States"}, {"173.", "United States"},
	{"217.", "Germany"}, {"85.", "Germany"},
	{"81.", "United Kingdom"}, {"86.", "United Kingdom"}, {"92.", "United Kingdom"},
}

// countryIPRanges 国家到IP前缀表，用于生成地理上合理的IP
var countryIPRanges = map[string][]string{
	"China":          {"61.", "125.", "202.", "218."},
	"Russia":         {"5.", "46.", "78.", "95."},
	"United States":  {"8.", "23.", "50.", "173."},
	"Germany":        {"46.", "78.", "85.", "217."},
	"United Kingdom": {"81.", "86.", "92.", "212."},
	"Japan":          {"126.", "133.", "153.", "210."},
	"South Korea":    {"1.", "14.", "27.", "175."},
	"North Korea":    {"175.45.", "210.52."},
}

// HighRiskCountries 常见攻击来源国家
var HighRiskCountries = []string{"China", "Russia", "North Korea", "Iran", "Ukraine"}

// CommonTargetCountries 常见被攻击国家
var CommonTargetCountries = []string{
	"United States", "Germany", "United Kingdom", "Japan",
	"South Korea", "France", "Canada", "Australia",
}

// 来源/目标国家的加权采样比例
const (
	HighRiskWeight     = 0.6 // 60%概率选择高风险来源国家
	CommonTargetWeight = 0.7 // 70%概率选择常见目标国家
)

// commonPorts 常见攻击端口
var commonPorts = []int{80, 443, 22, 21, 25, 53, 135, 139, 445, 993, 995, 1433, 3389, 5432, 8080, 8443, 9200, 27017}

// protocols 常见协议
var protocols = []string{"TCP", "UDP", "HTTP", "HTTPS", "SSH", "FTP", "SMTP", "DNS"}

// allCountries 缓存的国家名列表
var allCountries []string

func init() {
	allCountries = make([]string, 0, len(countryCoordinates))
	for name := range countryCoordinates {
		allCountries = append(allCountries, name)
	}
}

// Resolver IP地理解析器
// 优先使用GeoLite2数据库，不可用时回退到内置前缀表
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver 创建地理解析器
// 数据库打开失败不是致命错误，只记录并使用回退模式
func NewResolver(dbPath string) *Resolver {
	var reader *geoip2.Reader
	if dbPath != "" {
		r, err := geoip2.Open(dbPath)
		if err != nil {
			logging.DefaultLogger.Warn("Failed to open GeoIP database %s: %v, using prefix table fallback", dbPath, err)
		} else {
			reader = r
		}
	}
	return &Resolver{reader: reader}
}

// Close 关闭GeoIP数据库
func (r *Resolver) Close() {
	if r.reader != nil {
		r.reader.Close()
	}
}

// CountryFromIP 解析IP所属国家，无法解析时返回空字符串
func (r *Resolver) CountryFromIP(ip string) string {
	if r.reader != nil {
		parsed := net.ParseIP(ip)
		if parsed != nil {
			record, err := r.reader.Country(parsed)
			if err == nil && record.Country.IsoCode != "" {
				if name, ok := countryCodeNames[record.Country.IsoCode]; ok {
					return name
				}
				// 数据库识别了国家但不在我们的词表中
				if name, ok := record.Country.Names["en"]; ok {
					if _, known := countryCoordinates[name]; known {
						return name
					}
				}
			}
		}
	}

	// 前缀表回退
	for _, entry := range ipPrefixCountries {
		if strings.HasPrefix(ip, entry.Prefix) {
			return entry.Country
		}
	}
	return ""
}

// Coordinates 获取国家坐标，未知国家返回ok=false
func Coordinates(country string) (Coordinate, bool) {
	coord, ok := countryCoordinates[country]
	return coord, ok
}

// CountryFromCode ISO代码转国家名，未知代码返回Unknown
func CountryFromCode(code string) string {
	if name, ok := countryCodeNames[strings.ToUpper(code)]; ok {
		return name
	}
	return "Unknown"
}

// AllCountries 返回全部已知国家名
func AllCountries() []string {
	return allCountries
}

// KnownCountry 国家是否可解析坐标
func KnownCountry(country string) bool {
	_, ok := countryCoordinates[country]
	return ok
}

// RandomHighRiskCountry 加权采样攻击来源国家
func RandomHighRiskCountry() string {
	if rand.Float64() < HighRiskWeight {
		return HighRiskCountries[rand.Intn(len(HighRiskCountries))]
	}
	return allCountries[rand.Intn(len(allCountries))]
}

// RandomTargetCountry 加权采样攻击目标国家
func RandomTargetCountry() string {
	if rand.Float64() < CommonTargetWeight {
		return CommonTargetCountries[rand.Intn(len(CommonTargetCountries))]
	}
	return allCountries[rand.Intn(len(allCountries))]
}

// RealisticIP 按国家前缀表合成地理上合理的IP
func RealisticIP(country string) string {
	ranges, ok := countryIPRanges[country]
	if !ok {
		ranges = []string{"192.168."}
	}
	prefix := ranges[rand.Intn(len(ranges))]

	// 前缀可能是一段或两段
	octets := strings.Count(prefix, ".")
	switch octets {
	case 1:
		return fmt.Sprintf("%s%d.%d.%d", prefix, rand.Intn(255), rand.Intn(255), rand.Intn(255))
	default:
		return fmt.Sprintf("%s%d.%d", prefix, rand.Intn(255), rand.Intn(255))
	}
}

// CommonPort 随机常见端口
func CommonPort() int {
	return commonPorts[rand.Intn(len(commonPorts))]
}

// RandomProtocol 随机协议
func RandomProtocol() string {
	return protocols[rand.Intn(len(protocols))]
}
