// 包 config：集中读取运行配置；先由 godotenv 加载 .env 文件，再读取环境变量并套用默认值
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 默认图层服务（ArcGIS 示例服务 USA MapServer）
const (
	DefaultStatesURL   = "https://sampleserver6.arcgisonline.com/arcgis/rest/services/USA/MapServer/2"
	DefaultCountiesURL = "https://sampleserver6.arcgisonline.com/arcgis/rest/services/USA/MapServer/3"
	DefaultCitiesURL   = "https://sampleserver6.arcgisonline.com/arcgis/rest/services/USA/MapServer/0"
	DefaultHighwaysURL = "https://sampleserver6.arcgisonline.com/arcgis/rest/services/USA/MapServer/1"
)

// Layer：单个专题图层的静态配置
type Layer struct {
	URL     string
	Title   string
	Visible bool
}

// SizeStop：人口分级尺寸断点
type SizeStop struct {
	Value float64
	Size  float64
	Label string
}

type Config struct {
	Addr      string
	APIBase   string
	LogLevel  string
	LogFormat string

	FeatureSource   string
	SnapshotDir     string
	RESTTimeout     time.Duration
	RESTMaxAttempts int
	RESTMirrors     []string
	ValidateLayers  bool

	States   Layer
	Counties Layer
	Cities   Layer
	Highways Layer

	SearchRadiusKm float64
	CitySizeStops  []SizeStop
	HitToleranceM  float64

	CacheDriver string
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RedisPrefix string

	GeoIPPath string

	TLSEnable        bool
	TLSCertPath      string
	TLSKeyPath       string
	RateLimitEnabled bool
	RateLimitQPS     int
}

// DefaultSizeStops：城市人口尺寸断点默认值（>=1万:4，>=10万:8，>=100万:16）
func DefaultSizeStops() []SizeStop {
	return []SizeStop{
		{Value: 10000, Size: 4, Label: "10,000"},
		{Value: 100000, Size: 8, Label: "100,000"},
		{Value: 1000000, Size: 16, Label: "1,000,000"},
	}
}

// Load：加载 .env 文件（缺失忽略）后解析环境变量
// 约束：数值型变量解析失败时返回错误，并带上变量名
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", filepath.Join("data", "env", ".env")}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	cfg := Config{
		Addr:            getenv("ADDR", ":8080"),
		APIBase:         strings.TrimRight(getenv("API_BASE", "/api"), "/"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "text"),
		FeatureSource:   strings.ToLower(getenv("FEATURE_SOURCE", "rest")),
		SnapshotDir:     getenv("SNAPSHOT_DIR", filepath.Join("data", "layers")),
		RESTTimeout:     15 * time.Second,
		RESTMaxAttempts: 3,
		ValidateLayers:  true,
		States:          Layer{URL: getenv("LAYER_STATES_URL", DefaultStatesURL), Title: getenv("LAYER_STATES_TITLE", "美国州"), Visible: true},
		Counties:        Layer{URL: getenv("LAYER_COUNTIES_URL", DefaultCountiesURL), Title: getenv("LAYER_COUNTIES_TITLE", "美国县"), Visible: true},
		Cities:          Layer{URL: getenv("LAYER_CITIES_URL", DefaultCitiesURL), Title: getenv("LAYER_CITIES_TITLE", "美国城市"), Visible: true},
		Highways:        Layer{URL: getenv("LAYER_HIGHWAYS_URL", DefaultHighwaysURL), Title: getenv("LAYER_HIGHWAYS_TITLE", "美国高速公路"), Visible: true},
		SearchRadiusKm:  50,
		CitySizeStops:   DefaultSizeStops(),
		HitToleranceM:   3000,
		CacheDriver:     strings.ToLower(getenv("CACHE_DRIVER", "sqlite")),
		SQLitePath:      getenv("SQLITE_PATH", filepath.Join("data", "citycache.db")),
		PostgresDSN:     os.Getenv("PG_DSN"),
		RedisPass:       os.Getenv("REDIS_PASS"),
		RedisPrefix:     getenv("REDIS_PREFIX", "citymap"),
		GeoIPPath:       os.Getenv("GEOIP_DB_PATH"),
		TLSEnable:       false,
		TLSCertPath:     getenv("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:      getenv("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		RateLimitQPS:    200,
	}
	cfg.RedisAddr = getenv("REDIS_HOST", "127.0.0.1") + ":" + getenv("REDIS_PORT", "6379")
	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = buildPostgresDSN()
	}

	if v := os.Getenv("REST_TIMEOUT_S"); v != "" {
		var n int
		if err := parseInt(&n, v); err != nil {
			return Config{}, fmt.Errorf("REST_TIMEOUT_S: %w", err)
		}
		cfg.RESTTimeout = time.Duration(n) * time.Second
	}
	if v := os.Getenv("REST_MAX_ATTEMPTS"); v != "" {
		if err := parseInt(&cfg.RESTMaxAttempts, v); err != nil {
			return Config{}, fmt.Errorf("REST_MAX_ATTEMPTS: %w", err)
		}
	}
	cfg.RESTMirrors = splitAndTrim(os.Getenv("REST_MIRRORS"))
	if v := os.Getenv("VALIDATE_LAYERS"); v != "" {
		if err := parseBool(&cfg.ValidateLayers, v); err != nil {
			return Config{}, fmt.Errorf("VALIDATE_LAYERS: %w", err)
		}
	}
	if v := os.Getenv("SEARCH_RADIUS_KM"); v != "" {
		if err := parseFloat(&cfg.SearchRadiusKm, v); err != nil {
			return Config{}, fmt.Errorf("SEARCH_RADIUS_KM: %w", err)
		}
		if cfg.SearchRadiusKm <= 0 {
			return Config{}, fmt.Errorf("SEARCH_RADIUS_KM: must be positive, got %v", cfg.SearchRadiusKm)
		}
	}
	if v := os.Getenv("CITY_SIZE_STOPS"); v != "" {
		stops, err := ParseSizeStops(v)
		if err != nil {
			return Config{}, fmt.Errorf("CITY_SIZE_STOPS: %w", err)
		}
		cfg.CitySizeStops = stops
	}
	if v := os.Getenv("HIT_TOLERANCE_M"); v != "" {
		if err := parseFloat(&cfg.HitToleranceM, v); err != nil {
			return Config{}, fmt.Errorf("HIT_TOLERANCE_M: %w", err)
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if err := parseInt(&cfg.RedisDB, v); err != nil {
			return Config{}, fmt.Errorf("REDIS_DB: %w", err)
		}
	}
	for name, target := range map[string]*bool{
		"LAYER_STATES_VISIBLE":   &cfg.States.Visible,
		"LAYER_COUNTIES_VISIBLE": &cfg.Counties.Visible,
		"LAYER_CITIES_VISIBLE":   &cfg.Cities.Visible,
		"LAYER_HIGHWAYS_VISIBLE": &cfg.Highways.Visible,
		"TLS_ENABLE":             &cfg.TLSEnable,
		"RATE_LIMIT_ENABLED":     &cfg.RateLimitEnabled,
	} {
		if v := os.Getenv(name); v != "" {
			if err := parseBool(target, v); err != nil {
				return Config{}, fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	if v := os.Getenv("RATE_LIMIT_QPS"); v != "" {
		if err := parseInt(&cfg.RateLimitQPS, v); err != nil {
			return Config{}, fmt.Errorf("RATE_LIMIT_QPS: %w", err)
		}
	}

	switch cfg.FeatureSource {
	case "rest", "snapshot":
	default:
		return Config{}, fmt.Errorf("FEATURE_SOURCE: unknown source %q", cfg.FeatureSource)
	}
	switch cfg.CacheDriver {
	case "sqlite", "postgres", "redis", "memory":
	default:
		return Config{}, fmt.Errorf("CACHE_DRIVER: unknown driver %q", cfg.CacheDriver)
	}
	return cfg, nil
}

// ParseSizeStops：解析 "值:尺寸,值:尺寸" 形式的断点列表，按值升序返回
func ParseSizeStops(s string) ([]SizeStop, error) {
	var out []SizeStop
	for _, part := range splitAndTrim(s) {
		v, sz, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("bad stop %q, want value:size", part)
		}
		var stop SizeStop
		if err := parseFloat(&stop.Value, v); err != nil {
			return nil, fmt.Errorf("stop %q: %w", part, err)
		}
		if err := parseFloat(&stop.Size, sz); err != nil {
			return nil, fmt.Errorf("stop %q: %w", part, err)
		}
		stop.Label = strconv.FormatFloat(stop.Value, 'f', -1, 64)
		out = append(out, stop)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no stops")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func buildPostgresDSN() string {
	dsn := "postgres://" + getenv("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + getenv("PG_HOST", "localhost") + ":" + getenv("PG_PORT", "5432") + "/" + getenv("PG_DB", "citymap")
	dsn += "?sslmode=" + getenv("PG_SSLMODE", "disable")
	return dsn
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseInt(target *int, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*target = n
	return nil
}

func parseFloat(target *float64, value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return err
	}
	*target = f
	return nil
}

func parseBool(target *bool, value string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	*target = b
	return nil
}

func splitAndTrim(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
