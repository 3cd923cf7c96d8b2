package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

type BMLTCfg struct {
	RootServerURL string
	DefaultFormat string
	Timeout       int
	UserAgent     string
}

type GeocodingCfg struct {
	Enabled      bool
	BaseURL      string
	CountryCodes string
	// ViewBox is "minLon,minLat,maxLon,maxLat"; empty disables the bias.
	ViewBox   string
	Bounded   bool
	Retries   int
	CacheDSN  string
	CacheSize int
}

type CacheCfg struct {
	Backend    string // redis | memory
	RedisAddr  string
	Size       int
	TTLDefault time.Duration
	TTLHot     time.Duration
	OpTimeout  time.Duration
}

type InvalidationCfg struct {
	Enabled    bool
	Topic      string
	Brokers    string
	GroupID    string
	DedupeSize int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type TracingCfg struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	SampleRatio float64
}

type Config struct {
	Addr         string
	LogLevel     string
	LogConsole   bool
	LogSampleN   int
	Scenario     string
	H3Res        int
	HotThreshold float64
	HotHalfLife  time.Duration

	BMLT         BMLTCfg
	Geocoding    GeocodingCfg
	Cache        CacheCfg
	Invalidation InvalidationCfg
	Metrics      MetricsCfg
	Tracing      TracingCfg
}

// source resolves a config key; env wins over the TOML file.
type source struct {
	file map[string]string
}

func (s source) get(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return s.file[k]
}

// Load reads the optional .env file (BMLT_ENV_FILE, default ".env"), the
// optional TOML file named by BMLT_CONFIG, then the environment.
func Load() (Config, error) {
	envFile := os.Getenv("BMLT_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	src := source{file: map[string]string{}}
	if path := os.Getenv("BMLT_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		file, err := parseTOML(b)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		src.file = file
	}
	return build(src), nil
}

// FromEnv reads the environment only.
func FromEnv() Config {
	return build(source{})
}

func build(s source) Config {
	return Config{
		Addr:         s.getenv("ADDR", ":8090"),
		LogLevel:     s.getenv("LOG_LEVEL", "info"),
		LogConsole:   s.getbool("LOG_CONSOLE", false),
		LogSampleN:   s.getint("LOG_SAMPLE_N", 0),
		Scenario:     s.getenv("SCENARIO", "direct"),
		H3Res:        s.getint("H3_RES", 7),
		HotThreshold: s.getfloat("HOT_THRESHOLD", 5.0),
		HotHalfLife:  s.getduration("HOT_HALF_LIFE", 10*time.Minute),

		BMLT: BMLTCfg{
			RootServerURL: s.getenv("BMLT_ROOT_SERVER_URL", ""),
			DefaultFormat: s.getenv("BMLT_DEFAULT_FORMAT", "json"),
			Timeout:       s.getint("BMLT_TIMEOUT", bmlt.DefaultTimeout),
			UserAgent:     s.getenv("BMLT_USER_AGENT", bmlt.DefaultUserAgent),
		},
		Geocoding: GeocodingCfg{
			Enabled:      s.getbool("GEOCODING_ENABLED", false),
			BaseURL:      s.getenv("GEOCODING_BASE_URL", bmlt.DefaultGeocodingBaseURL),
			CountryCodes: s.getenv("GEOCODING_COUNTRY_CODES", ""),
			ViewBox:      s.getenv("GEOCODING_VIEWBOX", ""),
			Bounded:      s.getbool("GEOCODING_BOUNDED", false),
			Retries:      s.getint("GEOCODING_RETRIES", 0),
			CacheDSN:     s.getenv("GEOCODE_CACHE_DSN", ""),
			CacheSize:    s.getint("GEOCODE_CACHE_SIZE", 1024),
		},
		Cache: CacheCfg{
			Backend:    strings.ToLower(s.getenv("CACHE_BACKEND", "memory")),
			RedisAddr:  s.getenv("REDIS_ADDR", "localhost:6379"),
			Size:       s.getint("CACHE_SIZE", 4096),
			TTLDefault: s.getduration("CACHE_TTL_DEFAULT", 5*time.Minute),
			TTLHot:     s.getduration("CACHE_TTL_HOT", 30*time.Minute),
			OpTimeout:  s.getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Invalidation: InvalidationCfg{
			Enabled:    s.getbool("INVALIDATION_ENABLED", false),
			Topic:      s.getenv("KAFKA_TOPIC", "bmlt-meeting-changes"),
			Brokers:    s.getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID:    s.getenv("KAFKA_GROUP_ID", "bmlt-proxy"),
			DedupeSize: s.getint("INVALIDATION_DEDUPE_SIZE", 4096),
		},
		Metrics: MetricsCfg{
			Enabled: s.getbool("METRICS_ENABLED", true),
			Addr:    s.getenv("METRICS_ADDR", ""),
			Path:    s.getenv("METRICS_PATH", "/metrics"),
		},
		Tracing: TracingCfg{
			Enabled:     s.getbool("TRACING_ENABLED", false),
			Exporter:    strings.ToLower(s.getenv("TRACING_EXPORTER", "stdout")),
			Endpoint:    s.getenv("OTLP_ENDPOINT", ""),
			SampleRatio: s.getfloat("TRACING_SAMPLE_RATIO", 1.0),
		},
	}
}

// Validate reports the first setting the proxy cannot start with.
func (c Config) Validate() error {
	if err := bmlt.ValidateRootServerURL(c.BMLT.RootServerURL); err != nil {
		return fmt.Errorf("BMLT_ROOT_SERVER_URL: %w", err)
	}
	if _, err := bmlt.ParseDataFormat(c.BMLT.DefaultFormat); err != nil {
		return fmt.Errorf("BMLT_DEFAULT_FORMAT: %w", err)
	}
	if c.BMLT.Timeout <= 0 {
		return fmt.Errorf("BMLT_TIMEOUT must be positive, got %d", c.BMLT.Timeout)
	}
	switch c.Scenario {
	case "direct", "cache":
	default:
		return fmt.Errorf("SCENARIO must be direct or cache, got %q", c.Scenario)
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis or memory, got %q", c.Cache.Backend)
	}
	if c.H3Res < 0 || c.H3Res > 15 {
		return fmt.Errorf("H3_RES must be within 0..15, got %d", c.H3Res)
	}
	if _, err := c.Geocoding.ParseViewBox(); err != nil {
		return err
	}
	return nil
}

// ParseViewBox returns nil when no view box is configured.
func (g GeocodingCfg) ParseViewBox() (*bmlt.ViewBox, error) {
	s := strings.TrimSpace(g.ViewBox)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("GEOCODING_VIEWBOX wants minLon,minLat,maxLon,maxLat, got %q", g.ViewBox)
	}
	var f [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("GEOCODING_VIEWBOX part %d: %w", i+1, err)
		}
		f[i] = v
	}
	vb := &bmlt.ViewBox{MinLon: f[0], MinLat: f[1], MaxLon: f[2], MaxLat: f[3]}
	if vb.MinLon >= vb.MaxLon || vb.MinLat >= vb.MaxLat {
		return nil, fmt.Errorf("GEOCODING_VIEWBOX min corner must be below max corner, got %q", g.ViewBox)
	}
	return vb, nil
}

// parseTOML flattens tables onto env style keys: [cache] ttl_hot becomes
// CACHE_TTL_HOT. Arrays are joined with commas.
func parseTOML(b []byte) (map[string]string, error) {
	var doc map[string]any
	if err := toml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	out := map[string]string{}
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case []any:
			parts := make([]string, 0, len(t))
			for _, e := range t {
				parts = append(parts, fmt.Sprint(e))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}

func (s source) getenv(k, def string) string {
	if v := s.get(k); v != "" {
		return v
	}
	return def
}

func (s source) getint(k string, def int) int {
	if v := s.get(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func (s source) getbool(k string, def bool) bool {
	if v := s.get(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func (s source) getfloat(k string, def float64) float64 {
	if v := s.get(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) getduration(k string, def time.Duration) time.Duration {
	if v := s.get(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
