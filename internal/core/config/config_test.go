package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BMLT_ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("BMLT_CONFIG", "")
	for _, k := range []string{"BMLT_ROOT_SERVER_URL", "SCENARIO", "CACHE_TTL_HOT", "BMLT_TIMEOUT", "GEOCODING_ENABLED", "KAFKA_BROKERS", "H3_RES", "GEOCODING_VIEWBOX"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scenario != "direct" || cfg.Cache.Backend != "memory" || cfg.BMLT.Timeout != 30 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Cache.TTLHot != 30*time.Minute || cfg.Metrics.Path != "/metrics" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing root server URL should fail validation")
	}
}

func TestLoad_TOMLThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bmlt.toml")
	body := `
scenario = "cache"
h3_res = 8

[bmlt]
root_server_url = "https://bmlt.example.org/main_server"
timeout = 12

[cache]
ttl_hot = "45m"

[kafka]
brokers = ["k1:9092", "k2:9092"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BMLT_CONFIG", path)
	t.Setenv("BMLT_TIMEOUT", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scenario != "cache" || cfg.H3Res != 8 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.BMLT.RootServerURL != "https://bmlt.example.org/main_server" {
		t.Fatalf("root got %q", cfg.BMLT.RootServerURL)
	}
	if cfg.BMLT.Timeout != 20 {
		t.Fatalf("env should override file, timeout=%d", cfg.BMLT.Timeout)
	}
	if cfg.Cache.TTLHot != 45*time.Minute {
		t.Fatalf("ttl hot got %v", cfg.Cache.TTLHot)
	}
	if cfg.Invalidation.Brokers != "k1:9092,k2:9092" {
		t.Fatalf("brokers got %q", cfg.Invalidation.Brokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("GEOCODING_ENABLED=true\nGEOCODING_VIEWBOX=-75,40,-73,41\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BMLT_ENV_FILE", envPath)
	t.Cleanup(func() {
		os.Unsetenv("GEOCODING_ENABLED")
		os.Unsetenv("GEOCODING_VIEWBOX")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Geocoding.Enabled {
		t.Fatalf("GEOCODING_ENABLED from .env not applied")
	}
	vb, err := cfg.Geocoding.ParseViewBox()
	if err != nil || vb == nil {
		t.Fatalf("ParseViewBox: %v %v", vb, err)
	}
	if vb.MinLon != -75 || vb.MaxLat != 41 {
		t.Fatalf("viewbox got %+v", vb)
	}
}

func TestValidate(t *testing.T) {
	base := FromEnv()
	base.BMLT.RootServerURL = "https://bmlt.example.org"
	base.Scenario = "direct"
	base.Cache.Backend = "memory"
	base.BMLT.DefaultFormat = "json"
	base.BMLT.Timeout = 30
	base.H3Res = 7
	base.Geocoding.ViewBox = ""
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"bad url":     func(c *Config) { c.BMLT.RootServerURL = "ftp://x" },
		"bad format":  func(c *Config) { c.BMLT.DefaultFormat = "xml" },
		"bad timeout": func(c *Config) { c.BMLT.Timeout = 0 },
		"bad scene":   func(c *Config) { c.Scenario = "adaptive" },
		"bad backend": func(c *Config) { c.Cache.Backend = "memcached" },
		"bad res":     func(c *Config) { c.H3Res = 16 },
		"bad viewbox": func(c *Config) { c.Geocoding.ViewBox = "1,2,3" },
		"flat box":    func(c *Config) { c.Geocoding.ViewBox = "1,2,1,3" },
	}
	for name, mut := range cases {
		c := base
		mut(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
