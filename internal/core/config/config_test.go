package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "CONTEXT_CELL_RES", "CACHE_ENABLED", "GEO_API_URL", "CACHE_TTL_OVERRIDES"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Addr != ":8090" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.ContextCellRes != -1 {
		t.Fatalf("ContextCellRes=%d want -1 (disabled)", cfg.ContextCellRes)
	}
	if cfg.CacheEnabled {
		t.Fatalf("cache enabled by default")
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.CacheTTL != time.Minute {
		t.Fatalf("timeouts=%v/%v", cfg.HTTPTimeout, cfg.CacheTTL)
	}
	if len(cfg.CacheTTLOvr) != 0 {
		t.Fatalf("overrides=%v", cfg.CacheTTLOvr)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GEO_API_URL", "http://upstream.test/")
	t.Setenv("CONTEXT_CELL_RES", "22")
	t.Setenv("CACHE_ENABLED", "yes")
	t.Setenv("CACHE_TTL", "bogus")
	t.Setenv("CACHE_TTL_OVERRIDES", "context=5m, layers=30s,broken,=1s,records=nope")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EVENTS_ENABLED", "1")

	cfg := FromEnv()
	if cfg.GeoAPIURL != "http://upstream.test" {
		t.Fatalf("GeoAPIURL=%q", cfg.GeoAPIURL)
	}
	if cfg.ContextCellRes != 15 {
		t.Fatalf("ContextCellRes=%d want clamped 15", cfg.ContextCellRes)
	}
	if !cfg.CacheEnabled || !cfg.Events.Enabled {
		t.Fatalf("flags not parsed: %+v", cfg)
	}
	if cfg.CacheTTL != time.Minute {
		t.Fatalf("CacheTTL=%v want default on parse error", cfg.CacheTTL)
	}
	want := map[string]time.Duration{"context": 5 * time.Minute, "layers": 30 * time.Second}
	if len(cfg.CacheTTLOvr) != len(want) {
		t.Fatalf("overrides=%v want %v", cfg.CacheTTLOvr, want)
	}
	for k, v := range want {
		if cfg.CacheTTLOvr[k] != v {
			t.Fatalf("override %s=%v want %v", k, cfg.CacheTTLOvr[k], v)
		}
	}
	if b := SplitList(cfg.Invalidation.Brokers); len(b) != 2 || b[1] != "k2:9092" {
		t.Fatalf("brokers=%v", b)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("GEO_OAUTH_KEY=from-file\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GEO_OAUTH_KEY", "")
	t.Setenv("LOG_LEVEL", "warn")
	_ = os.Unsetenv("GEO_OAUTH_KEY")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg := FromEnv()
	if cfg.OAuthKey != "from-file" {
		t.Fatalf("OAuthKey=%q want from-file", cfg.OAuthKey)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel=%q, file must not override the environment", cfg.LogLevel)
	}
}
