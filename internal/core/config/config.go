// Package config reads the proxy configuration from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type EventsCfg struct {
	Enabled bool
	Topic   string
	Brokers string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	GeoAPIURL      string
	OAuthKey       string
	OAuthSecret    string
	HTTPTimeout    time.Duration
	ContextCellRes int

	CacheEnabled    bool
	RedisAddr       string
	CacheTTL        time.Duration
	CacheTTLOvr     map[string]time.Duration
	CacheLRUSize    int
	CacheOpTimeout  time.Duration
	Events          EventsCfg
	Invalidation    InvalidationCfg
	ShutdownTimeout time.Duration
}

// LoadDotEnv loads a .env file into the process environment. Variables
// already set win over the file; a missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func FromEnv() Config {
	res := getint("CONTEXT_CELL_RES", -1)
	if res > 15 {
		res = 15
	}
	if res < -1 {
		res = -1
	}

	brokers := getenv("KAFKA_BROKERS", "localhost:9092")
	topic := getenv("KAFKA_TOPIC", "geo-record-events")

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		GeoAPIURL:      strings.TrimRight(getenv("GEO_API_URL", "http://api.simplegeo.com"), "/"),
		OAuthKey:       getenv("GEO_OAUTH_KEY", ""),
		OAuthSecret:    getenv("GEO_OAUTH_SECRET", ""),
		HTTPTimeout:    getduration("HTTP_TIMEOUT", 30*time.Second),
		ContextCellRes: res,

		CacheEnabled:   getbool("CACHE_ENABLED", false),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:       getduration("CACHE_TTL", 60*time.Second),
		CacheTTLOvr:    parseDurationMap(getenv("CACHE_TTL_OVERRIDES", "")),
		CacheLRUSize:   getint("CACHE_LRU_SIZE", 4096),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Topic:   topic,
			Brokers: brokers,
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   topic,
			Brokers: brokers,
			GroupID: getenv("KAFKA_GROUP_ID", "geoproxy-invalidator"),
		},
		ShutdownTimeout: getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

// parse "context=5m,layers=30s" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	for _, p := range SplitList(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(kv[1])); err == nil {
			out[k] = d
		}
	}
	return out
}
