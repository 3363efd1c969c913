package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	H3Res     int
	QueueSize int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr                 string
	LogLevel             string
	LogConsole           bool
	LogSampleN           int
	IndexBaseURL         string
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
	DetailedCountries    []string
	GeometryCacheSize    int
	RedisAddr            string
	DocCacheTTL          time.Duration
	CacheOpTimeout       time.Duration
	ShutdownTimeout      time.Duration
	Events               EventsCfg
	Metrics              MetricsCfg
}

// SharedTierEnabled is true when a Redis address is configured.
func (c Config) SharedTierEnabled() bool { return c.RedisAddr != "" }

func FromEnv() Config {
	res := getint("EVENTS_H3_RES", 7)
	if res < 0 || res > 15 {
		res = 7
	}
	conc := getint("MAX_CONCURRENT_FETCHES", 8)
	if conc < 1 {
		conc = 1
	}

	return Config{
		Addr:                 getenv("ADDR", ":8090"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogConsole:           getbool("LOG_CONSOLE", false),
		LogSampleN:           getint("LOG_SAMPLE_N", 0),
		IndexBaseURL:         strings.TrimRight(getenv("INDEX_BASE_URL", "http://localhost:8080/regions"), "/"),
		FetchTimeout:         getduration("FETCH_TIMEOUT", 5*time.Second),
		MaxConcurrentFetches: conc,
		DetailedCountries:    parseList(getenv("DETAILED_COUNTRIES", "USA")),
		GeometryCacheSize:    getint("GEOMETRY_CACHE_SIZE", 256),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		DocCacheTTL:          getduration("DOC_CACHE_TTL", 24*time.Hour),
		CacheOpTimeout:       getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		ShutdownTimeout:      getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   parseList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:     getenv("KAFKA_TOPIC", "region-view-events"),
			H3Res:     res,
			QueueSize: getint("EVENTS_QUEUE_SIZE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
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
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,,c" into [a b c]; "-" yields an empty, non-nil list
func parseList(s string) []string {
	out := []string{}
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
