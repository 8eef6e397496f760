package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled        bool
	Topic          string
	Brokers        []string
	GroupID        string
	InitialOldest  bool
	SessionTimeout time.Duration
	Heartbeat      time.Duration
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	LogSampleN      int
	APITitle        string
	ElasticURLs     []string
	ElasticIndex    string
	ElasticUsername string
	ElasticPassword string
	SearchTimeout   time.Duration
	IDPolicy        string
	URNBaseURL      string
	Scenario        string
	CacheDriver     string
	RedisAddr       string
	CacheTTLDefault time.Duration
	CacheOpTimeout  time.Duration
	CacheMemorySize int
	Invalidation    InvalidationCfg
	MetricsEnabled  bool
}

func FromEnv() Config {
	addr := getenv("ADDR", "")
	if addr == "" {
		addr = ":" + getenv("PORT", "3001")
	}

	return Config{
		Addr:            addr,
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		LogSampleN:      getint("LOG_SAMPLE_N", 0),
		APITitle:        getenv("API_TITLE", "NYC Space/Time Directory API"),
		ElasticURLs:     getlist("ELASTICSEARCH_URLS", "http://localhost:9200"),
		ElasticIndex:    getenv("ELASTICSEARCH_INDEX", "pits"),
		ElasticUsername: getenv("ELASTICSEARCH_USERNAME", ""),
		ElasticPassword: getenv("ELASTICSEARCH_PASSWORD", ""),
		SearchTimeout:   getduration("SEARCH_TIMEOUT", 10*time.Second),
		IDPolicy:        strings.ToLower(getenv("ID_POLICY", "plain")),
		URNBaseURL:      getenv("URN_BASE_URL", "http://spacetime.nypl.org/"),
		Scenario:        getenv("SCENARIO", "baseline"),
		CacheDriver:     strings.ToLower(getenv("CACHE_DRIVER", "redis")),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		CacheTTLDefault: getduration("CACHE_TTL_DEFAULT", 5*time.Minute),
		CacheOpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CacheMemorySize: getint("CACHE_MEMORY_SIZE", 4096),
		Invalidation: InvalidationCfg{
			Enabled:        getbool("INVALIDATION_ENABLED", false),
			Topic:          getenv("KAFKA_TOPIC", "pit-dataset-updates"),
			Brokers:        getlist("KAFKA_BROKERS", "localhost:9092"),
			GroupID:        getenv("KAFKA_GROUP_ID", "pit-api-cache"),
			InitialOldest:  getbool("KAFKA_INITIAL_OLDEST", false),
			SessionTimeout: getduration("KAFKA_SESSION_TIMEOUT", 10*time.Second),
			Heartbeat:      getduration("KAFKA_HEARTBEAT", 3*time.Second),
		},
		MetricsEnabled: getbool("METRICS_ENABLED", true),
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

// parse "a, b,,c" into [a b c]
func getlist(k, def string) []string {
	raw := getenv(k, def)
	var out []string
	for p := range strings.SplitSeq(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
