package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GoogleConfig Google Maps Platform 설정
type GoogleConfig struct {
	APIKey         string
	Region         string // ISO region code used for autocomplete/validation (AU)
	Language       string
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
}

// BreakerConfig circuit breaker 설정 (Google API 호출 보호)
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// FinderConfig 주소 검색 정책 값
// 모두 제품 튜닝 값이므로 코드에 인라인하지 않는다.
type FinderConfig struct {
	AutoSelectConfidence float64
	HighConfidence       float64
	MediumConfidence     float64
	HistoryLimit         int
	MaxSuggestions       int
	SearchCacheTTL       time.Duration
	DetailsCacheTTL      time.Duration
	SessionIdleTimeout   time.Duration
}

// BridgeConfig 세션 업데이트 브리지 설정 (Kafka / HTTP)
type BridgeConfig struct {
	KafkaBrokers      []string
	KafkaTopic        string
	// 동기 writer 배치 대기 상한
	KafkaBatchTimeout time.Duration
	HTTPURL           string
	APIKey            string
}

type Config struct {
	// Server
	ServerPort string
	ServerEnv  string

	// Database - 비어 있으면 캐시/이력은 메모리에서만 유지
	DatabaseURL         string
	DatabaseAutoMigrate bool

	// Agent tool 호출용 API key (비어 있으면 검사하지 않음)
	AgentAPIKey string
	// /metrics 내부망 전용 여부
	MetricsInternalOnly bool

	Google  GoogleConfig
	Breaker BreakerConfig
	Finder  FinderConfig
	Bridge  BridgeConfig

	// SigNoz
	SigNozEndpoint string
}

func Load() *Config {
	return &Config{
		// Server
		ServerPort: getEnv("SERVER_PORT", "3000"),
		ServerEnv:  getEnv("SERVER_ENV", "development"),

		DatabaseURL:         getDatabaseURL(),
		DatabaseAutoMigrate: getEnvAsBool("DATABASE_AUTO_MIGRATE", true),

		AgentAPIKey:         getEnv("AGENT_API_KEY", ""),
		MetricsInternalOnly: getEnvAsBool("METRICS_INTERNAL_ONLY", false),

		Google: GoogleConfig{
			APIKey:         getEnv("GOOGLE_MAPS_API_KEY", ""),
			Region:         getEnv("GOOGLE_REGION", "au"),
			Language:       getEnv("GOOGLE_LANGUAGE", "en-AU"),
			RequestsPerSec: getEnvAsFloat("GOOGLE_REQUESTS_PER_SEC", 10),
			Burst:          getEnvAsInt("GOOGLE_BURST", 5),
			Timeout:        getEnvAsDuration("GOOGLE_TIMEOUT", 10*time.Second),
		},

		Breaker: BreakerConfig{
			MaxFailures:  getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			ResetTimeout: getEnvAsDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		},

		Finder: FinderConfig{
			AutoSelectConfidence: getEnvAsFloat("FINDER_AUTO_SELECT_CONFIDENCE", DefaultAutoSelectConfidence),
			HighConfidence:       getEnvAsFloat("FINDER_HIGH_CONFIDENCE", DefaultHighConfidence),
			MediumConfidence:     getEnvAsFloat("FINDER_MEDIUM_CONFIDENCE", DefaultMediumConfidence),
			HistoryLimit:         getEnvAsInt("FINDER_HISTORY_LIMIT", DefaultHistoryLimit),
			MaxSuggestions:       getEnvAsInt("FINDER_MAX_SUGGESTIONS", 5),
			SearchCacheTTL:       getEnvAsDuration("FINDER_SEARCH_CACHE_TTL", 10*time.Minute),
			DetailsCacheTTL:      getEnvAsDuration("FINDER_DETAILS_CACHE_TTL", 30*24*time.Hour),
			SessionIdleTimeout:   getEnvAsDuration("FINDER_SESSION_IDLE_TIMEOUT", 2*time.Hour),
		},

		Bridge: BridgeConfig{
			KafkaBrokers:      getEnvAsList("KAFKA_BROKERS"),
			KafkaTopic:        getEnv("KAFKA_SESSION_TOPIC", "reop.address-finder.session-updates"),
			KafkaBatchTimeout: getEnvAsDuration("KAFKA_BATCH_TIMEOUT", DefaultKafkaBatchTimeout),
			HTTPURL:           getEnv("BRIDGE_URL", ""),
			APIKey:            getEnv("BRIDGE_API_KEY", ""),
		},

		// SigNoz
		SigNozEndpoint: getEnv("SIGNOZ_ENDPOINT", ""),
	}
}

// Policy defaults
const (
	DefaultAutoSelectConfidence = 0.7
	DefaultHighConfidence       = 0.8
	DefaultMediumConfidence     = 0.6
	DefaultHistoryLimit         = 100

	DefaultKafkaBatchTimeout = 10 * time.Millisecond
)

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or plain seconds ("15")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getDatabaseURL returns DATABASE_URL or builds it from individual env vars
func getDatabaseURL() string {
	// 1. DATABASE_URL이 있으면 그대로 사용
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	// 2. POSTGRES_HOST가 없으면 DB 없이 동작
	host := getEnv("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "")
	dbname := getEnv("POSTGRES_DB", "reop")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, dbname, sslmode)
}
