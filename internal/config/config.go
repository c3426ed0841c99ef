package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Scraper      ScraperConfig
	SmartScraper SmartScraperConfig
	Ollama       OllamaConfig
	Dedup        DedupConfig
	Proxy        ProxyConfig
	Webhooks     WebhookConfig
	Alerting     AlertingConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
	LogLevel    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	PoolMaxConns   int32
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ScraperConfig struct {
	MaxRetries     int
	RequestTimeout time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitMaxWait  time.Duration
}

type SmartScraperConfig struct {
	Enabled         bool
	Mode            string
	MaxSites        int
	PreferredMethod string
	UseAI           bool
	Timeout         time.Duration
}

type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

type DedupConfig struct {
	Enabled            bool
	RealtimeEnabled    bool
	CandidateThreshold float64
	AutoMergeThreshold float64
}

type ProxyConfig struct {
	Enabled         bool
	ProxyURL        string
	ControlAddr     string
	ControlPassword string
}

type WebhookConfig struct {
	Endpoints []string
	Timeout   time.Duration
}

type AlertingConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key, def string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		return v
	}
	optInt := func(key string, def int) int {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	}
	optFloat := func(key string, def float64) float64 {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return f
	}
	optBool := func(key string, def bool) bool {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return def
		}
		return d
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: opt("APP_ENV", "development"),
		HTTPPort:    opt("HTTP_PORT", "8000"),
		LogLevel:    opt("LOG_LEVEL", "info"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:         req("DB_HOST"),
		DBPort:         opt("DB_PORT", "5432"),
		DBName:         req("DB_NAME"),
		DBUser:         req("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBSSLMode:      opt("DB_SSL_MODE", "disable"),
		PoolMaxConns:   int32(optInt("DB_POOL_MAX_CONNS", 10)),
		ConnectTimeout: optDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
	}

	cfg.Redis = RedisConfig{
		Addr:     opt("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       optInt("REDIS_DB", 0),
	}

	cfg.Scraper = ScraperConfig{
		MaxRetries:        optInt("SCRAPER_MAX_RETRIES", 3),
		RequestTimeout:    optDuration("SCRAPER_REQUEST_TIMEOUT", 30*time.Second),
		DelayMin:          optDuration("SCRAPER_DELAY_MIN", time.Second),
		DelayMax:          optDuration("SCRAPER_DELAY_MAX", 3*time.Second),
		RateLimitRequests: optInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   optDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitMaxWait:  optDuration("RATE_LIMIT_MAX_WAIT", 60*time.Second),
	}

	cfg.SmartScraper = SmartScraperConfig{
		Enabled:         optBool("SMART_SCRAPER_ENABLED", false),
		Mode:            strings.ToLower(opt("SMART_SCRAPER_MODE", "disabled")),
		MaxSites:        optInt("SMART_SCRAPER_MAX_SITES", 10),
		PreferredMethod: opt("SMART_SCRAPER_PREFERRED_METHOD", "crawler_llm"),
		UseAI:           optBool("SMART_SCRAPER_USE_AI", true),
		Timeout:         optDuration("SMART_SCRAPER_TIMEOUT", 45*time.Second),
	}

	cfg.Ollama = OllamaConfig{
		Host:    opt("OLLAMA_HOST", "http://localhost:11434"),
		Model:   opt("OLLAMA_MODEL", "llama3.2"),
		Timeout: optDuration("OLLAMA_TIMEOUT", 60*time.Second),
	}

	cfg.Dedup = DedupConfig{
		Enabled:            optBool("DEDUP_ENABLED", true),
		RealtimeEnabled:    optBool("DEDUP_REALTIME_ENABLED", true),
		CandidateThreshold: optFloat("DEDUP_CANDIDATE_THRESHOLD", 0.80),
		AutoMergeThreshold: optFloat("DEDUP_AUTO_MERGE_THRESHOLD", 0.95),
	}

	cfg.Proxy = ProxyConfig{
		Enabled:         optBool("PROXY_ENABLED", false),
		ProxyURL:        opt("PROXY_URL", "socks5://127.0.0.1:9050"),
		ControlAddr:     opt("PROXY_CONTROL_ADDR", "127.0.0.1:9051"),
		ControlPassword: os.Getenv("PROXY_CONTROL_PASSWORD"),
	}

	cfg.Webhooks = WebhookConfig{
		Endpoints: splitList(os.Getenv("WEBHOOK_ENDPOINTS")),
		Timeout:   optDuration("WEBHOOK_TIMEOUT", 10*time.Second),
	}

	cfg.Alerting = AlertingConfig{
		Enabled:    optBool("ALERTING_ENABLED", false),
		WebhookURL: strings.TrimSpace(os.Getenv("ALERT_WEBHOOK_URL")),
		Timeout:    optDuration("ALERT_TIMEOUT", 10*time.Second),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
