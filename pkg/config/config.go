// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, LLM, Graph, Crawler,
// Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Graph    GraphConfig    `yaml:"graph"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the background
// posting store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchCompleted string `yaml:"searchCompleted"`
}

// RedisConfig holds Redis connection parameters. Redis backs both the
// query-enrichment cache and the pipeline result cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// LLMConfig holds the completion-model settings shared by query parsing and
// posting extraction.
type LLMConfig struct {
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"apiKey"`
	BaseURL        string        `yaml:"baseUrl"`
	CallTimeout    time.Duration `yaml:"callTimeout"`
	BreakerResets  time.Duration `yaml:"breakerResets"`
	BreakerTripsAt int           `yaml:"breakerTripsAt"`
}

// GraphConfig holds Neo4j knowledge-graph connection parameters.
type GraphConfig struct {
	URI         string        `yaml:"uri"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// CrawlerConfig controls the per-source crawlers and the detail-enrichment
// batching of the orchestrator.
type CrawlerConfig struct {
	LinkedIn       SourceConfig  `yaml:"linkedin"`
	Indeed         SourceConfig  `yaml:"indeed"`
	CareerPages    CareerConfig  `yaml:"careerPages"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	DetailLimit    int           `yaml:"detailLimit"`
	BatchSize      int           `yaml:"batchSize"`
	BatchPause     time.Duration `yaml:"batchPause"`
}

// SourceConfig holds settings for a single job-board crawler.
type SourceConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	RateLimit int    `yaml:"rateLimit"` // requests per second
}

// CareerConfig holds settings for the generic career-page crawler.
type CareerConfig struct {
	URLs      []string `yaml:"urls"`
	RateLimit int      `yaml:"rateLimit"`
}

// SearchConfig controls pipeline limits and cache lifetimes.
type SearchConfig struct {
	MaxPerSource       int           `yaml:"maxPerSource"`
	ResultCacheTTL     time.Duration `yaml:"resultCacheTtl"`
	EnrichmentCacheTTL time.Duration `yaml:"enrichmentCacheTtl"`
	NotifierBuffer     int           `yaml:"notifierBuffer"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "jobmet",
			User:            "jobmet",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "jobmet-group",
			Topics: KafkaTopics{
				SearchCompleted: "search-completed",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		LLM: LLMConfig{
			Model:          "gpt-4-turbo-preview",
			CallTimeout:    30 * time.Second,
			BreakerResets:  30 * time.Second,
			BreakerTripsAt: 5,
		},
		Graph: GraphConfig{
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			CallTimeout: 5 * time.Second,
		},
		Crawler: CrawlerConfig{
			LinkedIn: SourceConfig{
				BaseURL:   "https://www.linkedin.com/jobs/search",
				RateLimit: 5,
			},
			Indeed: SourceConfig{
				BaseURL:   "https://www.indeed.com",
				RateLimit: 8,
			},
			CareerPages: CareerConfig{
				RateLimit: 3,
			},
			RequestTimeout: 30 * time.Second,
			DetailLimit:    50,
			BatchSize:      10,
			BatchPause:     time.Second,
		},
		Search: SearchConfig{
			MaxPerSource:       100,
			ResultCacheTTL:     24 * time.Hour,
			EnrichmentCacheTTL: 24 * time.Hour,
			NotifierBuffer:     64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads JM_* environment variables and overrides the
// corresponding config fields. Secrets (API keys, passwords) are expected to
// arrive this way rather than through the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JM_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("JM_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("JM_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("JM_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("JM_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("JM_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("JM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("JM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JM_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("JM_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("JM_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("JM_GRAPH_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("JM_GRAPH_USER"); v != "" {
		cfg.Graph.User = v
	}
	if v := os.Getenv("JM_GRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("JM_CAREER_PAGE_URLS"); v != "" {
		cfg.Crawler.CareerPages.URLs = strings.Split(v, ",")
	}
	if v := os.Getenv("JM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
