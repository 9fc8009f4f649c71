package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"recallgate/internal/domain/ranking"
	"recallgate/internal/domain/search"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string         `json:"log_level"`
	LogFormat string         `json:"log_format"`
	Server    ServerConfig   `json:"server"`
	Database  DatabaseConfig `json:"database"`
	Redis     RedisConfig    `json:"redis"`
	Auth      AuthConfig     `json:"auth"`
	Search    search.Config  `json:"search"`
	Ranking   RankingConfig  `json:"ranking"`
}

type ServerConfig struct {
	Host                string `json:"host"`
	Port                int    `json:"port"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

type RankingConfig struct {
	DefaultLambda float64 `json:"default_lambda"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	searchCfg := search.DefaultConfig()
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 60,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
		},
		Search: *searchCfg,
		Ranking: RankingConfig{
			DefaultLambda: ranking.DefaultLambda,
		},
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// .env 非必需，忽略错误
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)

	// 搜索环境变量
	applyString("ES_URL", &c.Search.ESURL)
	applyString("ES_USERNAME", &c.Search.ESUsername)
	applyString("ES_PASSWORD", &c.Search.ESPassword)
	applyString("ES_INDEX", &c.Search.ESIndex)
	applyString("ES_ANALYZER", &c.Search.ESAnalyzer)

	applyString("MILVUS_URL", &c.Search.MilvusURL)
	applyString("MILVUS_TOKEN", &c.Search.MilvusToken)
	applyString("MILVUS_COLLECTION", &c.Search.MilvusCollection)

	applyString("EMBEDDING_BASE_URL", &c.Search.EmbeddingBaseURL)
	applyString("EMBEDDING_API_KEY", &c.Search.EmbeddingAPIKey)
	applyString("EMBEDDING_MODEL", &c.Search.EmbeddingModel)
	applyInt("EMBEDDING_DIMS", &c.Search.EmbeddingDims)

	applyInt("SEARCH_DEFAULT_TOP_N", &c.Search.DefaultTopN)
	applyInt("SEARCH_DEFAULT_RECALL_TOP_K", &c.Search.DefaultRecallTopK)
	applyInt("SEARCH_RECALL_TIMEOUT_MS", &c.Search.RecallTimeoutMS)
	applyInt("SEARCH_CACHE_TTL", &c.Search.CacheTTL)

	applyFloat64("RANKING_DEFAULT_LAMBDA", &c.Ranking.DefaultLambda)
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if !c.Search.HasKeyword() && !c.Search.HasVector() {
		return fmt.Errorf("at least one of ES_URL / MILVUS_URL is required")
	}
	if c.Ranking.DefaultLambda < 0 || c.Ranking.DefaultLambda > 1 {
		return fmt.Errorf("RANKING_DEFAULT_LAMBDA must be within [0, 1]")
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}
