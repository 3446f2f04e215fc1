package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Exam      ExamConfig      `mapstructure:"exam"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"` // mysql, postgres
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LevelBand 总分低于 MaxScore 时对应的能力等级
type LevelBand struct {
	MaxScore int    `mapstructure:"max_score" json:"maxScore"`
	Label    string `mapstructure:"label" json:"label"`
}

// ExamConfig 评分与统计相关参数，支持热更新
type ExamConfig struct {
	AttemptTTLHours     int         `mapstructure:"attempt_ttl_hours"`
	StatsMinSamples     int         `mapstructure:"stats_min_samples"`
	DefaultGuessing     float64     `mapstructure:"default_guessing"`
	SectionMaxScore     int         `mapstructure:"section_max_score"`
	StrengthThreshold   float64     `mapstructure:"strength_threshold"`
	WeaknessThreshold   float64     `mapstructure:"weakness_threshold"`
	DefaultPercentile   float64     `mapstructure:"default_percentile"`
	LevelBands          []LevelBand `mapstructure:"level_bands"`
	TopLevel            string      `mapstructure:"top_level"`
	ResultCacheMinutes  int         `mapstructure:"result_cache_minutes"`
	ExpirySweepSeconds  int         `mapstructure:"expiry_sweep_seconds"`
	StatsUpdateRetries  int         `mapstructure:"stats_update_retries"`
	SimilarDefaultLimit int         `mapstructure:"similar_default_limit"`
}

// DefaultExamConfig 返回官方四部分 TEPS 格式下的默认参数
func DefaultExamConfig() ExamConfig {
	return ExamConfig{
		AttemptTTLHours:   24,
		StatsMinSamples:   10,
		DefaultGuessing:   0.25,
		SectionMaxScore:   150,
		StrengthThreshold: 80,
		WeaknessThreshold: 60,
		DefaultPercentile: 50,
		LevelBands: []LevelBand{
			{MaxScore: 100, Label: "A1-A2 (Beginner)"},
			{MaxScore: 200, Label: "A2-B1 (Elementary)"},
			{MaxScore: 300, Label: "B1-B2 (Intermediate)"},
			{MaxScore: 400, Label: "B2-C1 (Upper Intermediate)"},
		},
		TopLevel:            "C1-C2 (Advanced)",
		ResultCacheMinutes:  60,
		ExpirySweepSeconds:  60,
		StatsUpdateRetries:  3,
		SimilarDefaultLimit: 5,
	}
}

func (e ExamConfig) AttemptTTL() time.Duration {
	return time.Duration(e.AttemptTTLHours) * time.Hour
}

func (e ExamConfig) ExpirySweepInterval() time.Duration {
	return time.Duration(e.ExpirySweepSeconds) * time.Second
}

func (e ExamConfig) ResultCacheTTL() time.Duration {
	return time.Duration(e.ResultCacheMinutes) * time.Minute
}

func setExamDefaults(v *viper.Viper) {
	d := DefaultExamConfig()
	v.SetDefault("exam.attempt_ttl_hours", d.AttemptTTLHours)
	v.SetDefault("exam.stats_min_samples", d.StatsMinSamples)
	v.SetDefault("exam.default_guessing", d.DefaultGuessing)
	v.SetDefault("exam.section_max_score", d.SectionMaxScore)
	v.SetDefault("exam.strength_threshold", d.StrengthThreshold)
	v.SetDefault("exam.weakness_threshold", d.WeaknessThreshold)
	v.SetDefault("exam.default_percentile", d.DefaultPercentile)
	v.SetDefault("exam.top_level", d.TopLevel)
	v.SetDefault("exam.result_cache_minutes", d.ResultCacheMinutes)
	v.SetDefault("exam.expiry_sweep_seconds", d.ExpirySweepSeconds)
	v.SetDefault("exam.stats_update_retries", d.StatsUpdateRetries)
	v.SetDefault("exam.similar_default_limit", d.SimilarDefaultLimit)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TEPS")
	v.AutomaticEnv()

	v.SetDefault("database.driver", "mysql")
	setExamDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.Exam.LevelBands) == 0 {
		cfg.Exam.LevelBands = DefaultExamConfig().LevelBands
	}
	if err := cfg.Exam.Validate(); err != nil {
		return nil, err
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 检查评分参数是否自洽，等级区间必须严格递增
func (e ExamConfig) Validate() error {
	if e.SectionMaxScore <= 0 {
		return fmt.Errorf("exam.section_max_score must be positive, got %d", e.SectionMaxScore)
	}
	if e.DefaultGuessing < 0 || e.DefaultGuessing >= 1 {
		return fmt.Errorf("exam.default_guessing must be in [0, 1), got %v", e.DefaultGuessing)
	}
	if e.AttemptTTLHours < 1 {
		return fmt.Errorf("exam.attempt_ttl_hours must be at least 1, got %d", e.AttemptTTLHours)
	}
	if e.StatsMinSamples < 1 {
		return fmt.Errorf("exam.stats_min_samples must be at least 1, got %d", e.StatsMinSamples)
	}
	if e.ExpirySweepSeconds < 1 {
		return fmt.Errorf("exam.expiry_sweep_seconds must be at least 1, got %d", e.ExpirySweepSeconds)
	}
	if e.StatsUpdateRetries < 1 {
		return fmt.Errorf("exam.stats_update_retries must be at least 1, got %d", e.StatsUpdateRetries)
	}
	if e.ResultCacheMinutes < 0 {
		return fmt.Errorf("exam.result_cache_minutes must not be negative, got %d", e.ResultCacheMinutes)
	}
	if e.DefaultPercentile < 0 || e.DefaultPercentile > 100 {
		return fmt.Errorf("exam.default_percentile must be in [0, 100], got %v", e.DefaultPercentile)
	}
	if e.WeaknessThreshold > e.StrengthThreshold {
		return fmt.Errorf("exam.weakness_threshold (%v) exceeds strength_threshold (%v)", e.WeaknessThreshold, e.StrengthThreshold)
	}
	prev := 0
	for i, b := range e.LevelBands {
		if i > 0 && b.MaxScore <= prev {
			return fmt.Errorf("exam.level_bands must be strictly increasing at index %d", i)
		}
		prev = b.MaxScore
	}
	return nil
}
