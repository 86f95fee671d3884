package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 LGPD_LLM_PROVIDER 覆盖 llm.provider
const EnvPrefix = "LGPD"

// Config 应用程序配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Document  DocumentConfig  `mapstructure:"document"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Embed     EmbedConfig     `mapstructure:"embed"`
	LLM       LLMConfig       `mapstructure:"llm"`
	VectorDB  VectorDBConfig  `mapstructure:"vectordb"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 需要覆盖生成耗时
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"` // 为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DocumentConfig 文档与分块配置
type DocumentConfig struct {
	Path         string `mapstructure:"path" validate:"required"` // 知识库源文档
	PDFEngine    string `mapstructure:"pdf_engine" validate:"oneof=ledongthuc pdfcpu"`
	ChunkSize    int    `mapstructure:"chunk_size" validate:"gt=0"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	K int `mapstructure:"k" validate:"gte=1"`
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=python ollama openai"`
	Model      string        `mapstructure:"model" validate:"required"`
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	BatchSize  int           `mapstructure:"batch_size" validate:"gte=1"`
	Workers    int           `mapstructure:"workers" validate:"gte=1"`
	Dimensions int           `mapstructure:"dimensions"`
	Device     string        `mapstructure:"device" validate:"oneof=auto cpu"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0"`
}

// LLMConfig 生成模型配置
type LLMConfig struct {
	Provider        string        `mapstructure:"provider" validate:"oneof=python ollama openai"`
	Model           string        `mapstructure:"model" validate:"required"`
	APIKey          string        `mapstructure:"api_key"`
	Endpoint        string        `mapstructure:"endpoint"`
	MaxNewTokens    int           `mapstructure:"max_new_tokens" validate:"gte=1"`
	DoSample        bool          `mapstructure:"do_sample"`
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0"`
	TopK            int           `mapstructure:"top_k" validate:"gte=0"`
	Device          string        `mapstructure:"device" validate:"oneof=auto cpu"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0"`
	PostProcess     string        `mapstructure:"post_process" validate:"oneof=marker trim"`
	MaxPromptTokens int           `mapstructure:"max_prompt_tokens"` // 0 表示不检查
}

// VectorDBConfig 向量索引配置
type VectorDBConfig struct {
	Type     string `mapstructure:"type" validate:"oneof=memory faiss pgvector"`
	DSN      string `mapstructure:"dsn" validate:"required_if=Type pgvector"`
	Distance string `mapstructure:"distance" validate:"oneof=cosine l2 dot"`
}

// CacheConfig 查询向量缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Type     string `mapstructure:"type" validate:"oneof=memory redis"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // 秒
}

// StorageConfig 源文档存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"`
	Root      string `mapstructure:"root"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Type minio"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Type minio"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Load 从文件和环境变量加载配置
// 文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	// .env 仅用于本地开发，缺失不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = "config.yaml"
	}
	v.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); err != nil {
		log.Printf("Warning: Config file not found at %s, using defaults", configPath)
	} else if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandEnvironmentVariables(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// 默认值总能解析
	_ = v.Unmarshal(&cfg)
	return &cfg
}

var validate = validator.New()

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// expandEnvironmentVariables 展开 ${VAR} 形式的密钥引用
func expandEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.Embed.APIKey,
		&cfg.LLM.APIKey,
		&cfg.VectorDB.DSN,
		&cfg.Cache.Password,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
	} {
		if strings.Contains(*field, "${") {
			*field = os.ExpandEnv(*field)
		}
	}
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("document.path", "data/lgpd.pdf")
	v.SetDefault("document.pdf_engine", "ledongthuc")
	v.SetDefault("document.chunk_size", 1000)
	v.SetDefault("document.chunk_overlap", 150)

	v.SetDefault("retrieval.k", 2)

	v.SetDefault("embed.provider", "python")
	v.SetDefault("embed.model", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("embed.api_key", "")
	v.SetDefault("embed.endpoint", "http://localhost:8000/api")
	v.SetDefault("embed.batch_size", 32)
	v.SetDefault("embed.workers", 2)
	v.SetDefault("embed.dimensions", 0)
	v.SetDefault("embed.device", "cpu")
	v.SetDefault("embed.timeout", "60s")
	v.SetDefault("embed.max_retries", 3)

	v.SetDefault("llm.provider", "python")
	v.SetDefault("llm.model", "TinyLlama/TinyLlama-1.1B-Chat-v1.0")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.endpoint", "http://localhost:8000/api")
	v.SetDefault("llm.max_new_tokens", 1024)
	v.SetDefault("llm.do_sample", true)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_k", 50)
	v.SetDefault("llm.device", "auto")
	v.SetDefault("llm.timeout", "5m")
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.post_process", "marker")
	v.SetDefault("llm.max_prompt_tokens", 2048)

	v.SetDefault("vectordb.type", "memory")
	v.SetDefault("vectordb.dsn", "")
	v.SetDefault("vectordb.distance", "cosine")

	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 3600)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.root", ".")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
}
