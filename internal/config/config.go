package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/lecture-pipeline/pkg/icron"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Only the storage directory is required; every external service is optional
// and its absence makes the matching provider stage fall through.
//
// Environment Variables:
// Storage:
// - STORAGE_DIR: base directory holding videos/ and transcripts/ (default: ./storage)
//
// Speech:
// - WHISPER_SERVER_URL: local speech server (default: http://localhost:5000)
// - WHISPER_PYTHON: python executable for direct invocation (default: python)
// - TRANSCRIBE_LANGUAGE: spoken language of lectures (default: en)
// - FFMPEG_PATHS: colon separated ffmpeg candidates (default: ffmpeg plus common install paths)
//
// Local LLM:
// - OLLAMA_URL: local inference server (default: http://localhost:11434)
// - OLLAMA_MODEL: model name (default: llama3.2)
// - OLLAMA_TIMEOUT: request timeout in seconds (default: 120)
//
// Hosted AI (optional):
// - OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_CHAT_MODEL (default: gpt-3.5-turbo)
//
// Pipeline:
// - WORKER_COUNT (default: 2), PIPELINE_TIMEOUT (default: 9m), CHUNK_WORDS (default: 1000)
// - PROVIDERS_FILE: optional YAML provider order file, seeded with defaults when missing
//
// Backends:
// - DB_DRIVER: sqlite | mysql (default: sqlite), DB_DSN (mysql), DB_PATH (sqlite, default: <STORAGE_DIR>/lectures.db)
// - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: optional status cache
// - S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, S3_USE_SSL: optional transcript mirror
// - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME: optional tracing
//
// System:
// - HTTP_ADDR (default: :8080), UI_STATIC_DIR (default: empty, UI off), LOG_LEVEL (default: info), LOG_FILE (default: stdout), MAINTENANCE_CRON (default: */30 * * * *)
type Config struct {
	Storage     StorageConfig     `json:"storage"`
	Whisper     WhisperConfig     `json:"whisper"`
	Ollama      OllamaConfig      `json:"ollama"`
	Hosted      HostedConfig      `json:"hosted"`
	Pipeline    PipelineConfig    `json:"pipeline"`
	Database    DatabaseConfig    `json:"database"`
	Cache       CacheConfig       `json:"cache"`
	ObjectStore ObjectStoreConfig `json:"object_store"`
	Tracing     TracingConfig     `json:"tracing"`
	HTTP        HTTPConfig        `json:"http"`
	Maintenance MaintenanceConfig `json:"maintenance"`
	Log         LogConfig         `json:"log"`
}

type StorageConfig struct {
	Dir string `json:"dir"`
}

func (c StorageConfig) VideosDir() string {
	return filepath.Join(c.Dir, "videos")
}

func (c StorageConfig) TranscriptsDir() string {
	return filepath.Join(c.Dir, "transcripts")
}

type WhisperConfig struct {
	ServerURL   string       `json:"server_url"`
	Python      string       `json:"python"`
	Language    language.Tag `json:"language"`
	FFmpegPaths []string     `json:"ffmpeg_paths"`
}

// DirectModel picks the smallest whisper model for the configured language.
func (c WhisperConfig) DirectModel() string {
	base, _ := c.Language.Base()
	enBase, _ := language.English.Base()
	if base == enBase {
		return "tiny.en"
	}
	return "tiny"
}

type OllamaConfig struct {
	URL     string `json:"url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

type HostedConfig struct {
	APIKey    string `json:"-"`
	BaseURL   string `json:"base_url"`
	ChatModel string `json:"chat_model"`
}

func (c HostedConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type PipelineConfig struct {
	WorkerCount   int           `json:"worker_count"`
	Timeout       time.Duration `json:"timeout"`
	ChunkWords    int           `json:"chunk_words"`
	ProvidersFile string        `json:"providers_file"`
}

type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"-"`
	Path   string `json:"path"`
}

type CacheConfig struct {
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db"`
	TTL           time.Duration `json:"ttl"`
}

type ObjectStoreConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"use_ssl"`
}

func (c ObjectStoreConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type TracingConfig struct {
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIStaticDir string `json:"ui_static_dir"`
}

type MaintenanceConfig struct {
	CronExpr     string        `json:"cron_expr"`
	OrphanMaxAge time.Duration `json:"orphan_max_age"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

var defaultFFmpegPaths = []string{
	"ffmpeg",
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"/opt/ffmpeg/bin/ffmpeg",
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithStorageDir(dir string) Option {
	return func(c *Config) {
		c.Storage.Dir = dir
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	lang, err := language.Parse(getEnvString("TRANSCRIBE_LANGUAGE", "en"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_LANGUAGE: %w", err)
	}

	config := &Config{
		Storage: StorageConfig{
			Dir: getEnvString("STORAGE_DIR", "./storage"),
		},
		Whisper: WhisperConfig{
			ServerURL:   getEnvString("WHISPER_SERVER_URL", "http://localhost:5000"),
			Python:      getEnvString("WHISPER_PYTHON", "python"),
			Language:    lang,
			FFmpegPaths: getEnvList("FFMPEG_PATHS", defaultFFmpegPaths),
		},
		Ollama: OllamaConfig{
			URL:     getEnvString("OLLAMA_URL", "http://localhost:11434"),
			Model:   getEnvString("OLLAMA_MODEL", "llama3.2"),
			Timeout: getEnvInt("OLLAMA_TIMEOUT", 120),
		},
		Hosted: HostedConfig{
			APIKey:    getEnvString("OPENAI_API_KEY", ""),
			BaseURL:   getEnvString("OPENAI_BASE_URL", ""),
			ChatModel: getEnvString("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
		},
		Pipeline: PipelineConfig{
			WorkerCount:   getEnvInt("WORKER_COUNT", 2),
			Timeout:       getEnvDuration("PIPELINE_TIMEOUT", 9*time.Minute),
			ChunkWords:    getEnvInt("CHUNK_WORDS", 1000),
			ProvidersFile: getEnvString("PROVIDERS_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver: getEnvString("DB_DRIVER", "sqlite"),
			DSN:    getEnvString("DB_DSN", ""),
			Path:   getEnvString("DB_PATH", ""),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnvString("REDIS_ADDR", ""),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  getEnvString("S3_ENDPOINT", ""),
			AccessKey: getEnvString("S3_ACCESS_KEY", ""),
			SecretKey: getEnvString("S3_SECRET_KEY", ""),
			Bucket:    getEnvString("S3_BUCKET", ""),
			UseSSL:    getEnvBool("S3_USE_SSL", false),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnvString("OTEL_SERVICE_NAME", "lecture-pipeline"),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIStaticDir: getEnvString("UI_STATIC_DIR", ""),
		},
		Maintenance: MaintenanceConfig{
			CronExpr:     getEnvString("MAINTENANCE_CRON", "*/30 * * * *"),
			OrphanMaxAge: getEnvDuration("ORPHAN_AUDIO_MAX_AGE", time.Hour),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.Database.Path == "" {
		config.Database.Path = filepath.Join(config.Storage.Dir, "lectures.db")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("STORAGE_DIR is required")
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required when DB_DRIVER=mysql")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	if c.Pipeline.ChunkWords < 1 {
		return fmt.Errorf("CHUNK_WORDS must be greater than 0")
	}
	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("PIPELINE_TIMEOUT must be positive")
	}
	if c.Maintenance.CronExpr != "" {
		if err := icron.Validate(c.Maintenance.CronExpr); err != nil {
			return fmt.Errorf("MAINTENANCE_CRON: %w", err)
		}
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("9m") or plain seconds ("540").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	ret := make([]string, 0)
	for _, part := range strings.Split(value, ":") {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}
	return ret
}
