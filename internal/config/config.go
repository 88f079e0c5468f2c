package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Pipeline   PipelineConfig
	Transcribe TranscribeConfig
	Fetch      FetchConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
	Tracing    TracingConfig
}

// MetricsConfig holds the Prometheus metrics endpoint configuration
type MetricsConfig struct {
	Port int
}

// TracingConfig holds distributed tracing configuration
type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// PipelineConfig holds annotation pipeline configuration
type PipelineConfig struct {
	DetectorURL     string
	DetectorTimeout time.Duration
	OutputFourCC    string
	OutputFormat    string
	TempDir         string
	FFprobePath     string
	LabelFontScale  float64
	LabelThickness  int
}

// TranscribeConfig holds speech transcription configuration
type TranscribeConfig struct {
	APIKey     string
	Model      string
	FFmpegPath string
	SampleRate int
}

// FetchConfig holds remote video download configuration
type FetchConfig struct {
	YTDLPPath    string
	OutputDir    string
	Timeout      time.Duration
	TargetFormat string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "speaksense")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "speaksense")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Pipeline defaults
	viper.SetDefault("pipeline.detectorURL", "http://localhost:8500")
	viper.SetDefault("pipeline.detectorTimeout", "10s")
	viper.SetDefault("pipeline.outputFourCC", "avc1")
	viper.SetDefault("pipeline.outputFormat", "mp4")
	viper.SetDefault("pipeline.tempDir", "/tmp/speaksense")
	viper.SetDefault("pipeline.ffprobePath", "ffprobe")
	viper.SetDefault("pipeline.labelFontScale", 0.9)
	viper.SetDefault("pipeline.labelThickness", 2)

	// Transcribe defaults
	viper.SetDefault("transcribe.apiKey", "")
	viper.SetDefault("transcribe.model", "whisper-1")
	viper.SetDefault("transcribe.ffmpegPath", "ffmpeg")
	viper.SetDefault("transcribe.sampleRate", 16000)

	// Fetch defaults
	viper.SetDefault("fetch.ytdlpPath", "yt-dlp")
	viper.SetDefault("fetch.outputDir", "/tmp/speaksense/downloads")
	viper.SetDefault("fetch.timeout", "10m")
	viper.SetDefault("fetch.targetFormat", "mp4")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Metrics defaults
	viper.SetDefault("metrics.port", 9090)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
}
