// Package config provides configuration management for clipserve using
// Viper. It supports configuration from files, environment variables,
// and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultReadTimeout     = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultExtractorTimeout = 60 * time.Second

	defaultVideoCodec   = "libx264"
	defaultAudioCodec   = "aac"
	defaultPreset       = "superfast"
	defaultCRF          = 23
	defaultLogRetention = 7 * 24 * time.Hour

	defaultMaxConcurrent = 4
	defaultStartupGrace  = 20 * time.Second
	defaultBufferSize    = 64 * 1024
	maxBufferSize        = 512 * 1024
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout of zero disables the deadline. Segment downloads run
	// for as long as the encode does, so any fixed deadline would cut
	// legitimate streams short.
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ExtractorConfig holds extraction tool configuration.
type ExtractorConfig struct {
	BinaryPath  string        `mapstructure:"binary_path"` // empty = "yt-dlp" on PATH
	CookiesFile string        `mapstructure:"cookies_file"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"` // empty = built-in browser UA
}

// FFmpegConfig holds encoder binary and output configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // empty = auto-detect
	ProbePath  string `mapstructure:"probe_path"`  // empty = auto-detect
	VideoCodec string `mapstructure:"video_codec"`
	AudioCodec string `mapstructure:"audio_codec"`
	Preset     string `mapstructure:"preset"`
	CRF        int    `mapstructure:"crf"`
	// LogDir, when set, receives one stderr log per encode session.
	LogDir string `mapstructure:"log_dir"`
	// LogRetention bounds session log age; older logs are pruned.
	// Supports human-readable values like "7d", "2w".
	LogRetention Duration `mapstructure:"log_retention"`
}

// PipelineConfig holds encode pipeline configuration.
type PipelineConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	StartupGrace  time.Duration `mapstructure:"startup_grace"`
	// BufferSize is the relay chunk size. Supports human-readable
	// values like "64KB".
	BufferSize ByteSize `mapstructure:"buffer_size"`
	// StreamTimeout of zero means no per-job wall-clock limit.
	StreamTimeout time.Duration `mapstructure:"stream_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CLIPSERVE_ and use
// underscores for nesting. Example: CLIPSERVE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/clipserve")
		v.AddConfigPath("$HOME/.clipserve")
	}

	v.SetEnvPrefix("CLIPSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure
// defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Extractor defaults
	v.SetDefault("extractor.binary_path", "")
	v.SetDefault("extractor.cookies_file", "")
	v.SetDefault("extractor.timeout", defaultExtractorTimeout)
	v.SetDefault("extractor.user_agent", "")

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.video_codec", defaultVideoCodec)
	v.SetDefault("ffmpeg.audio_codec", defaultAudioCodec)
	v.SetDefault("ffmpeg.preset", defaultPreset)
	v.SetDefault("ffmpeg.crf", defaultCRF)
	v.SetDefault("ffmpeg.log_dir", "")
	v.SetDefault("ffmpeg.log_retention", defaultLogRetention)

	// Pipeline defaults
	v.SetDefault("pipeline.max_concurrent", defaultMaxConcurrent)
	v.SetDefault("pipeline.startup_grace", defaultStartupGrace)
	v.SetDefault("pipeline.buffer_size", defaultBufferSize)
	v.SetDefault("pipeline.stream_timeout", time.Duration(0))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Extractor.Timeout <= 0 {
		return fmt.Errorf("extractor.timeout must be positive")
	}

	const maxCRF = 51
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > maxCRF {
		return fmt.Errorf("ffmpeg.crf must be between 0 and %d", maxCRF)
	}
	if c.FFmpeg.VideoCodec == "" || c.FFmpeg.AudioCodec == "" {
		return fmt.Errorf("ffmpeg.video_codec and ffmpeg.audio_codec are required")
	}

	if c.Pipeline.MaxConcurrent < 1 {
		return fmt.Errorf("pipeline.max_concurrent must be at least 1")
	}
	if c.Pipeline.StartupGrace <= 0 {
		return fmt.Errorf("pipeline.startup_grace must be positive")
	}
	if c.Pipeline.BufferSize < 4096 || c.Pipeline.BufferSize > maxBufferSize {
		return fmt.Errorf("pipeline.buffer_size must be between 4KB and %s", ByteSize(maxBufferSize))
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
