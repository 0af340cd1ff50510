package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// A named config file that does not exist is an error.
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)

	// Discovery from an empty directory falls back to defaults.
	t.Setenv("HOME", t.TempDir())
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, defaultServerPort, cfg.Server.Port)
	assert.Zero(t, cfg.Server.WriteTimeout, "streaming responses must not carry a write deadline")
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, defaultExtractorTimeout, cfg.Extractor.Timeout)

	assert.Equal(t, "libx264", cfg.FFmpeg.VideoCodec)
	assert.Equal(t, "aac", cfg.FFmpeg.AudioCodec)
	assert.Equal(t, "superfast", cfg.FFmpeg.Preset)
	assert.Equal(t, 23, cfg.FFmpeg.CRF)
	assert.Equal(t, 7*24*time.Hour, cfg.FFmpeg.LogRetention.Duration())

	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.StartupGrace)
	assert.Equal(t, int64(64*1024), cfg.Pipeline.BufferSize.Bytes())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
logging:
  level: debug
  format: text
ffmpeg:
  preset: veryfast
  crf: 28
  log_retention: 2w
pipeline:
  max_concurrent: 2
  buffer_size: 128KB
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "veryfast", cfg.FFmpeg.Preset)
	assert.Equal(t, 28, cfg.FFmpeg.CRF)
	assert.Equal(t, 14*24*time.Hour, cfg.FFmpeg.LogRetention.Duration())
	assert.Equal(t, 2, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, int64(128*1024), cfg.Pipeline.BufferSize.Bytes())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLIPSERVE_SERVER_PORT", "7070")
	t.Setenv("CLIPSERVE_EXTRACTOR_COOKIES_FILE", "/etc/clipserve/cookies.txt")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "environment beats file")
	assert.Equal(t, "/etc/clipserve/cookies.txt", cfg.Extractor.CookiesFile)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults pass", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero extractor timeout", func(c *Config) { c.Extractor.Timeout = 0 }, "extractor.timeout"},
		{"crf out of range", func(c *Config) { c.FFmpeg.CRF = 52 }, "ffmpeg.crf"},
		{"missing codec", func(c *Config) { c.FFmpeg.VideoCodec = "" }, "video_codec"},
		{"zero concurrency", func(c *Config) { c.Pipeline.MaxConcurrent = 0 }, "max_concurrent"},
		{"tiny buffer", func(c *Config) { c.Pipeline.BufferSize = 16 }, "buffer_size"},
		{"huge buffer", func(c *Config) { c.Pipeline.BufferSize = 10 << 20 }, "buffer_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestServerAddress(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", c.Address())
}
