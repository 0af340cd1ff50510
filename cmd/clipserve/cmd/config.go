package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clipserve/clipserve/internal/config"
	"github.com/clipserve/clipserve/pkg/bytesize"
	"github.com/clipserve/clipserve/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing clipserve configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  clipserve config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, ./configs/config.yaml, /etc/clipserve/config.yaml)
  - Environment variables (CLIPSERVE_SERVER_PORT, CLIPSERVE_FFMPEG_PRESET, etc.)
  - Command-line flags (for some options)

Environment variables use the CLIPSERVE_ prefix and underscores for nesting.
Example: server.port -> CLIPSERVE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Tag.Get("yaml")
		}
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		case config.Duration:
			result[key] = duration.Format(v.Duration())
		case config.ByteSize:
			result[key] = bytesize.Format(bytesize.Size(v.Bytes()))
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = v
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// Load config with defaults (no file, just defaults)
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfgMap := toMap(cfg)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	header := strings.Join([]string{
		"# clipserve Configuration File",
		"# ============================",
		"#",
		"# All values shown below are defaults.",
		"# Duration format: 30s, 5m, 1h, 7d",
		"# Size format: 64KB, 5MB",
		"#",
		"# Environment variable overrides:",
		"#   CLIPSERVE_SERVER_HOST, CLIPSERVE_SERVER_PORT",
		"#   CLIPSERVE_EXTRACTOR_BINARY_PATH, CLIPSERVE_EXTRACTOR_COOKIES_FILE",
		"#   CLIPSERVE_FFMPEG_PRESET, CLIPSERVE_FFMPEG_CRF",
		"#   CLIPSERVE_PIPELINE_MAX_CONCURRENT",
		"#   CLIPSERVE_LOGGING_LEVEL, CLIPSERVE_LOGGING_FORMAT",
		"#",
		"",
	}, "\n")
	fmt.Println(header)
	fmt.Print(string(yamlData))

	return nil
}
