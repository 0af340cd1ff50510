package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clipserve/clipserve/internal/archive"
	"github.com/clipserve/clipserve/internal/config"
	"github.com/clipserve/clipserve/internal/extractor"
	"github.com/clipserve/clipserve/internal/ffmpeg"
	internalhttp "github.com/clipserve/clipserve/internal/http"
	"github.com/clipserve/clipserve/internal/http/handlers"
	"github.com/clipserve/clipserve/internal/pipeline"
	"github.com/clipserve/clipserve/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipserve server",
	Long: `Start the clipserve HTTP server and API.

The server provides:
- Segment extraction endpoints streaming MP4 directly to the client
- Batch segment extraction as a zip archive
- Source analysis (title, duration, format catalog)
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")

	// External binary flags
	serveCmd.Flags().String("ffmpeg", "", "Path to the ffmpeg binary (default: look up on PATH)")
	serveCmd.Flags().String("yt-dlp", "", "Path to the yt-dlp binary (default: look up on PATH)")
	serveCmd.Flags().String("cookies", "", "Path to a Netscape-format cookies file for the extractor")

	// Pipeline flags
	serveCmd.Flags().Int("max-concurrent", 0, "Maximum simultaneous encode jobs (0 = config default)")

	// Bind flags to viper
	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("ffmpeg.binary_path", serveCmd.Flags().Lookup("ffmpeg"))
	mustBindPFlag("extractor.binary_path", serveCmd.Flags().Lookup("yt-dlp"))
	mustBindPFlag("extractor.cookies_file", serveCmd.Flags().Lookup("cookies"))
	mustBindPFlag("pipeline.max_concurrent", serveCmd.Flags().Lookup("max-concurrent"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	// Resolve and verify external binaries up front. A missing encoder
	// is a deployment error, not something to discover on first request.
	ffmpegPath, err := ffmpeg.ResolveBinary(cfg.FFmpeg.BinaryPath, ffmpeg.DefaultBinary)
	if err != nil {
		return fmt.Errorf("resolving encoder binary: %w", err)
	}
	probePath, probeErr := ffmpeg.ResolveBinary(cfg.FFmpeg.ProbePath, ffmpeg.DefaultProbeBinary)
	if probeErr != nil {
		logger.Warn("ffprobe not found, duration fallback disabled",
			slog.String("error", probeErr.Error()),
		)
	}
	extractorPath, err := ffmpeg.ResolveBinary(cfg.Extractor.BinaryPath, extractor.DefaultBinary)
	if err != nil {
		return fmt.Errorf("resolving extractor binary: %w", err)
	}

	verCtx, verCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer verCancel()
	if v, err := ffmpeg.Version(verCtx, ffmpegPath); err == nil {
		logger.Info("encoder located", slog.String("path", ffmpegPath), slog.String("version", v))
	}

	if cfg.FFmpeg.LogDir != "" {
		if err := os.MkdirAll(cfg.FFmpeg.LogDir, 0o755); err != nil {
			return fmt.Errorf("creating encoder log directory: %w", err)
		}
	}

	// Resolver: yt-dlp subprocess with optional ffprobe duration fallback.
	var prober *ffmpeg.Prober
	if probeErr == nil {
		prober = ffmpeg.NewProber(probePath)
	}
	resolver := extractor.NewResolver(extractor.Config{
		BinaryPath:  extractorPath,
		CookiesFile: cfg.Extractor.CookiesFile,
		Timeout:     cfg.Extractor.Timeout,
		UserAgent:   cfg.Extractor.UserAgent,
	}, prober, logger)

	// Encode pipeline shared by the single-segment and batch endpoints.
	orch := pipeline.New(pipeline.Options{
		FFmpegBinary: ffmpegPath,
		EncodeSpec: ffmpeg.EncodeSpec{
			VideoCodec: cfg.FFmpeg.VideoCodec,
			AudioCodec: cfg.FFmpeg.AudioCodec,
			Preset:     cfg.FFmpeg.Preset,
			CRF:        cfg.FFmpeg.CRF,
		},
		UserAgent:     resolver.UserAgent(),
		MaxConcurrent: int64(cfg.Pipeline.MaxConcurrent),
		StartupGrace:  cfg.Pipeline.StartupGrace,
		BufferSize:    int(cfg.Pipeline.BufferSize.Bytes()),
		StreamTimeout: cfg.Pipeline.StreamTimeout,
		LogDir:        cfg.FFmpeg.LogDir,
		Logger:        logger,
	})
	batch := archive.New(orch, logger)

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	// Register handlers
	healthHandler := handlers.NewHealthHandler(version.Version).
		WithStreamer(orch).
		WithBinaryCheck("ffmpeg", binaryCheck(ffmpegPath)).
		WithBinaryCheck("yt-dlp", binaryCheck(extractorPath))
	healthHandler.Register(server.API())

	analyzeHandler := handlers.NewAnalyzeHandler(resolver, logger)
	analyzeHandler.Register(server.API())

	segmentHandler := handlers.NewSegmentHandler(resolver, orch, logger)
	segmentHandler.Register(server.API())
	segmentHandler.RegisterChiRoutes(server.Router())

	segmentsHandler := handlers.NewSegmentsHandler(resolver, batch, logger)
	segmentsHandler.Register(server.API())
	segmentsHandler.RegisterChiRoutes(server.Router())

	// Encoder session log janitor
	janitor := ffmpeg.NewLogJanitor(cfg.FFmpeg.LogDir, cfg.FFmpeg.LogRetention.Duration(), logger)
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("starting log janitor: %w", err)
	}
	defer janitor.Stop()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting clipserve server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// binaryCheck reports whether the binary at path is still present and
// executable. Used by the readiness probe.
func binaryCheck(path string) func() error {
	return func() error {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Mode()&0o111 == 0 {
			return fmt.Errorf("%s is not executable", path)
		}
		return nil
	}
}
