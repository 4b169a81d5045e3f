package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Stream-Gate/Streamgate/internal/adapter/inbound/admin"
	"github.com/Stream-Gate/Streamgate/internal/adapter/inbound/wsgw"
	auditfile "github.com/Stream-Gate/Streamgate/internal/adapter/outbound/audit"
	"github.com/Stream-Gate/Streamgate/internal/adapter/outbound/memory"
	"github.com/Stream-Gate/Streamgate/internal/adapter/outbound/upstream"
	"github.com/Stream-Gate/Streamgate/internal/config"
	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
	"github.com/Stream-Gate/Streamgate/internal/service"
)

var (
	startHost        string
	startPort        int
	startUpstreamURL string
	startLogLevel    string
	startLogFormat   string
	startForeground  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Stream Gate relay server",
	Long: `Start the Stream Gate relay server.

The server accepts client WebSocket connections, reads the bearer-token
handshake, and relays JSON frames to the configured upstream endpoint.

Configuration is loaded from stream-gate.yaml, environment variables
(STREAM_GATE_ prefix), and the flags below, in that order of precedence.

Examples:
  # Start with config file defaults
  stream-gate start

  # Override the listen port
  stream-gate start --port 9090

  # Point at a different upstream
  stream-gate start --upstream-url wss://example.com/stream

  # Run under a service manager (no banner, no PID file)
  stream-gate start --foreground`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startHost, "host", "", "bind address (overrides server.host)")
	startCmd.Flags().IntVar(&startPort, "port", 0, "listen port (overrides server.port)")
	startCmd.Flags().StringVar(&startUpstreamURL, "upstream-url", "", "upstream WebSocket URL (overrides upstream.url)")
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
	startCmd.Flags().StringVar(&startLogFormat, "log-format", "", "log format: text, json (overrides logging.format)")
	startCmd.Flags().BoolVar(&startForeground, "foreground", false, "run attached: skip the banner and PID file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStartFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	if used := config.ConfigFileUsed(); used != "" {
		logger.Info("loaded configuration", "file", used)
	} else {
		logger.Info("no config file found, using defaults and environment")
	}

	// Graceful shutdown on SIGINT/SIGTERM. The signal watcher is released
	// once the first signal arrives so a second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	if !startForeground {
		pidPath := pidFilePath()
		if err := writePIDFile(pidPath); err != nil {
			logger.Warn("failed to write PID file", "path", pidPath, "error", err)
		} else {
			defer os.Remove(pidPath)
		}
		printBanner(cfg)
	}

	return run(ctx, cfg, logger)
}

// applyStartFlags layers CLI flag overrides onto the loaded config.
func applyStartFlags(cfg *config.Config) {
	if startHost != "" {
		cfg.Server.Host = startHost
	}
	if startPort != 0 {
		cfg.Server.Port = startPort
	}
	if startUpstreamURL != "" {
		cfg.Upstream.URL = startUpstreamURL
	}
	if startLogLevel != "" {
		cfg.Logging.Level = startLogLevel
	}
	if startLogFormat != "" {
		cfg.Logging.Format = startLogFormat
	}
}

// run wires the relay components and serves until the context is done.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sessions := memory.NewSessionStore()
	stats := service.NewStatsService()

	var auditSvc *service.AuditService
	var auditReader audit.RecentSource
	var relayOpts []service.RelayOption
	relayOpts = append(relayOpts,
		service.WithSessionStore(sessions),
		service.WithStats(stats),
		service.WithRelayLogger(logger),
	)

	if cfg.Audit.Enabled {
		store, err := createAuditStore(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create audit store: %w", err)
		}
		defer store.Close()
		if reader, ok := store.(audit.RecentSource); ok {
			auditReader = reader
		}

		auditSvc = service.NewAuditService(store, logger,
			service.WithChannelSize(cfg.Audit.BufferSize),
		)
		auditSvc.Start(ctx)
		defer auditSvc.Stop()

		relayOpts = append(relayOpts, service.WithAuditRecorder(auditSvc))
	}

	dialer := upstream.NewDialer(
		cfg.Upstream.URL,
		cfg.Upstream.AuthHeaderTemplate,
		cfg.Upstream.ContentType,
		upstream.WithDialTimeout(cfg.Upstream.DialTimeout),
		upstream.WithLogger(logger),
	)

	relaySvc := service.NewRelayService(dialer, relayOpts...)

	buildInfo := &admin.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}
	transportOpts := []wsgw.Option{
		wsgw.WithAddr(cfg.ListenAddr()),
		wsgw.WithLogger(logger),
		wsgw.WithStats(stats),
		wsgw.WithSessionRegistry(sessions),
		wsgw.WithHandshakeTimeout(cfg.Auth.HandshakeTimeout),
		wsgw.WithMetricsEnabled(cfg.Metrics.Enabled),
		wsgw.WithHealthChecker(wsgw.NewHealthChecker(sessions, auditSvc, Version)),
		wsgw.WithVersionInfo(&wsgw.VersionInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}),
	}
	if auditSvc != nil {
		transportOpts = append(transportOpts, wsgw.WithAuditRecorder(auditSvc))
	}

	if cfg.Admin.Enabled {
		if cfg.Admin.APIKeyHash == "" {
			return fmt.Errorf("admin API enabled but admin.api_key_hash is not set (generate one with: stream-gate hash-key)")
		}
		adminOpts := []admin.APIOption{
			admin.WithAPIKeyHash(cfg.Admin.APIKeyHash),
			admin.WithSessionStore(sessions),
			admin.WithStatsService(stats),
			admin.WithConfig(cfg),
			admin.WithBuildInfo(buildInfo),
			admin.WithAPILogger(logger),
		}
		if auditReader != nil {
			adminOpts = append(adminOpts, admin.WithAuditReader(auditReader))
		}
		transportOpts = append(transportOpts,
			wsgw.WithAdminHandler(admin.NewAPIHandler(adminOpts...).Routes()))
		logger.Info("admin API enabled")
	}

	transport := wsgw.NewTransport(relaySvc, transportOpts...)

	logger.Info("starting Stream Gate",
		"version", Version,
		"addr", cfg.ListenAddr(),
		"upstream", cfg.Upstream.URL,
	)

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	final := stats.GetStats()
	logger.Info("server stopped",
		"connections", final.Connections,
		"sessions_started", final.SessionsStarted,
		"frames_client_to_upstream", final.FramesClientToUpstream,
		"frames_upstream_to_client", final.FramesUpstreamToClient,
		"frames_dropped", final.FramesDropped,
	)
	return nil
}

// createAuditStore builds the audit sink selected by config. Both sinks
// also implement audit.RecentSource for the admin API.
func createAuditStore(cfg *config.Config, logger *slog.Logger) (audit.AuditStore, error) {
	switch cfg.Audit.Output {
	case "file":
		store, err := auditfile.NewFileStore(auditfile.FileStoreConfig{
			Dir:           cfg.Audit.Dir,
			RetentionDays: cfg.Audit.RetentionDays,
			CacheSize:     cfg.Audit.RecentSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("audit trail: file output", "dir", cfg.Audit.Dir)
		return store, nil
	default:
		logger.Info("audit trail: stdout output")
		return memory.NewAuditStoreWithWriter(os.Stdout, cfg.Audit.RecentSize), nil
	}
}

// buildLogger constructs the slog logger per config. Logs go to stderr;
// stdout is reserved for the audit trail when stdout output is selected.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// parseLogLevel maps a config string to a slog level. Unknown values
// fall back to info.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns the PID file location: ~/.streamgate/server.pid,
// falling back to the temp dir when the home directory is unknown.
func pidFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "streamgate-server.pid")
	}
	return filepath.Join(home, ".streamgate", "server.pid")
}

// writePIDFile records the current process ID for the stop command.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// readPIDFile returns the PID stored at path, or 0 when the file is
// missing or malformed.
func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// printBanner writes the startup banner to stderr.
func printBanner(cfg *config.Config) {
	const cyan, dim, reset = "\033[36m", "\033[2m", "\033[0m"
	fmt.Fprintf(os.Stderr, `
%s  ┌─────────────────────────────────────┐
  │          Stream Gate %-7s        │
  └─────────────────────────────────────┘%s
  listen    ws://%s
  upstream  %s
  started   %s%s%s

`,
		cyan, Version, reset,
		cfg.ListenAddr(),
		cfg.Upstream.URL,
		dim, time.Now().Format(time.RFC1123), reset,
	)
}
