package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/server"
)

var (
	serveHost string
	servePort string
	logLevel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the imgbot server",
	Long: `Start the imgbot HTTP server.

The server processes chapters on request and, unless checker.auto_start is
false, starts the continuous checker shortly after boot. On Ctrl+C or
SIGTERM it stops the checker and waits for chapters in progress to write
their outcome.

The server provides:
  - /health             - Basic server health check
  - /ready              - Readiness check (includes Firebase)
  - /process-chapter/.. - Process one chapter
  - /stats              - Processing statistics

Examples:
  imgbot serve                    # Start on the configured port (default 8080)
  imgbot serve --port 3000        # Start on custom port
  imgbot serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(logLevel),
		}))

		// Get home directory
		h, err := getHome()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		if f := mgr.ConfigFile(); f != "" {
			logger.Info("using config file", "path", f)
			mgr.WatchConfig()
		} else {
			logger.Info("no config file found, using defaults and environment")
		}

		conf := mgr.Get()
		host, port := serveHost, servePort
		if host == "" {
			host = conf.Server.Host
		}
		if port == "" {
			port = conf.Server.Port
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port from config)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
}
