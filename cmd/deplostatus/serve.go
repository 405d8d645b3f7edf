package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"deplostatus/internal/config"
	"deplostatus/internal/ghauth"
	"deplostatus/internal/history"
	"deplostatus/internal/security"
	"deplostatus/internal/server"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	host     string
	port     int
	dbPath   string
	logFile  string
	testMode bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server that receives GitHub webhook deliveries.

workflow_run deliveries of the configured workflow update the deployment status
table comment on the linked pull request.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Host to bind to (overrides server.host)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite delivery audit log (overrides history.db_path)")
	serveCmd.Flags().StringVar(&logFile, "log", "", "Path to log file (overrides log.file)")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", false, "Enable test mode (no rate limiting)")
}

// loadConfig reads the configuration and applies the root flags. Serve-only
// flags are applied by the caller.
func loadConfig() (*config.Config, string, error) {
	cfg, used, err := config.Load(config.LoadOptions{
		Path:    configFile,
		EnvFile: envFile,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, used, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, used, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("db") {
		cfg.History.DBPath = dbPath
	}
	if flags.Changed("log") {
		cfg.Log.File = logFile
	}
	if flags.Changed("test-mode") {
		cfg.Server.TestMode = testMode
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := setupLogging(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closer.Close()

	logger.Info("Starting deplostatus", "version", version)
	if used != "" {
		logger.Info("Configuration loaded", "config", used)
	} else {
		logger.Info("No configuration file found, using environment only")
	}

	provider, err := newProvider(cfg)
	if err != nil {
		logger.Error("Failed to set up GitHub authentication", "error", err)
		return err
	}

	var hist *history.History
	if cfg.History.DBPath != "" {
		if err := security.CreateSecureDir(filepath.Dir(cfg.History.DBPath), security.PermDirectory); err != nil {
			return err
		}
		logger.Info("Initializing delivery audit log", "db", cfg.History.DBPath)
		hist, err = history.NewHistory(cfg.History.DBPath)
		if err != nil {
			logger.Error("Failed to initialize delivery audit log", "error", err)
			return fmt.Errorf("failed to initialize delivery audit log: %w", err)
		}
		defer hist.Close()
	}

	srv := server.NewServer(server.Options{
		WebhookSecret: cfg.WebhookSecret,
		BotLogin:      cfg.Bot.Login,
		WorkflowFile:  cfg.Bot.WorkflowFile,
		IssueGreeting: cfg.Bot.IssueGreeting,
		RatePerMinute: cfg.RateLimit.PerMinute,
		TestMode:      cfg.Server.TestMode,
	}, provider, hist, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting HTTP server",
		"addr", cfg.Addr(), "workflow_file", cfg.Bot.WorkflowFile, "bot_login", cfg.Bot.Login, "app_auth", cfg.UsesApp())
	if err := srv.Start(ctx, cfg.Addr()); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func newProvider(cfg *config.Config) (ghauth.Provider, error) {
	if cfg.UsesApp() {
		p, err := ghauth.NewAppProviderFromFile(cfg.GitHub.AppID, cfg.GitHub.PrivateKeyPath, cfg.GitHub.APIURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	p, err := ghauth.NewStaticProvider(cfg.GitHub.Token, cfg.GitHub.APIURL)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// setupLogging builds the service logger. JSON goes to stdout and, when
// configured, the log file; the text format is colorized for consoles.
// The returned closer must be closed by the caller.
func setupLogging(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)

	if cfg.File != "" {
		if err := security.CreateSecureDir(filepath.Dir(cfg.File), security.PermDirectory); err != nil {
			return nil, nil, err
		}
		file, err := security.OpenLogFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    cfg.File != "",
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), closer, nil
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
