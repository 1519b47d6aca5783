package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gouravbirwaz/cold-calling-platform/internal/config"
	"github.com/Gouravbirwaz/cold-calling-platform/internal/orchestrator"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	agentID    = flag.String("agent", "", "Agent to register on startup")
	version    = "1.0.0"
	buildTime  = "unknown"
	gitCommit  = "unknown"
)

func main() {
	flag.Parse()

	// Print version information
	fmt.Printf("Softphone Service v%s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Println()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("Failed to load configuration")
	}

	// Setup logging
	logger := setupLogging(cfg, *logLevel)
	logger.Info().
		Str("version", version).
		Str("config_path", *configPath).
		Msg("Starting Softphone Service")

	// Create and start the orchestrator
	softphone := orchestrator.New(orchestrator.Config{
		Config: cfg,
		Logger: logger,
	})

	if err := softphone.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start service")
	}

	// Register the agent if one was given on the command line
	if *agentID != "" {
		logger.Info().Str("agent_id", *agentID).Msg("Registering agent")

		if err := softphone.SelectAgent(softphone.Context(), *agentID); err != nil {
			logger.Error().Err(err).Str("agent_id", *agentID).Msg("Agent registration failed")
		}
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Msg("Service is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	logger.Info().Msg("Shutting down service...")
	if err := softphone.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg("Service stopped successfully")
}

func setupLogging(cfg *config.Config, logLevelFlag string) zerolog.Logger {
	// Determine log level
	var logLevel zerolog.Level
	levelStr := cfg.Service.LogLevel
	if logLevelFlag != "" {
		levelStr = logLevelFlag
	}

	switch levelStr {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	// Configure zerolog
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	// Create console writer with colors
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("| %-6s|", i)
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s:", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}

	logger := zerolog.New(consoleWriter).With().
		Timestamp().
		Str("service", "softphone").
		Logger()

	logger.Info().
		Str("level", logLevel.String()).
		Msg("Logging initialized")

	return logger
}
