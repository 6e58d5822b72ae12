package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/entrepeneur4lyf/spark/internal/app"
	"github.com/entrepeneur4lyf/spark/internal/config"
	"github.com/entrepeneur4lyf/spark/internal/logging"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

var (
	debug      bool
	workingDir string
)

var (
	cfg     *config.Config
	logger  *log.Logger
	state   *config.State
	logFile *os.File

	// sparkApp is created on demand by commands that talk to the model
	sparkApp *app.App
	// repo is set by every command; it is sparkApp.Repo when the app exists
	repo  *storage.KVRepository
	store storage.KVStore
)

// setupLogging writes logs to ~/.spark/logs/spark.log unless debug is set
func setupLogging(c *config.Config) error {
	if c.Debug {
		l, err := logging.Setup(c.Log.Level, c.Log.Format, os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		return nil
	}

	logDir, err := storage.NewPathManagerAt(c.Storage.Directory).GetLogsDir()
	if err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err = os.OpenFile(filepath.Join(logDir, "spark.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	l, err := logging.Setup(c.Log.Level, c.Log.Format, logFile)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func cleanup() {
	if sparkApp != nil {
		sparkApp.Close()
	} else if store != nil {
		store.Close()
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

var rootCmd = &cobra.Command{
	Use:   "spark",
	Short: "Spark chat assistant",
	Long: `Spark is a chat assistant that answers with rich markdown, generated
images, comic strips and runnable HTML apps.

Usage:
  spark chat "your question"   # Send one turn in the active session
  spark serve                  # Serve the HTTP/WebSocket API
  spark sessions               # List saved conversations`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(workingDir, debug)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		if err := setupLogging(cfg); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		state, err = config.LoadState(cfg.StatePath())
		if err != nil {
			logger.Warn("Ignoring unreadable state file", "path", cfg.StatePath(), "error", err)
			state = config.NewState()
		}

		if cmd.Annotations[annotationModel] == "true" {
			return initializeApp(cmd.Context())
		}
		return openRepository(cmd.Context())
	},
}

// annotationModel marks commands that need a model backend
const annotationModel = "model"

func initializeApp(ctx context.Context) error {
	a, err := app.NewApp(ctx, &app.AppConfig{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to initialize Spark: %w", err)
	}
	sparkApp = a
	repo = a.Repo
	return nil
}

// openRepository opens storage only, for commands that never call the model
func openRepository(ctx context.Context) error {
	opts := cfg.StorageOptions()
	opts.Logger = logger
	s, err := storage.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	store = s
	repo = storage.NewKVRepository(s, storage.WithRepositoryLogger(logger))
	return nil
}

func init() {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&workingDir, "wd", wd, "Working directory")
}

// Execute runs the root command
func Execute() {
	defer cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cleanup()
		os.Exit(1)
	}
}
