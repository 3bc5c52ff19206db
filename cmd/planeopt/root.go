package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/planeopt/internal/config"
	"github.com/copyleftdev/planeopt/internal/problem"
)

var (
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "planeopt",
	Short: "Minimize functions of two variables",
	Long: `planeopt minimizes f(x, y) given as a formula, with optional inequality
bounds and equality constraints handled by a penalty loop.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.GetEnv("LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
}

// loadDefaults reads the environment configuration. Engine tracing goes to a
// zap development logger when debug logging is on.
func loadDefaults() (problem.Defaults, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return problem.Defaults{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	engine := zap.NewNop()
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		if engine, err = zap.NewDevelopment(); err != nil {
			return problem.Defaults{}, nil, err
		}
	}

	return problem.Defaults{
		Settings: cfg.Settings(engine),
		Method:   cfg.Optimization.DefaultMethod,
		Penalty:  cfg.Penalty(cfg.Optimization.DefaultPenalty),
	}, cfg, nil
}
