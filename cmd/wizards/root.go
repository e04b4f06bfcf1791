package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/wizards"
	"github.com/aretw0/wizards/internal/config"
	"github.com/aretw0/wizards/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wizards",
	Short: "Wizards is a query assistant for metrics",
	Long: `Wizards helps you go from a metric to a working query, either by asking in
plain words or by walking through a set of query templates.

Configuration is read from an optional YAML file and WIZARDS_* environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "Shorthand for --log-level debug")
}

// loadConfig reads the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays free for command output.
func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(os.Stderr, level, cfg.LogFormat), nil
}

// newEngine loads the configuration and wires the engine for cmd.
func newEngine(cmd *cobra.Command) (*wizards.Engine, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	engine, err := wizards.New(cmd.Context(), cfg, wizards.WithLogger(logger))
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	return engine, cfg, logger, nil
}
