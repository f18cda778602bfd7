// Package cli holds the codequest cobra commands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"codequest/internal/app"
	"codequest/internal/config"
	"codequest/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "codequest",
	Short:         "Adaptive progression service for CodeQuest",
	Long:          "codequest tracks per-skill ability, picks the next question and runs daily and weekly missions.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./codequest.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "Database type: sqlite, postgres or mysql (overrides config)")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().String("db-url", "", "Postgres/MySQL connection URL (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies flag overrides, flags winning
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("db-type"); v != "" {
		cfg.Database.Type = v
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.Database.Path = v
	}
	if v, _ := cmd.Flags().GetString("db-url"); v != "" {
		cfg.Database.URL = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config, builds the logger and wires the application
func setup(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

// teardown closes the application and flushes the logger
func teardown(a *app.App) {
	if err := a.Close(); err != nil {
		a.Log.Warn("shutdown incomplete", "error", err)
	}
	a.Log.Sync()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), app.Version)
	},
}
