// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"bookkeeping/internal/archive"
	"bookkeeping/internal/config"
	"bookkeeping/internal/database"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	envFile string
	debug   bool
	asJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the bookkeeping ledger from the command line",
	Long: `ledgerctl stages and commits bank statement imports and prints
financial reports against the same database the API server uses.

Example:
  ledgerctl import stage statement.csv --account 1 --profile first-bank
  ledgerctl import commit 12
  ledgerctl report pl --range last_quarter --group-by month`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "info"
		if debug {
			level = "debug"
		}
		logger.Init(logger.Options{Level: level})
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reportCmd)
}

// env is everything a command needs to reach the ledger.
type env struct {
	cfg    config.Config
	db     *gorm.DB
	system models.SystemCategories
	store  archive.Store
}

func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load(envFile)
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	sys, err := database.EnsureSystemCategories(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("system categories: %w", err)
	}
	var store archive.Store = archive.Noop{}
	if cfg.ArchiveBlobURL != "" {
		if store, err = archive.NewBlobStore(cfg.ArchiveBlobURL, cfg.ArchiveContainer); err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
	}
	return &env{cfg: cfg, db: db, system: sys, store: store}, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
