package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribeq/scribeq/internal/cache"
	"github.com/scribeq/scribeq/internal/infra/config"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete all cached downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean()
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// No validation check needed just to delete entries
	dlCache, err := cache.New(cfg.Download.CacheDir, cfg.Download.CacheTTL, nil)
	if err != nil {
		return fmt.Errorf("failed to open download cache: %w", err)
	}

	count := dlCache.Len()
	if err := dlCache.PurgeAll(); err != nil {
		return err
	}

	fmt.Printf("Removed %d cached download(s)\n", count)
	return nil
}
