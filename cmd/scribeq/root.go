package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time:
//
//	go build -ldflags "-X main.version=v1.2.3" ./cmd/scribeq
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "scribeq",
	Short:        "Queued audio transcription for local files and URLs",
	Long:         "scribeq downloads, validates and transcribes audio from local files,\ndirect URLs and supported video sites, one queue item at a time.",
	Version:      version,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default \"config.yaml\")")
}
