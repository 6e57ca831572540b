package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"newswatch/internal/app"
	"newswatch/internal/config"
	"newswatch/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)
	application := app.New(cfg, logger)

	root := &cobra.Command{
		Use:           "newswatch",
		Short:         "Topic news pipeline: search, classify, and publish story feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newScrapeCmd(application),
		newCleanupCmd(application),
		newRegenRSSCmd(application),
		newStatsCmd(application),
	)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
