package main

import (
	"github.com/spf13/cobra"

	"newswatch/internal/app"
)

// newCleanupCmd prunes low-relevance stories from feeds and the archive.
func newCleanupCmd(application *app.Application) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stories below the relevance threshold from all feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.Cleanup(cmd.Context(), dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print before/after counts without writing")

	return cmd
}

// newRegenRSSCmd rebuilds RSS documents from the feeds on disk.
func newRegenRSSCmd(application *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "regen-rss",
		Short: "Rebuild every topic's RSS file from its JSON feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.RegenerateRSS()
		},
	}
}

// newStatsCmd prints archive totals.
func newStatsCmd(application *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print story archive statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.Stats(cmd.Context())
		},
	}
}
