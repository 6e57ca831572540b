package main

import (
	"github.com/spf13/cobra"

	"newswatch/internal/app"
)

// newScrapeCmd runs the pipeline for one topic.
func newScrapeCmd(application *app.Application) *cobra.Command {
	var opts app.ScrapeOptions

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch, classify, and merge new stories for a topic",
		Long: `Search the article API for a topic's queries, classify new candidates
with the language model, and merge qualifying stories into the topic's
JSON feed, RSS document, and story archive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.Scrape(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.TopicKey, "topic", "", "topic key to scrape (required)")
	cmd.Flags().IntVar(&opts.DaysBack, "days-back", 7, "search window in days")
	cmd.Flags().BoolVar(&opts.SkipAnalysis, "skip-analysis", false, "skip classification and keep default scores")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "preview qualifying stories without writing anything")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}
