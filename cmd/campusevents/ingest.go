package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:     "ingest",
	Short:   "Fetch mail and feeds, extract events and store them",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		maildirs, _ := cmd.Flags().GetStringSlice("maildir")
		feeds, _ := cmd.Flags().GetStringSlice("feed")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		workers, _ := cmd.Flags().GetInt("workers")
		auditDir, _ := cmd.Flags().GetString("audit-dir")

		if len(maildirs) == 0 && cfg.Maildir != "" {
			maildirs = []string{cfg.Maildir}
		}
		if len(feeds) == 0 {
			feeds = cfg.Feeds
		}
		if auditDir == "" {
			auditDir = cfg.AuditDir
		}

		rules, err := loadRules()
		if err != nil {
			return err
		}
		fetchers := buildFetchers(maildirs, feeds, rules)
		if len(fetchers) == 0 {
			return errors.New("no sources: pass --maildir or --feed, or set CAMPUSEVENTS_MAILDIR or CAMPUSEVENTS_FEEDS")
		}

		s, err := openStore(dryRun)
		if err != nil {
			return err
		}
		defer s.Close()
		pub, err := openPublisher(dryRun)
		if err != nil {
			return err
		}
		defer pub.Close()

		runner, err := newRunner(s, pub, rules, workers, auditDir)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, runErr := runner.Run(ctx, fetchers...)
		if summary != nil {
			if err := reportSummary(cmd, summary); err != nil {
				return err
			}
		}
		return runErr
	},
}

func reportSummary(cmd *cobra.Command, s *pipeline.RunSummary) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), s)
	}
	printSummary(cmd.OutOrStdout(), s)
	return nil
}

func init() {
	ingestCmd.Flags().StringSlice("maildir", nil, "maildir to read (repeatable)")
	ingestCmd.Flags().StringSlice("feed", nil, "RSS feed URL to read (repeatable)")
	ingestCmd.Flags().Bool("dry-run", false, "extract into an in-memory store without publishing")
	ingestCmd.Flags().Int("workers", 0, "documents processed concurrently (default from CAMPUSEVENTS_WORKERS)")
	ingestCmd.Flags().String("audit-dir", "", "directory for the JSON audit of each run")
}
