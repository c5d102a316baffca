package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/pipeline"
)

var replayCmd = &cobra.Command{
	Use:     "replay [audit-file]",
	Short:   "Re-ingest events from an audit file without calling the LLM",
	Long:    "Re-ingest events from an audit file. Without an argument the newest\naudit file in the audit directory is used. Events already stored are\nreported as duplicates.",
	GroupID: "pipeline",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			if cfg.AuditDir == "" {
				return errors.New("no audit file given and CAMPUSEVENTS_AUDIT_DIR is not set")
			}
			latest, err := pipeline.LatestAudit(cfg.AuditDir)
			if err != nil {
				return fmt.Errorf("finding latest audit: %w", err)
			}
			path = latest
		}

		rules, err := loadRules()
		if err != nil {
			return err
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

		runner, err := newRunner(s, pub, rules, 0, "")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("replaying audit", "file", path)
		summary, runErr := runner.Replay(ctx, path)
		if summary != nil {
			if err := reportSummary(cmd, summary); err != nil {
				return err
			}
		}
		return runErr
	},
}

func init() {
	replayCmd.Flags().Bool("dry-run", false, "replay into an in-memory store without publishing")
}
