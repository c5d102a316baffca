package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	eventsync "github.com/alfredjeanlab/campusevents/internal/sync"
	"github.com/alfredjeanlab/campusevents/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Export events to the configured backup destinations or a file",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")
		ctx := context.Background()

		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			n, err := eventsync.ExportJSONL(ctx, s, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("exporting to %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d events to %s\n", ui.RenderOK("exported"), n, outPath)
			return nil
		}

		dests, err := backupDestinations(ctx)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			return errors.New("no backup destination: set CAMPUSEVENTS_SYNC_S3_BUCKET or CAMPUSEVENTS_SYNC_GIT_REPO, or pass --out")
		}
		if err := eventsync.NewScheduler(s, dests, 0, logger).SyncOnce(ctx); err != nil {
			return err
		}
		for _, d := range dests {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.RenderOK("backed up to"), d.Name())
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:     "restore <file>",
	Short:   "Import events from a backup file, skipping ones already stored",
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := eventsync.ImportJSONL(context.Background(), s, f)
		if err != nil {
			return fmt.Errorf("restoring %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), stats)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d events, %d already present\n",
			ui.RenderOK("restored"), stats.Created, stats.Duplicates)
		return nil
	},
}

func init() {
	backupCmd.Flags().String("out", "", "write the export to this file instead of the configured destinations")
}
