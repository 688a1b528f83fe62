package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lulu_studio/asset"
	"lulu_studio/core"
	"lulu_studio/metrics"
)

var (
	historyLimit int

	exportAll bool
	exportOut string

	pruneKeep int

	activityLimit     int
	activityOperation string
	activityPrune     time.Duration
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "Inspect and manage the image history",
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List history entries, most recent first",
	Args:    cobra.NoArgs,
	RunE:    runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one history entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Remove an entry from the history",
	Args:    cobra.ExactArgs(1),
	RunE:    runHistoryDelete,
}

var historyExportCmd = &cobra.Command{
	Use:   "export [id...]",
	Short: "Save history images to disk",
	Long: `Save history images to disk. Without ids the most recent image is saved;
--all saves every entry.`,
	RunE: runHistoryExport,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune --keep N",
	Short: "Drop all but the N most recent entries",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

var historyActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the recorded generation activity (sqlite backend)",
	Args:  cobra.NoArgs,
	RunE:  runHistoryActivity,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show at most this many entries (0 for all)")

	historyExportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every history entry")
	historyExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Directory to save the images to (default DOWNLOADS_DIR)")

	historyPruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "Number of most recent entries to keep")
	historyPruneCmd.MarkFlagRequired("keep")

	historyActivityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 20, "Show at most this many entries")
	historyActivityCmd.Flags().StringVar(&activityOperation, "operation", "", "Only show one operation: enhance, generate or upscale")
	historyActivityCmd.Flags().DurationVar(&activityPrune, "prune-older-than", 0, "Delete entries older than this before listing")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd, historyExportCmd, historyPruneCmd, historyActivityCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, app *App) error {
		out := cmd.OutOrStdout()
		records := app.History.List()
		if len(records) == 0 {
			dimColor.Fprintln(out, "No images yet. Create one with 'lulu generate <prompt>'.")
			return nil
		}
		shown := records
		if historyLimit > 0 && historyLimit < len(shown) {
			shown = shown[:historyLimit]
		}
		printHeader(out, fmt.Sprintf("History (%d of %d)", len(shown), len(records)))
		now := time.Now()
		for _, rec := range shown {
			printRecordLine(out, rec, now)
		}
		if saved, ok := app.History.SavedAt(ctx); ok {
			dimColor.Fprintf(out, "\nLast saved %s ago to %s\n", core.FormatAge(now.Sub(saved)), app.History.SlotName())
		}
		return nil
	})
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	if pruneKeep < 1 {
		return withExitCode(core.ExitCodeConfig, fmt.Errorf("--keep must be at least 1, got %d", pruneKeep))
	}
	return withApp(cmd, appOptions{}, func(ctx context.Context, app *App) error {
		dropped := app.History.Prune(ctx, pruneKeep)
		app.updateHistoryStatus()
		printSuccess(cmd.OutOrStdout(), "Pruned %d entries (%d left)", dropped, app.History.Len())
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, app *App) error {
		rec, ok := app.History.Get(args[0])
		if !ok {
			return fmt.Errorf("no history entry %q", args[0])
		}
		printRecord(cmd.OutOrStdout(), rec, time.Now())
		return nil
	})
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(ctx context.Context, app *App) error {
		if !app.History.Remove(ctx, args[0]) {
			return fmt.Errorf("no history entry %q", args[0])
		}
		app.updateHistoryStatus()
		printSuccess(cmd.OutOrStdout(), "Deleted %s (%d left)", args[0], app.History.Len())
		return nil
	})
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	if exportAll && len(args) > 0 {
		return withExitCode(core.ExitCodeConfig, errors.New("pass ids or --all, not both"))
	}
	return withApp(cmd, appOptions{}, func(ctx context.Context, app *App) error {
		var records []asset.Record
		switch {
		case exportAll:
			records = app.History.List()
		case len(args) > 0:
			for _, id := range args {
				rec, ok := app.History.Get(id)
				if !ok {
					return fmt.Errorf("no history entry %q", id)
				}
				records = append(records, rec)
			}
		default:
			if rec, ok := app.History.Latest(); ok {
				records = append(records, rec)
			}
		}
		if len(records) == 0 {
			return errors.New("the history is empty")
		}

		dir := exportOut
		if dir == "" {
			dir = app.Exporter.DownloadsDir()
		}
		var errs []error
		for _, rec := range records {
			res, err := app.Exporter.ExportTo(ctx, rec, dir)
			if err != nil {
				printWarning(cmd.ErrOrStderr(), "%s: %v", rec.ID, err)
				errs = append(errs, err)
				continue
			}
			printExport(cmd.OutOrStdout(), res)
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d of %d exports failed", len(errs), len(records))
		}
		return nil
	})
}

func runHistoryActivity(cmd *cobra.Command, args []string) error {
	switch activityOperation {
	case "", metrics.TaskTypeEnhance, metrics.TaskTypeGenerate, metrics.TaskTypeUpscale:
	default:
		return withExitCode(core.ExitCodeConfig, core.ErrInvalidValue("--operation", activityOperation,
			[]string{metrics.TaskTypeEnhance, metrics.TaskTypeGenerate, metrics.TaskTypeUpscale}))
	}
	return withApp(cmd, appOptions{}, func(ctx context.Context, app *App) error {
		out := cmd.OutOrStdout()
		if app.Activity == nil {
			printWarning(out, "The activity log needs STORAGE_BACKEND=sqlite")
			return nil
		}
		if activityPrune > 0 {
			removed, err := app.Activity.PruneActivity(ctx, time.Now().Add(-activityPrune))
			if err != nil {
				return err
			}
			printSuccess(out, "Pruned %d entries older than %s", removed, core.FormatDuration(activityPrune))
		}
		entries, err := app.Activity.RecentActivity(ctx, activityOperation, activityLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			dimColor.Fprintln(out, "No activity recorded.")
			return nil
		}
		printHeader(out, "Activity")
		for _, e := range entries {
			status := successColor
			if e.Status != metrics.TaskStatusSuccess {
				status = errorColor
			}
			dimColor.Fprintf(out, "%s  ", e.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "%-8s ", e.Operation)
			status.Fprintf(out, "%-15s", e.Status)
			dimColor.Fprintf(out, " %6s  %s", core.FormatDuration(e.Duration), e.Model)
			if e.AssetID != "" {
				idColor.Fprintf(out, "  %s", e.AssetID)
			}
			fmt.Fprintln(out)
			if e.ErrorMessage != "" {
				dimColor.Fprintf(out, "  └─ %s\n", e.ErrorMessage)
			}
		}
		return nil
	})
}
