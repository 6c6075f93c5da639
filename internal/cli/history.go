package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sdejongh/treewarden/internal/platform"
	"github.com/sdejongh/treewarden/pkg/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent passes",
		Long:  `List the most recent passes recorded in the history database, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			path := cfg.History.Path
			if path == "" {
				if path, err = platform.DefaultHistoryPath(); err != nil {
					return err
				}
			}

			recorder, err := history.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer recorder.Close()

			records, err := recorder.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd, records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of passes to list")

	return cmd
}

func printHistory(cmd *cobra.Command, records []history.PassRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No passes recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tKIND\tSTATUS\tROOT\tTARGET\tCOPIED/NEW\tREMOVED\tCHANGED\tERRORS")
	for _, r := range records {
		kind := r.Kind
		if r.Mode != "" {
			kind += "/" + r.Mode
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.StartTime.Local().Format("2006-01-02 15:04:05"),
			kind, r.Status, r.Root, r.Target,
			r.Copied, r.Removed, r.Changed, r.Errors,
		)
	}
	return w.Flush()
}
