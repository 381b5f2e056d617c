package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/avaloki108/mush-audit-sub001/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{Use: "history", Short: "Inspect recorded reports"}
	cmd.PersistentFlags().StringVarP(&dir, "dir", "d", ".", "Project directory whose config locates the history database")

	var (
		target string
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeAll, err := openHistory(dir)
			if err != nil {
				return err
			}
			defer closeAll()
			runs, err := s.Recent(cmd.Context(), target, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tTARGET\tRISK\tCRIT\tHIGH\tMED\tLOW\tINFO")
			for _, r := range runs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%d\t%d\t%d\t%d\t%d\n",
					r.ID, r.CreatedAt.Format(time.RFC3339), r.Target, r.RiskScore, r.Critical, r.High, r.Medium, r.Low, r.Informational)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&target, "target", "", "Only runs for this target")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")

	var format string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a recorded report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			s, closeAll, err := openHistory(dir)
			if err != nil {
				return err
			}
			defer closeAll()
			rep, err := s.Load(cmd.Context(), uint(id))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), rep, format)
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "table", "Output format: table|json|sarif|markdown")

	cmd.AddCommand(list, show)
	return cmd
}

func openHistory(dir string) (*store.Store, func(), error) {
	cfg, closer, err := setup(dir)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(cfg.History.Path)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return s, func() {
		s.Close()
		closer.Close()
	}, nil
}
