package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/engine"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

type graphView struct {
	Nodes       []string                  `json:"nodes"`
	Edges       []model.DependencyEdge    `json:"edges"`
	Unresolved  []model.UnresolvedRef     `json:"unresolved"`
	Flows       []model.CrossContractFlow `json:"flows"`
	Diagnostics []model.Diagnostic        `json:"diagnostics"`
}

func newGraphCmd() *cobra.Command {
	var (
		asJSON    bool
		showFlows bool
	)
	cmd := &cobra.Command{
		Use:   "graph [path]",
		Short: "Print the inter-contract dependency graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			cfg, closer, err := setup(path)
			if err != nil {
				return err
			}
			defer closer.Close()
			units, err := collect(cmd, path, cfg, false, "")
			if err != nil {
				return err
			}
			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			res, err := eng.Run(cmd.Context(), units)
			if err != nil {
				return err
			}
			view := graphView{
				Nodes:       []string{},
				Edges:       []model.DependencyEdge{},
				Unresolved:  []model.UnresolvedRef{},
				Flows:       []model.CrossContractFlow{},
				Diagnostics: res.Report.Diagnostics(),
			}
			if res.Graph != nil {
				view.Nodes = append(view.Nodes, res.Graph.Nodes()...)
				view.Edges = append(view.Edges, res.Graph.Edges()...)
				view.Unresolved = append(view.Unresolved, res.Graph.AllUnresolved()...)
			}
			if showFlows {
				view.Flows = append(view.Flows, res.Flows...)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintf(out, "Contracts (%d)\n", len(view.Nodes))
			for _, n := range view.Nodes {
				fmt.Fprintf(out, "  %s\n", n)
			}
			fmt.Fprintf(out, "Edges (%d)\n", len(view.Edges))
			for _, e := range view.Edges {
				fmt.Fprintf(out, "  %s -> %s via %s (%s)\n", e.From, e.To, e.Via, e.Method)
			}
			fmt.Fprintf(out, "Unresolved (%d)\n", len(view.Unresolved))
			for _, u := range view.Unresolved {
				fmt.Fprintf(out, "  %s.%s: %s\n", u.Contract, u.Variable, u.DeclaredType)
			}
			if showFlows {
				fmt.Fprintf(out, "Flows (%d)\n", len(view.Flows))
				for _, f := range view.Flows {
					fmt.Fprintf(out, "  %s\n", analysis.FlowString(f))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the graph as JSON")
	cmd.Flags().BoolVar(&showFlows, "flows", false, "Include cross-contract flows")
	return cmd
}
