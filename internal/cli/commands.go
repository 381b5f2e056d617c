package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avaloki108/mush-audit-sub001/internal/config"
	"github.com/avaloki108/mush-audit-sub001/internal/engine"
	"github.com/avaloki108/mush-audit-sub001/internal/intake"
	"github.com/avaloki108/mush-audit-sub001/internal/logging"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/narrative"
	"github.com/avaloki108/mush-audit-sub001/internal/store"
	"github.com/avaloki108/mush-audit-sub001/internal/tui"
)

func AddCommands(root *cobra.Command) {
	root.AddCommand(newScanCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newHistoryCmd())
}

func newScanCmd() *cobra.Command {
	var (
		format        string
		failOn        string
		outputFile    string
		useTUI        bool
		baselineFile  string
		writeBaseline string
		fromStdin     bool
		stdinName     string
		rules         []string
		severity      string
		timeout       time.Duration
		narrate       bool
		recordHistory bool
	)
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Analyze a Solidity project, directory or file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, closer, err := setup(path)
			if err != nil {
				return err
			}
			defer closer.Close()
			if len(rules) > 0 {
				cfg.Rules = rules
			}
			if severity != "" {
				cfg.SeverityThreshold = severity
			}

			units, err := collect(cmd, path, cfg, fromStdin, stdinName)
			if err != nil {
				return err
			}

			var opts []engine.Option
			if baselineFile != "" {
				opts = append(opts, engine.WithBaseline(baselineFile))
			}
			eng, err := engine.New(cfg, opts...)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			result, err := eng.Run(ctx, units)
			if err != nil {
				return err
			}
			rep := result.Report

			if writeBaseline != "" {
				if err := engine.WriteBaseline(writeBaseline, result.Findings); err != nil {
					return fmt.Errorf("write baseline: %w", err)
				}
			}
			if recordHistory {
				if err := record(ctx, cfg, path, result); err != nil {
					return err
				}
			}

			if useTUI {
				// TUI mode ignores format flags
				return tui.Run(rep)
			}
			var w io.Writer = cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := render(w, rep, format); err != nil {
				return err
			}
			if narrate {
				summarize(ctx, cmd, cfg, result)
			}

			if failOn != "" {
				threshold := model.ParseSeverity(failOn)
				if rep.AtLeast(threshold) {
					return fmt.Errorf("fail-on threshold met: findings at or above %s", threshold)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table|json|sarif|markdown")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Fail if a finding of severity or higher is found (low|medium|high|critical)")
	cmd.Flags().StringVarP(&outputFile, "out", "o", "", "Write report to file")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Browse findings interactively")
	cmd.Flags().StringVar(&baselineFile, "baseline", "", "Hide findings recorded in this baseline file")
	cmd.Flags().StringVar(&writeBaseline, "write-baseline", "", "Write a baseline file with finding fingerprints")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read a single source unit from standard input")
	cmd.Flags().StringVar(&stdinName, "name", "pasted.sol", "Unit name for --stdin input")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "Only run these rules or rule families")
	cmd.Flags().StringVar(&severity, "severity", "", "Minimum severity to report (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the analysis after this long")
	cmd.Flags().BoolVar(&narrate, "narrate", false, "Append a prose summary from the configured ollama model")
	cmd.Flags().BoolVar(&recordHistory, "history", false, "Record the report in the history database")
	return cmd
}

// setup loads the project config found from path and configures logging.
func setup(path string) (config.Config, io.Closer, error) {
	cfg, _, err := config.Load(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logging.InitLogger(cfg.Logging), nil
}

func collect(cmd *cobra.Command, path string, cfg config.Config, fromStdin bool, name string) ([]model.SourceUnit, error) {
	if fromStdin {
		u, err := intake.FromReader(cmd.InOrStdin(), name)
		if err != nil {
			return nil, err
		}
		return []model.SourceUnit{u}, nil
	}
	res, err := intake.Crawl(path, intake.Options{MaxFiles: cfg.MaxFiles})
	if err != nil {
		return nil, err
	}
	if res.Truncated {
		logging.For("intake").Warnf("found %d Solidity files, analyzing the first %d", res.Found, len(res.Units))
	}
	return res.Units, nil
}

func record(ctx context.Context, cfg config.Config, target string, result *engine.Result) error {
	s, err := store.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	run, err := s.Record(ctx, target, result.Report, time.Now())
	if err != nil {
		return err
	}
	logging.For("history").WithField("run", run.ID).Info("report recorded")
	return nil
}

// summarize prints the narrative to stderr. A failing model only logs.
func summarize(ctx context.Context, cmd *cobra.Command, cfg config.Config, result *engine.Result) {
	gen, err := narrative.NewOllama(cfg.Narrative)
	if err != nil {
		logging.For("narrative").WithError(err).Warn("narrative disabled")
		return
	}
	text, err := narrative.New(gen, cfg.Narrative.MaxPromptLength).Summarize(ctx, result.Report)
	if err != nil {
		logging.For("narrative").WithError(err).Warn("narrative failed")
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%s\n", text)
}
