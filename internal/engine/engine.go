package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/config"
	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/logging"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/plugins"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

const tracerName = "github.com/avaloki108/mush-audit-sub001/internal/engine"

// snippetLines is the context kept around a finding's primary line.
const snippetLines = 6

type Engine struct {
	cfg       config.Config
	registry  *plugins.Registry
	extractor *solidity.Extractor
	baseline  baseline
	log       *logrus.Entry
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Engine) error

// WithRegistry replaces the builtin detector set.
func WithRegistry(r *plugins.Registry) Option {
	return func(e *Engine) error {
		e.registry = r
		return nil
	}
}

// WithBaseline hides findings whose fingerprint is recorded in the file at path.
func WithBaseline(path string) Option {
	return func(e *Engine) error {
		b, err := loadBaseline(path)
		if err != nil {
			return fmt.Errorf("load baseline %s: %w", path, err)
		}
		e.baseline = b
		return nil
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}

// WithClock sets the time used to expire ignore rules.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		e.now = now
		return nil
	}
}

func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	ext, err := solidity.NewExtractor(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine cache: %w", err)
	}
	e := &Engine{
		cfg:       cfg,
		extractor: ext,
		log:       logging.For("engine"),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.registry == nil {
		e.registry = plugins.NewRegistry()
		e.registry.RegisterBuiltin()
	}
	return e, nil
}

// Result carries the report together with the intermediate models of a run.
type Result struct {
	Report    *report.Report
	Contracts []model.ContractState
	Graph     *depmap.Graph
	Flows     []model.CrossContractFlow
	// Findings are the suppressed and filtered findings before baseline
	// subtraction and report reduction. Baselines are written from these.
	Findings []model.Finding
	Elapsed  time.Duration
}

// Analyze runs the pipeline and returns only the report.
func (e *Engine) Analyze(ctx context.Context, units []model.SourceUnit) (*report.Report, error) {
	res, err := e.Run(ctx, units)
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

// Run executes intake validation, extraction, dependency mapping, flow
// construction, detection and report generation. Per-unit and per-flow
// problems become diagnostics; the only error is a cancelled context.
func (e *Engine) Run(ctx context.Context, units []model.SourceUnit) (*Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "analyze", trace.WithAttributes(attribute.Int("units", len(units))))
	defer span.End()

	var diags []model.Diagnostic
	if len(units) == 0 {
		diags = append(diags, model.Diagnostic{Kind: model.DiagInvalidInput, Message: model.ErrInvalidInput.Error() + ": no source units"})
		return &Result{Report: report.Empty(diags...), Elapsed: time.Since(start)}, nil
	}
	units = normalizeUnits(units)
	if len(units) > e.cfg.MaxFiles {
		diags = append(diags, model.Diagnostic{
			Kind:    model.DiagInvalidInput,
			Message: fmt.Sprintf("%d source units exceed the limit of %d; the rest were skipped", len(units), e.cfg.MaxFiles),
		})
		units = units[:e.cfg.MaxFiles]
	}

	contracts, extractDiags, err := e.extract(ctx, units)
	if err != nil {
		return nil, err
	}
	diags = append(diags, extractDiags...)

	_, gspan := e.tracer.Start(ctx, "depmap")
	graph := depmap.Build(contracts)
	for _, u := range graph.AllUnresolved() {
		d := model.Diagnostic{
			Kind:     model.DiagUnresolvedDependency,
			Contract: u.Contract,
			Message:  fmt.Sprintf("%s (%s) does not resolve to a contract in the batch", u.Variable, u.DeclaredType),
		}
		if c, ok := graph.Contract(u.Contract); ok {
			d.Unit = c.Unit
		}
		diags = append(diags, d)
	}
	gspan.SetAttributes(attribute.Int("edges", len(graph.Edges())))
	gspan.End()

	opts := e.analysisOptions()
	fctx, fspan := e.tracer.Start(ctx, "flows")
	flows, err := analysis.FlowAnalyzer{MaxDepth: opts.MaxDepth, Workers: opts.Workers, Log: logging.For("flows")}.Analyze(fctx, contracts, graph)
	fspan.SetAttributes(attribute.Int("flows", len(flows)))
	fspan.End()
	if err != nil {
		return nil, err
	}
	if flows == nil {
		flows = []model.CrossContractFlow{}
	}
	diags = append(diags, recursionDiagnostics(flows)...)

	pctx := &analysis.ProjectContext{
		Units:     units,
		Contracts: contracts,
		Graph:     graph,
		Flows:     flows,
		Options:   opts,
		Log:       logging.For("detect"),
	}
	dctx, dspan := e.tracer.Start(ctx, "detect")
	findings := e.registry.Only(e.cfg.Rules).Run(dctx, pctx)
	dspan.SetAttributes(attribute.Int("findings", len(findings)))
	dspan.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	findings = applyIgnores(findings, e.cfg, pctx, e.now())
	findings = filterBySeverity(findings, e.cfg)
	findings = filterByRules(findings, e.cfg)
	addSnippets(findings, pctx)
	kept := filterByBaseline(findings, e.baseline)

	_, rspan := e.tracer.Start(ctx, "report")
	rep := report.Generate(kept, diags, e.reportOptions())
	rspan.End()

	e.log.WithFields(logrus.Fields{
		"units":       len(units),
		"contracts":   len(contracts),
		"flows":       len(flows),
		"findings":    len(rep.Findings()),
		"diagnostics": len(diags),
	}).Info("analysis complete")

	return &Result{
		Report:    rep,
		Contracts: contracts,
		Graph:     graph,
		Flows:     flows,
		Findings:  findings,
		Elapsed:   time.Since(start),
	}, nil
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.NumCPU()
}

func (e *Engine) analysisOptions() analysis.Options {
	return analysis.Options{
		MaxDepth:           e.cfg.MaxDepth,
		Workers:            e.cfg.Workers,
		GuardModifiers:     e.cfg.GuardModifiers,
		AccountingKeywords: e.cfg.AccountingKeywords,
	}.WithDefaults()
}

func (e *Engine) reportOptions() report.Options {
	s := report.DefaultScoring()
	if e.cfg.ScoreDamping > 0 {
		s.Damping = e.cfg.ScoreDamping
	}
	return report.Options{GarbageKeywords: e.cfg.GarbageKeywords, Scoring: s}
}

// extract models every unit in parallel. Output keeps unit order; a unit that
// fails to parse contributes a diagnostic instead of contracts. A contract
// name declared twice keeps its first declaration.
func (e *Engine) extract(ctx context.Context, units []model.SourceUnit) ([]model.ContractState, []model.Diagnostic, error) {
	ctx, span := e.tracer.Start(ctx, "extract")
	defer span.End()

	type result struct {
		contracts []model.ContractState
		warning   *solidity.ParseWarning
	}
	results := make([]result, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, u := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cs, err := e.extractor.Extract(u)
			if err != nil {
				w, ok := solidity.IsParseWarning(err)
				if !ok {
					w = &solidity.ParseWarning{Unit: u.Name, Reason: err.Error()}
				}
				results[i].warning = w
				return nil
			}
			results[i].contracts = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		out   []model.ContractState
		diags []model.Diagnostic
	)
	declared := map[string]string{}
	for i, r := range results {
		if r.warning != nil {
			e.log.WithField("unit", units[i].Name).Warn(r.warning.Reason)
			diags = append(diags, r.warning.Diagnostic())
			continue
		}
		for _, c := range r.contracts {
			if first, dup := declared[c.Name]; dup {
				if c.Kind != model.KindInterface {
					diags = append(diags, model.Diagnostic{
						Kind:     model.DiagParseWarning,
						Unit:     c.Unit,
						Contract: c.Name,
						Message:  fmt.Sprintf("%s is already declared in %s; this declaration is ignored", c.Name, first),
					})
				}
				continue
			}
			declared[c.Name] = c.Unit
			out = append(out, c)
		}
	}
	span.SetAttributes(attribute.Int("contracts", len(out)), attribute.Int("cached", e.extractor.Cached()))
	return out, diags, nil
}

// normalizeUnits names anonymous units so findings can point at them.
func normalizeUnits(in []model.SourceUnit) []model.SourceUnit {
	out := make([]model.SourceUnit, len(in))
	for i, u := range in {
		if u.Name == "" {
			if u.Path != "" {
				u.Name = filepath.ToSlash(filepath.Base(u.Path))
			} else {
				u.Name = fmt.Sprintf("unit-%d.sol", i+1)
			}
		}
		out[i] = u
	}
	return out
}

// recursionDiagnostics reports each entry point whose traversal was truncated, once.
func recursionDiagnostics(flows []model.CrossContractFlow) []model.Diagnostic {
	var out []model.Diagnostic
	seen := map[model.FlowRef]bool{}
	for _, f := range flows {
		if !f.Partial || seen[f.Entry] {
			continue
		}
		seen[f.Entry] = true
		out = append(out, model.Diagnostic{
			Kind:     model.DiagRecursionLimitExceeded,
			Contract: f.Entry.Contract,
			Function: f.Entry.Function,
			Message:  "call chain exceeds the depth limit; the flow was truncated",
		})
	}
	return out
}

func addSnippets(findings []model.Finding, pctx *analysis.ProjectContext) {
	for i := range findings {
		if findings[i].Snippet != "" {
			continue
		}
		loc := findings[i].Primary()
		if loc.Line <= 0 {
			continue
		}
		findings[i].Snippet = util.ExtractSnippet(pctx.UnitText(loc.File), loc.Line, loc.Line, snippetLines)
	}
}
