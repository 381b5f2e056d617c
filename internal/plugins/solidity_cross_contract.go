package plugins

import (
	"context"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// crossContractReentrancy runs the flow analyzer (unless a flow stage already
// did) and the cross-contract reentrancy detector over the whole batch.
type crossContractReentrancy struct{}

func (d *crossContractReentrancy) Meta() model.RuleMeta { return analysis.CrossContractReentrancyMeta }

func (d *crossContractReentrancy) AnalyzeBatch(ctx context.Context, pctx *analysis.ProjectContext) ([]model.Finding, error) {
	graph := pctx.Graph
	if graph == nil {
		graph = depmap.Build(pctx.Contracts)
	}
	opts := pctx.Options.WithDefaults()
	flows := pctx.Flows
	if flows == nil {
		var err error
		fa := analysis.FlowAnalyzer{MaxDepth: opts.MaxDepth, Workers: opts.Workers, Log: pctx.Log}
		if flows, err = fa.Analyze(ctx, pctx.Contracts, graph); err != nil {
			return nil, err
		}
	}
	det := analysis.ReentrancyDetector{GuardModifiers: opts.GuardModifiers, AccountingKeywords: opts.AccountingKeywords}
	return det.Detect(flows, graph), nil
}

// stateInvariants evaluates the built-in invariant catalogue.
type stateInvariants struct{}

func (d *stateInvariants) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-INVARIANT", Title: "Accounting invariant violated", Severity: model.SeverityHigh, Class: "invariant", Tags: []string{"invariant", "accounting"}}
}

func (d *stateInvariants) AnalyzeBatch(ctx context.Context, pctx *analysis.ProjectContext) ([]model.Finding, error) {
	ic, err := analysis.DefaultChecker()
	if err != nil {
		return nil, err
	}
	graph := pctx.Graph
	if graph == nil {
		graph = depmap.Build(pctx.Contracts)
	}
	return ic.InvariantFindings(ic.Check(pctx.Contracts, graph), graph), nil
}
