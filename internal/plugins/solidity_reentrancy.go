package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityReentrancy flags functions where a call into unknown code occurs
// before a state write: low-level value calls and external calls the
// dependency graph cannot resolve. Resolved calls are the cross-contract
// detector's job.
type solidityReentrancy struct{}

func (d *solidityReentrancy) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-REENTRANCY-ORDER", Title: "External call before state update", Severity: model.SeverityHigh, Class: "reentrancy"}
}

func (d *solidityReentrancy) AnalyzeBatch(ctx context.Context, pctx *analysis.ProjectContext) ([]model.Finding, error) {
	graph := pctx.Graph
	if graph == nil {
		graph = depmap.Build(pctx.Contracts)
	}
	opts := pctx.Options.WithDefaults()
	var findings []model.Finding
	contracts := graph.Contracts()
	for i := range contracts {
		c := &contracts[i]
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		if c.Kind == model.KindInterface || c.Kind == model.KindLibrary {
			continue
		}
		for j := range c.Functions {
			fn := &c.Functions[j]
			if !fn.HasBody || !fn.IsExternallyReachable() || !fn.IsMutating() || fn.Name == "constructor" {
				continue
			}
			if analysis.Guarded(graph, c, fn, opts.GuardModifiers) {
				continue
			}
			if f, ok := d.check(graph, c, fn, opts); ok {
				findings = append(findings, f)
			}
		}
	}
	return findings, nil
}

func (d *solidityReentrancy) check(graph *depmap.Graph, c *model.ContractState, fn *model.FunctionModel, opts analysis.Options) (model.Finding, bool) {
	read := map[string]bool{}
	var call *model.CallSite
	for _, eff := range fn.Effects {
		switch eff.Kind {
		case model.EffectStateRead:
			if call == nil {
				read[eff.Variable] = true
			}
		case model.EffectExternalCall:
			if call != nil {
				continue
			}
			cs, ok := fn.CallSiteOf(eff)
			if ok && opaqueCall(graph, c, fn, cs) {
				call = &cs
			}
		case model.EffectStateWrite:
			if call == nil {
				continue
			}
			sev := model.SeverityMedium
			if read[eff.Variable] && accounting(eff.Variable, opts.AccountingKeywords) {
				sev = model.SeverityHigh
			}
			f := newFinding(d.Meta(), c, fn, call.Line)
			f.Severity = sev
			f.Locations = append(f.Locations, model.Location{Contract: c.Name, Function: fn.Name, Line: eff.Line, File: c.Unit})
			f.Description = fmt.Sprintf("%s.%s calls %s before writing %s.", c.Name, fn.Name, call.Expression, eff.Variable)
			f.Impact = "The callee runs arbitrary code and can re-enter while state is stale."
			f.Recommendation = "Move state updates before external calls or add ReentrancyGuard; prefer pull over push."
			f.Evidence = []string{
				fmt.Sprintf("%s call %s at line %d", call.Kind, call.Expression, call.Line),
				fmt.Sprintf("write %s at line %d", eff.Variable, eff.Line),
			}
			f.References = []string{"https://swcregistry.io/docs/SWC-107"}
			if len(graph.Unresolved(c.Name)) > 0 {
				f.Flags = append(f.Flags, model.FlagUnresolvedDependency)
			}
			util.Stamp(&f, eff.Variable)
			return f, true
		}
	}
	return model.Finding{}, false
}

// opaqueCall is true for calls whose target code the batch cannot see.
func opaqueCall(graph *depmap.Graph, c *model.ContractState, fn *model.FunctionModel, cs model.CallSite) bool {
	if cs.Kind == model.CallLowLevel {
		switch cs.Method {
		case "call", "sendValue", "functionCall", "functionCallWithValue":
			return true
		}
		return false
	}
	_, resolved := graph.EdgeFor(c.Name, fn.Name, cs.Receiver)
	return !resolved
}

func accounting(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
