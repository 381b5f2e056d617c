package analysis

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// FlowAnalyzer builds cross-contract flows. Each entry function is traced
// independently; flows never share mutable state.
type FlowAnalyzer struct {
	MaxDepth int
	Workers  int
	Log      *logrus.Entry
}

// AnalyzeCrossContractFlows traces every externally reachable function with
// the default depth bound.
func AnalyzeCrossContractFlows(contracts []model.ContractState, graph *depmap.Graph) []model.CrossContractFlow {
	flows, _ := FlowAnalyzer{}.Analyze(context.Background(), contracts, graph)
	return flows
}

type entryRef struct {
	contract *model.ContractState
	fn       *model.FunctionModel
}

// Analyze emits one flow per resolvable external call site of each entry
// function. Output order follows contract and function declaration order.
func (a FlowAnalyzer) Analyze(ctx context.Context, contracts []model.ContractState, graph *depmap.Graph) ([]model.CrossContractFlow, error) {
	if graph == nil {
		graph = depmap.Build(contracts)
	}
	if a.MaxDepth <= 0 {
		a.MaxDepth = DefaultMaxDepth
	}
	workers := a.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var entries []entryRef
	for i := range contracts {
		c, ok := graph.Contract(contracts[i].Name)
		if !ok {
			c = &contracts[i]
		}
		if c.Kind == model.KindInterface {
			continue
		}
		for j := range c.Functions {
			fn := &c.Functions[j]
			if fn.HasBody && fn.IsExternallyReachable() && fn.Name != "constructor" {
				entries = append(entries, entryRef{contract: c, fn: fn})
			}
		}
	}

	results := make([][]model.CrossContractFlow, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.entryFlows(graph, e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []model.CrossContractFlow
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (a FlowAnalyzer) entryFlows(graph *depmap.Graph, e entryRef) []model.CrossContractFlow {
	scan := a.build(graph, e, -1)
	var out []model.CrossContractFlow
	for _, idx := range scan.resolved {
		out = append(out, a.build(graph, e, idx).flow)
	}
	return out
}

type flowBuilder struct {
	graph    *depmap.Graph
	maxDepth int
	focus    int
	calls    int
	resolved []int
	visited  map[string]bool
	flow     model.CrossContractFlow
}

// build traces one flow. focus selects which entry-level external call is
// expanded into its callee; -1 only records which calls are resolvable.
func (a FlowAnalyzer) build(graph *depmap.Graph, e entryRef, focus int) (b *flowBuilder) {
	b = &flowBuilder{
		graph:    graph,
		maxDepth: a.MaxDepth,
		focus:    focus,
		visited:  map[string]bool{},
		flow:     model.CrossContractFlow{Entry: model.FlowRef{Contract: e.contract.Name, Function: e.fn.Name}},
	}
	defer func() {
		if r := recover(); r != nil {
			b.truncate()
			if a.Log != nil {
				a.Log.WithFields(logrus.Fields{
					"contract": e.contract.Name,
					"function": e.fn.Name,
				}).Warnf("flow construction aborted: %v", r)
			}
		}
	}()
	b.expand(e.contract, e.fn, 0, true)
	return b
}

func (b *flowBuilder) truncate() {
	if !b.flow.Partial {
		b.flow.Partial = true
		b.flow.Tags = append(b.flow.Tags, model.FlowTagRecursionLimit)
	}
}

func (b *flowBuilder) expand(owner *model.ContractState, fn *model.FunctionModel, depth int, entry bool) {
	key := owner.Name + "." + fn.Name
	if b.visited[key] {
		return
	}
	b.visited[key] = true
	for _, eff := range fn.Effects {
		step := model.FlowStep{
			Contract: owner.Name,
			Function: fn.Name,
			Kind:     eff.Kind,
			Variable: eff.Variable,
			Line:     eff.Line,
			Depth:    depth,
		}
		cs, hasCall := fn.CallSiteOf(eff)
		switch eff.Kind {
		case model.EffectInternalCall:
			if hasCall {
				step.Callee = cs.Method
			}
			b.flow.Steps = append(b.flow.Steps, step)
			if !hasCall || cs.Receiver == "this" {
				continue
			}
			calleeOwner, callee, ok := b.internalTarget(owner, cs)
			if !ok || !callee.HasBody {
				continue
			}
			if depth+1 > b.maxDepth {
				b.truncate()
				continue
			}
			b.expand(calleeOwner, callee, depth+1, entry)
		case model.EffectExternalCall:
			if hasCall {
				step.Callee = cs.Expression
			}
			b.flow.Steps = append(b.flow.Steps, step)
			if !hasCall {
				continue
			}
			edge, resolved := b.graph.EdgeFor(owner.Name, fn.Name, cs.Receiver)
			if !resolved || cs.Kind == model.CallLowLevel {
				continue
			}
			if entry {
				idx := b.calls
				b.calls++
				if b.focus < 0 {
					b.resolved = append(b.resolved, idx)
				}
				if idx != b.focus {
					continue
				}
				b.flow.Focus = cs.Expression
			}
			target, callee, ok := b.graph.LookupFunction(edge.To, cs.Method)
			if !ok || !callee.HasBody {
				continue
			}
			if depth+1 > b.maxDepth {
				b.truncate()
				continue
			}
			b.expand(target, callee, depth+1, false)
		default:
			b.flow.Steps = append(b.flow.Steps, step)
		}
	}
}

func (b *flowBuilder) internalTarget(owner *model.ContractState, cs model.CallSite) (*model.ContractState, *model.FunctionModel, bool) {
	if cs.Receiver != "super" {
		return b.graph.LookupFunction(owner.Name, cs.Method)
	}
	for _, base := range owner.Bases {
		if c, f, ok := b.graph.LookupFunction(base, cs.Method); ok {
			return c, f, true
		}
	}
	return nil, nil, false
}

// FlowString renders a flow compactly for logs and the graph command.
func FlowString(f model.CrossContractFlow) string {
	s := fmt.Sprintf("%s.%s", f.Entry.Contract, f.Entry.Function)
	for _, c := range f.Contracts() {
		if c != f.Entry.Contract {
			s += " -> " + c
		}
	}
	if f.Partial {
		s += " (partial)"
	}
	return s
}
