package analysis

import (
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

var CrossContractReentrancyMeta = model.RuleMeta{
	ID:       "SOL-XCONTRACT-REENTRANCY",
	Title:    "Cross-contract reentrancy: state read before external call and written after",
	Severity: model.SeverityHigh,
	Class:    "reentrancy",
	Tags:     []string{"reentrancy", "cei", "cross-contract"},
}

// ReentrancyDetector flags checks-effects-interactions violations that span
// contract boundaries.
type ReentrancyDetector struct {
	GuardModifiers     []string
	AccountingKeywords []string
}

// DetectCrossContractReentrancy runs the detector with default policy.
func DetectCrossContractReentrancy(flows []model.CrossContractFlow, graph *depmap.Graph) []model.Finding {
	return ReentrancyDetector{}.Detect(flows, graph)
}

type reentrancyHit struct {
	read, call, write model.FlowStep
}

// Detect reports, per entry function and variable V, a read of V in the entry
// contract followed by an external call followed by a write of V in the entry
// contract, when the entry function carries no reentrancy guard.
func (d ReentrancyDetector) Detect(flows []model.CrossContractFlow, graph *depmap.Graph) []model.Finding {
	opts := Options{GuardModifiers: d.GuardModifiers, AccountingKeywords: d.AccountingKeywords}.withDefaults()
	seen := map[string]bool{}
	var out []model.Finding
	for _, flow := range flows {
		entryContract, entryFn, ok := graph.LookupFunction(flow.Entry.Contract, flow.Entry.Function)
		if !ok || guarded(graph, entryContract, entryFn, opts.GuardModifiers) {
			continue
		}
		for _, hit := range cei(flow) {
			key := flow.Entry.Contract + "|" + flow.Entry.Function + "|" + hit.read.Variable
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, d.finding(flow, hit, entryContract, entryFn, graph, opts))
		}
	}
	return out
}

// cei returns one hit per variable, earliest read first.
func cei(flow model.CrossContractFlow) []reentrancyHit {
	entry := flow.Entry.Contract
	var hits []reentrancyHit
	done := map[string]bool{}
	for i, r := range flow.Steps {
		if r.Kind != model.EffectStateRead || r.Contract != entry || done[r.Variable] {
			continue
		}
		for j := i + 1; j < len(flow.Steps); j++ {
			c := flow.Steps[j]
			if c.Kind != model.EffectExternalCall {
				continue
			}
			for k := j + 1; k < len(flow.Steps); k++ {
				w := flow.Steps[k]
				if w.Kind == model.EffectStateWrite && w.Contract == entry && w.Variable == r.Variable {
					hits = append(hits, reentrancyHit{read: r, call: c, write: w})
					done[r.Variable] = true
					break
				}
			}
			if done[r.Variable] {
				break
			}
		}
	}
	return hits
}

// Guarded reports whether fn is protected against reentrancy, either by a
// configured marker or by a structural mutex modifier.
func Guarded(graph *depmap.Graph, c *model.ContractState, fn *model.FunctionModel, markers []string) bool {
	if len(markers) == 0 {
		markers = DefaultGuardModifiers
	}
	return guarded(graph, c, fn, markers)
}

// guarded reports whether fn carries a configured guard marker or a modifier
// that behaves like a mutex: it reads and writes the same variable around `_`.
func guarded(graph *depmap.Graph, c *model.ContractState, fn *model.FunctionModel, markers []string) bool {
	for _, m := range fn.Modifiers {
		for _, g := range markers {
			if strings.EqualFold(m, g) {
				return true
			}
		}
		if mod, ok := lookupModifier(graph, c, m); ok && isMutex(mod) {
			return true
		}
	}
	return false
}

func lookupModifier(graph *depmap.Graph, c *model.ContractState, name string) (*model.FunctionModel, bool) {
	visited := map[string]bool{}
	queue := []*model.ContractState{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.Name] {
			continue
		}
		visited[cur.Name] = true
		if m, ok := cur.Modifier(name); ok {
			return m, true
		}
		for _, b := range cur.Bases {
			if bc, ok := graph.Contract(b); ok {
				queue = append(queue, bc)
			}
		}
	}
	return nil, false
}

func isMutex(mod *model.FunctionModel) bool {
	placeholder := false
	for _, t := range mod.Body {
		if t.Is("_") {
			placeholder = true
			break
		}
	}
	if !placeholder {
		return false
	}
	reads := map[string]bool{}
	for _, v := range mod.Reads() {
		reads[v] = true
	}
	for _, v := range mod.Writes() {
		if reads[v] {
			return true
		}
	}
	return false
}

func (d ReentrancyDetector) finding(flow model.CrossContractFlow, hit reentrancyHit, c *model.ContractState, fn *model.FunctionModel, graph *depmap.Graph, opts Options) model.Finding {
	v := hit.read.Variable
	sev := accountingSeverity(c, graph, v, opts.AccountingKeywords)
	callee := hit.call.Callee
	if callee == "" {
		callee = hit.call.Contract + "." + hit.call.Function
	}
	f := model.Finding{
		RuleID:   CrossContractReentrancyMeta.ID,
		Class:    CrossContractReentrancyMeta.Class,
		Title:    fmt.Sprintf("Cross-contract reentrancy in %s.%s on %s", c.Name, fn.Name, v),
		Severity: sev,
		Description: fmt.Sprintf("%s.%s reads %s, calls %s, and only then writes %s. "+
			"The callee can re-enter %s while %s still holds the stale value.",
			c.Name, fn.Name, v, callee, v, c.Name, v),
		Impact: "An attacker-controlled callee re-enters before accounting is updated and acts on stale state.",
		Locations: []model.Location{
			{Contract: c.Name, Function: fn.Name, Line: hit.call.Line, File: c.Unit},
			{Contract: hit.write.Contract, Function: hit.write.Function, Line: hit.write.Line, File: c.Unit},
		},
		Recommendation: fmt.Sprintf("Update %s before the external call (checks-effects-interactions) or add a nonReentrant guard to %s.", v, fn.Name),
		Confidence:     model.ConfidenceConfirmed,
		Evidence: []string{
			fmt.Sprintf("read %s at %s.%s line %d", v, hit.read.Contract, hit.read.Function, hit.read.Line),
			fmt.Sprintf("external call %s at line %d", callee, hit.call.Line),
			fmt.Sprintf("write %s at %s.%s line %d", v, hit.write.Contract, hit.write.Function, hit.write.Line),
		},
		References: []string{"https://swcregistry.io/docs/SWC-107"},
	}
	if flow.Partial {
		f.Confidence = model.ConfidenceHeuristic
		f.Flags = append(f.Flags, model.FlagRecursionLimit)
	}
	if len(graph.Unresolved(c.Name)) > 0 {
		f.Flags = append(f.Flags, model.FlagUnresolvedDependency)
	}
	if model.SeverityGTE(sev, model.SeverityHigh) {
		f.EconomicImpact = fmt.Sprintf("Funds tracked by %s.%s can be withdrawn repeatedly within one transaction.", c.Name, v)
		f.PoCCode = ReentrancyPoC(c.Name, fn, callee)
	}
	util.Stamp(&f, v)
	return f
}

// accountingSeverity is Critical for per-account accounting mappings, High for
// other accounting names and Medium otherwise.
func accountingSeverity(c *model.ContractState, graph *depmap.Graph, name string, keywords []string) model.Severity {
	lower := strings.ToLower(name)
	match := false
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			match = true
			break
		}
	}
	if !match {
		return model.SeverityMedium
	}
	if v, ok := lookupVariable(graph, c, name); ok && v.IsMapping() {
		return model.SeverityCritical
	}
	return model.SeverityHigh
}

func lookupVariable(graph *depmap.Graph, c *model.ContractState, name string) (model.StateVariable, bool) {
	visited := map[string]bool{}
	queue := []*model.ContractState{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.Name] {
			continue
		}
		visited[cur.Name] = true
		if v, ok := cur.Variable(name); ok {
			return v, true
		}
		for _, b := range cur.Bases {
			if bc, ok := graph.Contract(b); ok {
				queue = append(queue, bc)
			}
		}
	}
	return model.StateVariable{}, false
}
