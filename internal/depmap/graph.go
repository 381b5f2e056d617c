package depmap

import (
	"sort"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

// Graph is the batch dependency graph. It is never mutated after Build and
// may be shared by concurrent readers.
type Graph struct {
	contracts  []model.ContractState
	index      map[string]int
	edges      []model.DependencyEdge
	from       map[string][]int
	unresolved map[string][]model.UnresolvedRef
}

// Build creates one node per contract and one edge per resolved variable
// reference. References that cannot be resolved are kept as annotations on
// the owning contract.
func Build(contracts []model.ContractState) *Graph {
	g := &Graph{
		index:      map[string]int{},
		from:       map[string][]int{},
		unresolved: map[string][]model.UnresolvedRef{},
	}
	for _, c := range contracts {
		if _, dup := g.index[c.Name]; dup {
			continue
		}
		g.index[c.Name] = len(g.contracts)
		g.contracts = append(g.contracts, c.Clone())
	}
	seenEdge := map[[2]string]bool{}
	seenRef := map[[2]string]bool{}
	for i := range g.contracts {
		c := &g.contracts[i]
		for _, v := range c.StateVariables {
			g.resolve(c, v.Name, v.Type, v.Name, seenEdge, seenRef)
		}
		for _, fn := range append(append([]model.FunctionModel(nil), c.Functions...), c.Modifiers...) {
			for _, cs := range fn.CallSites {
				if cs.Kind != model.CallExternal || cs.Receiver == "" {
					continue
				}
				if _, isVar := c.Variable(cs.Receiver); isVar {
					continue
				}
				g.resolve(c, receiverVia(fn.Name, cs.Receiver), cs.ReceiverType, cs.Receiver, seenEdge, seenRef)
			}
		}
	}
	return g
}

// receiverVia keys a non-state receiver. Locals are scoped to their
// function; casts carry their own type and stay contract-wide.
func receiverVia(fn, receiver string) string {
	if strings.Contains(receiver, "(") {
		return receiver
	}
	return fn + ":" + receiver
}

func (g *Graph) resolve(c *model.ContractState, via, typ, nameHint string, seenEdge, seenRef map[[2]string]bool) {
	if key := [2]string{c.Name, via}; seenEdge[key] || seenRef[key] {
		return
	}
	t := normalizeType(typ)
	var target *model.ContractState
	method := model.ByDeclaredType
	switch {
	case t == "" || t == "address" || t == "address payable":
		target = FindContractByName(nameHint, g.contracts)
		method = model.ByNamingConvention
		if target == nil {
			return
		}
	case solidity.IsElementaryType(t), c.DeclaresType(t):
		return
	default:
		target = FindContractByType(t, g.contracts)
		if target == nil {
			if target = FindContractByName(nameHint, g.contracts); target != nil {
				method = model.ByNamingConvention
			}
		}
	}
	if target == nil {
		key := [2]string{c.Name, via}
		if !seenRef[key] {
			seenRef[key] = true
			g.unresolved[c.Name] = append(g.unresolved[c.Name], model.UnresolvedRef{Contract: c.Name, Variable: via, DeclaredType: t})
		}
		return
	}
	seenEdge[[2]string{c.Name, via}] = true
	g.from[c.Name] = append(g.from[c.Name], len(g.edges))
	g.edges = append(g.edges, model.DependencyEdge{
		From:       c.Name,
		To:         target.Name,
		Via:        via,
		Resolution: model.Resolved,
		Method:     method,
	})
}

// Nodes returns contract names in batch order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.contracts))
	for i, c := range g.contracts {
		out[i] = c.Name
	}
	return out
}

func (g *Graph) Edges() []model.DependencyEdge {
	return append([]model.DependencyEdge(nil), g.edges...)
}

func (g *Graph) EdgesFrom(contract string) []model.DependencyEdge {
	var out []model.DependencyEdge
	for _, i := range g.from[contract] {
		out = append(out, g.edges[i])
	}
	return out
}

// Edge finds the edge a receiver of contract resolves through.
func (g *Graph) Edge(contract, via string) (model.DependencyEdge, bool) {
	for _, i := range g.from[contract] {
		if g.edges[i].Via == via {
			return g.edges[i], true
		}
	}
	return model.DependencyEdge{}, false
}

// EdgeFor finds the edge a receiver used inside function fn resolves
// through, preferring a local of fn over a contract-wide key.
func (g *Graph) EdgeFor(contract, fn, receiver string) (model.DependencyEdge, bool) {
	if e, ok := g.Edge(contract, receiverVia(fn, receiver)); ok {
		return e, true
	}
	return g.Edge(contract, receiver)
}

func (g *Graph) Unresolved(contract string) []model.UnresolvedRef {
	return append([]model.UnresolvedRef(nil), g.unresolved[contract]...)
}

// AllUnresolved returns every annotation ordered by contract then variable.
func (g *Graph) AllUnresolved() []model.UnresolvedRef {
	var out []model.UnresolvedRef
	for _, refs := range g.unresolved {
		out = append(out, refs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contract != out[j].Contract {
			return out[i].Contract < out[j].Contract
		}
		return out[i].Variable < out[j].Variable
	})
	return out
}

// Contract returns the graph's read-only copy of a contract.
func (g *Graph) Contract(name string) (*model.ContractState, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return &g.contracts[i], true
}

// Contracts returns the graph's contracts in batch order. Callers must not modify them.
func (g *Graph) Contracts() []model.ContractState {
	return g.contracts
}

// LookupFunction finds fn declared on contract or, failing that, on one of its
// bases in the batch, nearest first.
func (g *Graph) LookupFunction(contract, fn string) (*model.ContractState, *model.FunctionModel, bool) {
	visited := map[string]bool{}
	queue := []string{contract}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		c, ok := g.Contract(name)
		if !ok {
			continue
		}
		if f, ok := c.Function(fn); ok {
			return c, f, true
		}
		queue = append(queue, c.Bases...)
	}
	return nil, nil, false
}
