package model

type Resolution string

const (
	Resolved           Resolution = "Resolved"
	UnresolvedExternal Resolution = "UnresolvedExternal"
)

// ResolutionMethod records which resolution tier produced an edge.
type ResolutionMethod string

const (
	ByDeclaredType     ResolutionMethod = "declared-type"
	ByNamingConvention ResolutionMethod = "naming-convention"
)

// DependencyEdge exists only when To names a contract of the same batch.
type DependencyEdge struct {
	From       string           `json:"from"`
	To         string           `json:"to"`
	Via        string           `json:"via"`
	Resolution Resolution       `json:"resolution"`
	Method     ResolutionMethod `json:"method"`
}

// UnresolvedRef is the UnresolvedExternal annotation kept on the owning contract.
type UnresolvedRef struct {
	Contract     string `json:"contract"`
	Variable     string `json:"variable"`
	DeclaredType string `json:"declaredType"`
}

type FlowRef struct {
	Contract string `json:"contract"`
	Function string `json:"function"`
}

type FlowStep struct {
	Contract string     `json:"contract"`
	Function string     `json:"function"`
	Kind     EffectKind `json:"kind"`
	Variable string     `json:"variable,omitempty"`
	Callee   string     `json:"callee,omitempty"`
	Line     int        `json:"line,omitempty"`
	Depth    int        `json:"depth"`
}

// FlowTagRecursionLimit marks flows truncated by the traversal bound.
const FlowTagRecursionLimit = "RecursionLimitExceeded"

// CrossContractFlow is one traced path starting at Entry.
type CrossContractFlow struct {
	Entry   FlowRef    `json:"entry"`
	Focus   string     `json:"focus"`
	Steps   []FlowStep `json:"steps"`
	Partial bool       `json:"partial"`
	Tags    []string   `json:"tags,omitempty"`
}

// Contracts returns the distinct contracts the flow touches, in order.
func (f CrossContractFlow) Contracts() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range f.Steps {
		if !seen[s.Contract] {
			seen[s.Contract] = true
			out = append(out, s.Contract)
		}
	}
	return out
}

type StateInvariant struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Contract    string   `json:"contract"`
	Severity    Severity `json:"severity"`
	Violated    bool     `json:"violated"`
	Evidence    []string `json:"evidence,omitempty"`
	Functions   []string `json:"functions,omitempty"`
}
