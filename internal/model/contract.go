package model

// SourceUnit is one named contract source file. It is never modified after intake.
type SourceUnit struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Text string `json:"text"`
}

type ContractKind string

const (
	KindContract  ContractKind = "contract"
	KindAbstract  ContractKind = "abstract"
	KindInterface ContractKind = "interface"
	KindLibrary   ContractKind = "library"
)

type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenString
	TokenPunct
)

// Token is the unit of the shared lightweight IR every detector reads.
type Token struct {
	Kind TokenKind `json:"kind"`
	Text string    `json:"text"`
	Line int       `json:"line"`
}

func (t Token) Is(text string) bool { return t.Text == text }

type StateVariable struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
	Constant   bool   `json:"constant,omitempty"`
	Immutable  bool   `json:"immutable,omitempty"`
	Line       int    `json:"line"`
}

// IsMapping reports whether the variable is a mapping.
func (v StateVariable) IsMapping() bool {
	return len(v.Type) >= 7 && v.Type[:7] == "mapping"
}

type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
}

type CallKind string

const (
	CallExternal CallKind = "external"
	CallLowLevel CallKind = "low-level"
	CallInternal CallKind = "internal"
	CallLibrary  CallKind = "library"
)

// CallSite is one call expression inside a function body. Receiver is the
// stable lookup key used by the dependency graph (base identifier, cast
// expression or member chain).
type CallSite struct {
	Expression   string   `json:"expression"`
	Receiver     string   `json:"receiver,omitempty"`
	Method       string   `json:"method"`
	ReceiverType string   `json:"receiverType,omitempty"`
	Kind         CallKind `json:"kind"`
	Args         int      `json:"args"`
	Line         int      `json:"line"`
}

type EffectKind string

const (
	EffectExternalCall EffectKind = "ExternalCall"
	EffectStateRead    EffectKind = "StateRead"
	EffectStateWrite   EffectKind = "StateWrite"
	EffectInternalCall EffectKind = "InternalCall"
)

// Effect is an ordered observable action of a function body. CallSite is an
// index into FunctionModel.CallSites, or -1.
type Effect struct {
	Kind     EffectKind `json:"kind"`
	Variable string     `json:"variable,omitempty"`
	CallSite int        `json:"callSite"`
	Line     int        `json:"line"`
}

type FunctionModel struct {
	Name       string     `json:"name"`
	Visibility string     `json:"visibility"`
	Mutability string     `json:"mutability,omitempty"`
	Modifiers  []string   `json:"modifiers,omitempty"`
	Params     []Param    `json:"params,omitempty"`
	Returns    []Param    `json:"returns,omitempty"`
	Selector   string     `json:"selector,omitempty"`
	CallSites  []CallSite `json:"callSites,omitempty"`
	Effects    []Effect   `json:"effects,omitempty"`
	Body       []Token    `json:"-"`
	HasBody    bool       `json:"hasBody"`
	Line       int        `json:"line"`
}

// HasModifier reports whether name is applied to the function.
func (f FunctionModel) HasModifier(name string) bool {
	for _, m := range f.Modifiers {
		if m == name {
			return true
		}
	}
	return false
}

// IsExternallyReachable is true for public/external functions and the special entry points.
func (f FunctionModel) IsExternallyReachable() bool {
	switch f.Visibility {
	case "public", "external":
		return true
	}
	return f.Name == "fallback" || f.Name == "receive"
}

// IsMutating is false for view/pure functions.
func (f FunctionModel) IsMutating() bool {
	return f.Mutability != "view" && f.Mutability != "pure" && f.Mutability != "constant"
}

// CallSiteOf returns the call site an effect refers to.
func (f FunctionModel) CallSiteOf(e Effect) (CallSite, bool) {
	if e.CallSite < 0 || e.CallSite >= len(f.CallSites) {
		return CallSite{}, false
	}
	return f.CallSites[e.CallSite], true
}

// Writes returns the distinct state variables written by the function, in order.
func (f FunctionModel) Writes() []string { return f.distinct(EffectStateWrite) }

// Reads returns the distinct state variables read by the function, in order.
func (f FunctionModel) Reads() []string { return f.distinct(EffectStateRead) }

func (f FunctionModel) distinct(kind EffectKind) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range f.Effects {
		if e.Kind != kind || e.Variable == "" || seen[e.Variable] {
			continue
		}
		seen[e.Variable] = true
		out = append(out, e.Variable)
	}
	return out
}

type ContractState struct {
	Name           string          `json:"name"`
	Kind           ContractKind    `json:"kind"`
	Unit           string          `json:"unit"`
	Path           string          `json:"path,omitempty"`
	Pragma         string          `json:"pragma,omitempty"`
	Bases          []string        `json:"bases,omitempty"`
	StateVariables []StateVariable `json:"stateVariables"`
	Functions      []FunctionModel `json:"functions"`
	Modifiers      []FunctionModel `json:"modifiers,omitempty"`
	StructNames    []string        `json:"structNames,omitempty"`
	EnumNames      []string        `json:"enumNames,omitempty"`
	Line           int             `json:"line"`
}

func (c *ContractState) Variable(name string) (StateVariable, bool) {
	for _, v := range c.StateVariables {
		if v.Name == name {
			return v, true
		}
	}
	return StateVariable{}, false
}

// Function returns the first function with the given name.
func (c *ContractState) Function(name string) (*FunctionModel, bool) {
	for i := range c.Functions {
		if c.Functions[i].Name == name {
			return &c.Functions[i], true
		}
	}
	return nil, false
}

func (c *ContractState) Modifier(name string) (*FunctionModel, bool) {
	for i := range c.Modifiers {
		if c.Modifiers[i].Name == name {
			return &c.Modifiers[i], true
		}
	}
	return nil, false
}

// DeclaresType reports whether name is a struct or enum declared by the contract.
func (c *ContractState) DeclaresType(name string) bool {
	for _, s := range c.StructNames {
		if s == name {
			return true
		}
	}
	for _, e := range c.EnumNames {
		if e == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the contract model.
func (c ContractState) Clone() ContractState {
	out := c
	out.Bases = append([]string(nil), c.Bases...)
	out.StateVariables = append([]StateVariable(nil), c.StateVariables...)
	out.StructNames = append([]string(nil), c.StructNames...)
	out.EnumNames = append([]string(nil), c.EnumNames...)
	out.Functions = cloneFunctions(c.Functions)
	out.Modifiers = cloneFunctions(c.Modifiers)
	return out
}

func cloneFunctions(in []FunctionModel) []FunctionModel {
	if in == nil {
		return nil
	}
	out := make([]FunctionModel, len(in))
	for i, f := range in {
		f.Modifiers = append([]string(nil), f.Modifiers...)
		f.Params = append([]Param(nil), f.Params...)
		f.Returns = append([]Param(nil), f.Returns...)
		f.CallSites = append([]CallSite(nil), f.CallSites...)
		f.Effects = append([]Effect(nil), f.Effects...)
		f.Body = append([]Token(nil), f.Body...)
		out[i] = f
	}
	return out
}
