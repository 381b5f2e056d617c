package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// InvariantPattern is one catalogue entry. Applies is a CEL predicate over
// `vars` (name, type, mapping, constant) and `functions` (name, visibility,
// mutating, reachable, reads, writes, calls). Check runs only when it holds.
type InvariantPattern struct {
	ID             string
	Description    string
	Severity       model.Severity
	Applies        string
	Recommendation string
	Check          func(s *ContractShape) (evidence, functions []string)
}

var (
	reBalanceMapping  = regexp.MustCompile(`(?i)balance`)
	reAggregate       = regexp.MustCompile(`(?i)(^_?total|supply$)`)
	reBalanceMoving   = regexp.MustCompile(`(?i)(transfer|move|swap)`)
	reRatioFunction   = regexp.MustCompile(`(?i)(pricepershare|shareprice|exchangerate|converttoassets|converttoshares|totalassets)`)
	reAssetAccounting = regexp.MustCompile(`(?i)(total(assets|deposits|managed|underlying|debt)|stored|cached|internalbalance)`)
	reReserve         = regexp.MustCompile(`(?i)^_?reserve`)
	reReserveExempt   = regexp.MustCompile(`(?i)(skim|sync|rescue|sweep)`)
)

var tokenMoves = map[string]bool{"transfer": true, "transferFrom": true, "safeTransfer": true, "safeTransferFrom": true}

// DefaultInvariants is the built-in catalogue.
func DefaultInvariants() []InvariantPattern {
	return []InvariantPattern{
		{
			ID:             "balance-total-reconciliation",
			Description:    "Every mutating function that changes per-account balances must also reconcile the aggregate total, and vice versa.",
			Severity:       model.SeverityHigh,
			Applies:        `vars.exists(v, v.mapping && v.name.matches('(?i)balance')) && vars.exists(v, !v.mapping && !v.constant && v.name.matches('(?i)(^_?total|supply$)'))`,
			Recommendation: "Update the aggregate total in the same code path as the per-account balance, or assert sum(balances) == total in tests.",
			Check:          checkBalanceTotal,
		},
		{
			ID:             "share-price-donation",
			Description:    "A share price derived from the contract's raw token balance can be moved by direct donations without share issuance.",
			Severity:       model.SeverityHigh,
			Applies:        `vars.exists(v, v.name.matches('(?i)(share|supply)')) && functions.exists(f, f.name.matches('(?i)(pricepershare|shareprice|exchangerate|converttoassets|converttoshares|totalassets)'))`,
			Recommendation: "Track deposited assets in an internal variable and price shares from it, or mint dead shares on first deposit.",
			Check:          checkSharePriceDonation,
		},
		{
			ID:             "reserve-sync",
			Description:    "Functions that move pool tokens must keep cached reserves in sync.",
			Severity:       model.SeverityMedium,
			Applies:        `vars.exists(v, !v.constant && v.name.matches('(?i)^_?reserve'))`,
			Recommendation: "Update the cached reserves after every token movement (as in a _update/sync step).",
			Check:          checkReserveSync,
		},
	}
}

type compiledPattern struct {
	InvariantPattern
	program cel.Program
}

// InvariantChecker evaluates a compiled catalogue. It is safe for concurrent use.
type InvariantChecker struct {
	patterns []compiledPattern
}

// NewInvariantChecker compiles every applicability predicate up front.
func NewInvariantChecker(patterns []InvariantPattern) (*InvariantChecker, error) {
	env, err := cel.NewEnv(
		cel.Variable("vars", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.Variable("functions", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ic := &InvariantChecker{}
	for _, p := range patterns {
		ast, iss := env.Compile(p.Applies)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("invariant %s: %w", p.ID, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("invariant %s: %w", p.ID, err)
		}
		ic.patterns = append(ic.patterns, compiledPattern{InvariantPattern: p, program: prg})
	}
	return ic, nil
}

var defaultChecker = sync.OnceValues(func() (*InvariantChecker, error) {
	return NewInvariantChecker(DefaultInvariants())
})

// DefaultChecker returns the shared checker for the built-in catalogue.
func DefaultChecker() (*InvariantChecker, error) { return defaultChecker() }

// CheckStateInvariants evaluates the default catalogue against every contract.
func CheckStateInvariants(contracts []model.ContractState) []model.StateInvariant {
	ic, err := defaultChecker()
	if err != nil {
		return nil
	}
	return ic.Check(contracts, depmap.Build(contracts))
}

// Check returns one StateInvariant per applicable (contract, pattern) pair.
func (ic *InvariantChecker) Check(contracts []model.ContractState, graph *depmap.Graph) []model.StateInvariant {
	var out []model.StateInvariant
	for i := range contracts {
		c, ok := graph.Contract(contracts[i].Name)
		if !ok {
			c = &contracts[i]
		}
		if c.Kind == model.KindInterface || c.Kind == model.KindLibrary {
			continue
		}
		s := newShape(c, graph)
		input := s.celInput()
		for _, p := range ic.patterns {
			val, _, err := p.program.Eval(input)
			if err != nil {
				continue
			}
			if applies, ok := val.Value().(bool); !ok || !applies {
				continue
			}
			evidence, fns := p.Check(s)
			out = append(out, model.StateInvariant{
				ID:          p.ID,
				Description: p.Description,
				Contract:    c.Name,
				Severity:    p.Severity,
				Violated:    len(evidence) > 0,
				Evidence:    evidence,
				Functions:   fns,
			})
		}
	}
	return out
}

// Pattern returns the catalogue entry with the given id.
func (ic *InvariantChecker) Pattern(id string) (InvariantPattern, bool) {
	for _, p := range ic.patterns {
		if p.ID == id {
			return p.InvariantPattern, true
		}
	}
	return InvariantPattern{}, false
}

// InvariantFindings converts violated invariants into findings.
func (ic *InvariantChecker) InvariantFindings(invs []model.StateInvariant, graph *depmap.Graph) []model.Finding {
	var out []model.Finding
	for _, inv := range invs {
		if !inv.Violated {
			continue
		}
		p, _ := ic.Pattern(inv.ID)
		loc := model.Location{Contract: inv.Contract}
		if c, ok := graph.Contract(inv.Contract); ok {
			loc.File = c.Unit
			loc.Line = c.Line
			if len(inv.Functions) > 0 {
				loc.Function = inv.Functions[0]
				if fn, ok := c.Function(inv.Functions[0]); ok {
					loc.Line = fn.Line
				}
			}
		}
		f := model.Finding{
			RuleID:         "SOL-INVARIANT-" + strings.ToUpper(inv.ID),
			Class:          "invariant:" + inv.ID,
			Title:          fmt.Sprintf("Invariant %s violated in %s", inv.ID, inv.Contract),
			Severity:       inv.Severity,
			Description:    inv.Description,
			Impact:         "Accounting can drift from the tokens actually held, letting users redeem more or less than they are owed.",
			Locations:      []model.Location{loc},
			Recommendation: p.Recommendation,
			Confidence:     model.ConfidenceHeuristic,
			Evidence:       append([]string(nil), inv.Evidence...),
		}
		if inv.ID == "share-price-donation" {
			f.EconomicImpact = "A first depositor can donate tokens to inflate the share price and round later depositors down to zero shares."
		}
		if len(graph.Unresolved(inv.Contract)) > 0 {
			f.Flags = append(f.Flags, model.FlagUnresolvedDependency)
		}
		util.Stamp(&f, inv.ID)
		out = append(out, f)
	}
	return out
}

// ContractShape is a contract with transitive per-function effects, the input
// of invariant checks.
type ContractShape struct {
	contract *model.ContractState
	vars     []model.StateVariable
	funcs    []fnShape
}

type fnShape struct {
	fn         *model.FunctionModel
	reads      map[string]bool
	writes     map[string]bool
	calls      []model.CallSite
	rawBalance bool
}

func (f fnShape) entry() bool {
	return f.fn.HasBody && f.fn.IsExternallyReachable() && f.fn.IsMutating() && f.fn.Name != "constructor"
}

func newShape(c *model.ContractState, graph *depmap.Graph) *ContractShape {
	s := &ContractShape{contract: c}
	seen := map[string]bool{}
	for _, name := range append([]string{c.Name}, c.Bases...) {
		bc, ok := graph.Contract(name)
		if name == c.Name {
			bc, ok = c, true
		}
		if !ok {
			continue
		}
		for _, v := range bc.StateVariables {
			if !seen[v.Name] {
				seen[v.Name] = true
				s.vars = append(s.vars, v)
			}
		}
	}
	for i := range c.Functions {
		fs := fnShape{fn: &c.Functions[i], reads: map[string]bool{}, writes: map[string]bool{}}
		visit(graph, c, &c.Functions[i], map[string]bool{}, 0, &fs)
		s.funcs = append(s.funcs, fs)
	}
	return s
}

func visit(graph *depmap.Graph, owner *model.ContractState, fn *model.FunctionModel, seen map[string]bool, depth int, fs *fnShape) {
	key := owner.Name + "." + fn.Name
	if seen[key] || depth > DefaultMaxDepth {
		return
	}
	seen[key] = true
	if readsRawBalance(fn.Body) {
		fs.rawBalance = true
	}
	for _, e := range fn.Effects {
		switch e.Kind {
		case model.EffectStateRead:
			fs.reads[e.Variable] = true
		case model.EffectStateWrite:
			fs.writes[e.Variable] = true
		case model.EffectExternalCall:
			if cs, ok := fn.CallSiteOf(e); ok {
				fs.calls = append(fs.calls, cs)
			}
		case model.EffectInternalCall:
			cs, ok := fn.CallSiteOf(e)
			if !ok || cs.Receiver == "this" {
				continue
			}
			if o, callee, ok := graph.LookupFunction(owner.Name, cs.Method); ok {
				visit(graph, o, callee, seen, depth+1, fs)
			}
		}
	}
}

// readsRawBalance matches balanceOf(address(this)) and address(this).balance.
func readsRawBalance(body []model.Token) bool {
	for i := 0; i+3 < len(body); i++ {
		if !body[i].Is("address") || !body[i+1].Is("(") || !body[i+2].Is("this") || !body[i+3].Is(")") {
			continue
		}
		if i >= 2 && body[i-1].Is("(") && body[i-2].Is("balanceOf") {
			return true
		}
		if i+5 < len(body) && body[i+4].Is(".") && body[i+5].Is("balance") {
			return true
		}
	}
	return false
}

func (s *ContractShape) celInput() map[string]any {
	vars := make([]any, 0, len(s.vars))
	for _, v := range s.vars {
		vars = append(vars, map[string]any{
			"name":     v.Name,
			"type":     v.Type,
			"mapping":  v.IsMapping(),
			"constant": v.Constant || v.Immutable,
		})
	}
	fns := make([]any, 0, len(s.funcs))
	for _, f := range s.funcs {
		calls := make([]any, 0, len(f.calls))
		for _, cs := range f.calls {
			calls = append(calls, cs.Method)
		}
		fns = append(fns, map[string]any{
			"name":       f.fn.Name,
			"visibility": f.fn.Visibility,
			"mutating":   f.fn.IsMutating(),
			"reachable":  f.fn.IsExternallyReachable(),
			"reads":      keys(f.reads),
			"writes":     keys(f.writes),
			"calls":      calls,
		})
	}
	return map[string]any{"vars": vars, "functions": fns}
}

func keys(m map[string]bool) []any {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func (s *ContractShape) firstVar(match func(model.StateVariable) bool) (string, bool) {
	for _, v := range s.vars {
		if match(v) {
			return v.Name, true
		}
	}
	return "", false
}

func checkBalanceTotal(s *ContractShape) ([]string, []string) {
	balance, ok1 := s.firstVar(func(v model.StateVariable) bool { return v.IsMapping() && reBalanceMapping.MatchString(v.Name) })
	total, ok2 := s.firstVar(func(v model.StateVariable) bool {
		return !v.IsMapping() && !v.Constant && !v.Immutable && reAggregate.MatchString(v.Name)
	})
	if !ok1 || !ok2 {
		return nil, nil
	}
	var evidence, fns []string
	for _, f := range s.funcs {
		if !f.entry() || reBalanceMoving.MatchString(f.fn.Name) {
			continue
		}
		wb, wt := f.writes[balance], f.writes[total]
		switch {
		case wb && !wt:
			evidence = append(evidence, fmt.Sprintf("%s writes %s without updating %s", f.fn.Name, balance, total))
		case wt && !wb:
			evidence = append(evidence, fmt.Sprintf("%s writes %s without updating %s", f.fn.Name, total, balance))
		default:
			continue
		}
		fns = append(fns, f.fn.Name)
	}
	return evidence, fns
}

func checkSharePriceDonation(s *ContractShape) ([]string, []string) {
	for _, f := range s.funcs {
		for v := range f.writes {
			if reAssetAccounting.MatchString(v) {
				return nil, nil
			}
		}
	}
	var evidence, fns []string
	for _, f := range s.funcs {
		if reRatioFunction.MatchString(f.fn.Name) && f.rawBalance {
			evidence = append(evidence, fmt.Sprintf("%s prices shares from the contract's raw token balance", f.fn.Name))
			fns = append(fns, f.fn.Name)
		}
	}
	return evidence, fns
}

func checkReserveSync(s *ContractShape) ([]string, []string) {
	var reserves []string
	for _, v := range s.vars {
		if !v.Constant && reReserve.MatchString(v.Name) {
			reserves = append(reserves, v.Name)
		}
	}
	var evidence, fns []string
	for _, f := range s.funcs {
		if !f.entry() || reReserveExempt.MatchString(f.fn.Name) {
			continue
		}
		moves := ""
		for _, cs := range f.calls {
			if tokenMoves[cs.Method] {
				moves = cs.Expression
				break
			}
		}
		if moves == "" {
			continue
		}
		synced := false
		for _, r := range reserves {
			if f.writes[r] {
				synced = true
				break
			}
		}
		if !synced {
			evidence = append(evidence, fmt.Sprintf("%s calls %s without updating %s", f.fn.Name, moves, strings.Join(reserves, ", ")))
			fns = append(fns, f.fn.Name)
		}
	}
	return evidence, fns
}
