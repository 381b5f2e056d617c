package crosschain

import (
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

// GuardGroup is one protection a pattern expects near its trigger. Any
// identifier containing one of the markers (case-insensitive) counts.
type GuardGroup struct {
	Name    string
	Markers []string
}

// Pattern describes a trigger call and the guards that must accompany it.
type Pattern struct {
	Meta           model.RuleMeta
	Triggers       []string
	Guards         []GuardGroup
	FollowHelpers  bool
	Impact         string
	Recommendation string
	References     []string
}

type trigger struct {
	name string
	line int
}

// triggers returns calls in body whose callee name is one of names.
func (p Pattern) triggers(body []model.Token) []trigger {
	var out []trigger
	for i := 0; i+1 < len(body); i++ {
		t := body[i]
		if t.Kind != model.TokenIdent || !body[i+1].Is("(") {
			continue
		}
		for _, name := range p.Triggers {
			if t.Text == name {
				out = append(out, trigger{name: name, line: t.Line})
				break
			}
		}
	}
	return out
}

// present reports which guard groups appear in the scanned tokens.
func (p Pattern) present(tokens []model.Token) map[string]bool {
	found := map[string]bool{}
	for _, t := range tokens {
		if t.Kind != model.TokenIdent {
			continue
		}
		lower := strings.ToLower(t.Text)
		for _, g := range p.Guards {
			if found[g.Name] {
				continue
			}
			for _, m := range g.Markers {
				if strings.Contains(lower, m) {
					found[g.Name] = true
					break
				}
			}
		}
	}
	return found
}

// scope returns the tokens a guard may appear in: the function body and,
// when FollowHelpers is set, the bodies of same-contract functions and
// modifiers it reaches.
func (p Pattern) scope(c *model.ContractState, fn *model.FunctionModel) []model.Token {
	toks := append([]model.Token(nil), fn.Body...)
	if !p.FollowHelpers {
		return toks
	}
	seen := map[string]bool{fn.Name: true}
	queue := []*model.FunctionModel{fn}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		var next []string
		for _, cs := range cur.CallSites {
			if cs.Kind == model.CallInternal && cs.Receiver == "" {
				next = append(next, cs.Method)
			}
		}
		next = append(next, cur.Modifiers...)
		for _, name := range next {
			if seen[name] {
				continue
			}
			seen[name] = true
			if h, ok := c.Function(name); ok {
				toks = append(toks, h.Body...)
				queue = append(queue, h)
			} else if m, ok := c.Modifier(name); ok {
				toks = append(toks, m.Body...)
			}
		}
	}
	return toks
}

func (p Pattern) missing(found map[string]bool) []string {
	var out []string
	for _, g := range p.Guards {
		if !found[g.Name] {
			out = append(out, g.Name)
		}
	}
	return out
}

// extract models free-standing code for the text entry points.
func extract(code string) []model.ContractState {
	all, err := solidity.ExtractAll(model.SourceUnit{Name: "<code>", Text: code})
	if err != nil {
		return nil
	}
	return all
}
