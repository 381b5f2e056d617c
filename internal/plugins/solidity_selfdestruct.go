package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// soliditySelfdestruct flags selfdestruct usage in public/external paths or with tainted target
type soliditySelfdestruct struct{}

func (d *soliditySelfdestruct) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-SELFDESTRUCT", Title: "selfdestruct reachable via public/external path or arbitrary address", Severity: model.SeverityHigh, Class: "selfdestruct"}
}

func (d *soliditySelfdestruct) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		params := paramNames(fn)
		for i, t := range fn.Body {
			if !(t.Is("selfdestruct") || t.Is("suicide")) || i+1 >= len(fn.Body) || !fn.Body[i+1].Is("(") {
				continue
			}
			end := closeParen(fn.Body, i+1)
			if end < 0 {
				continue
			}
			arg := fn.Body[i+2 : end]
			sev := model.SeverityHigh
			msg := "selfdestruct present; ensure it is restricted and the beneficiary is safe."
			if fn.IsExternallyReachable() && !restricted(fn) {
				sev = model.SeverityCritical
				msg = "selfdestruct is reachable from a public/external function without a caller check."
			}
			if tainted(arg, params) {
				sev = model.SeverityCritical
				msg = "selfdestruct beneficiary is derived from caller input."
			}
			f := newFinding(d.Meta(), c, fn, t.Line)
			f.Severity = sev
			f.Description = fmt.Sprintf("%s.%s: %s", c.Name, fn.Name, msg)
			f.Impact = "The contract can be permanently disabled and its ether sent to an arbitrary address."
			f.Recommendation = "Avoid selfdestruct; if needed, restrict via onlyOwner/timelock and use fixed, vetted payout addresses."
			f.Evidence = []string{fmt.Sprintf("selfdestruct at line %d", t.Line)}
			f.References = []string{"https://swcregistry.io/docs/SWC-106"}
			util.Stamp(&f, "selfdestruct")
			findings = append(findings, f)
			break
		}
	}
	return findings, nil
}

// restricted is true when the function carries modifiers or compares msg.sender.
func restricted(fn *model.FunctionModel) bool {
	if len(fn.Modifiers) > 0 {
		return true
	}
	heads, rests := statements(fn)
	for i := range heads {
		st := append(append([]model.Token(nil), heads[i]...), rests[i]...)
		if _, ok := hasSeq(st, "msg", ".", "sender"); ok && authContext(st) {
			return true
		}
	}
	return false
}

// tainted reports whether toks mention a parameter or msg.sender/msg.data.
func tainted(toks []model.Token, params map[string]bool) bool {
	for i, t := range toks {
		if t.Kind == model.TokenIdent && params[t.Text] && (i == 0 || !toks[i-1].Is(".")) {
			return true
		}
	}
	if _, ok := hasSeq(toks, "msg", ".", "sender"); ok {
		return true
	}
	_, ok := hasSeq(toks, "msg", ".", "data")
	return ok
}
