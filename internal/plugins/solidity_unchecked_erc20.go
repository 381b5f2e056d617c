package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityUncheckedERC20 flags ERC20 transfer/approve/transferFrom without checking return value
type solidityUncheckedERC20 struct{}

func (d *solidityUncheckedERC20) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-UNCHECKED-ERC20", Title: "Unchecked ERC20 return value", Severity: model.SeverityMedium, Class: "unchecked-call"}
}

func (d *solidityUncheckedERC20) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		_, rests := statements(fn)
		for _, st := range rests {
			i, ok := memberCall(st, "transfer", "transferFrom", "approve")
			if !ok || !resultDiscarded(st) || !externalAt(fn, st[i].Text, st[i].Line) {
				continue
			}
			f := newFinding(d.Meta(), c, fn, st[i].Line)
			f.Description = fmt.Sprintf("%s.%s calls ERC20 %s without checking the returned bool.", c.Name, fn.Name, st[i].Text)
			f.Impact = "Tokens that return false instead of reverting leave the contract believing a transfer happened."
			f.Recommendation = "Use SafeERC20 (safeTransfer/safeTransferFrom/forceApprove) or require the return value."
			f.Evidence = []string{fmt.Sprintf("unchecked %s at line %d", st[i].Text, st[i].Line)}
			util.Stamp(&f, fmt.Sprintf("%s:%d", st[i].Text, st[i].Line))
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// externalAt reports whether fn has an external (non low-level) call to method on line.
func externalAt(fn *model.FunctionModel, method string, line int) bool {
	for _, cs := range fn.CallSites {
		if cs.Method == method && cs.Line == line && cs.Kind == model.CallExternal {
			return true
		}
	}
	return false
}
