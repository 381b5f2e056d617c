package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

type solidityUncheckedCalls struct{}

func (d *solidityUncheckedCalls) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-UNCHECKED-LOWLEVEL", Title: "Unchecked low-level calls", Severity: model.SeverityHigh, Class: "unchecked-call"}
}

func (d *solidityUncheckedCalls) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		_, rests := statements(fn)
		for _, st := range rests {
			i, ok := memberCall(st, "call", "delegatecall", "staticcall", "send")
			if !ok || !resultDiscarded(st) {
				continue
			}
			f := newFinding(d.Meta(), c, fn, st[i].Line)
			f.Description = fmt.Sprintf("%s.%s ignores the success flag of a low-level %s.", c.Name, fn.Name, st[i].Text)
			f.Impact = "A failed call is treated as success and the function continues with inconsistent state."
			f.Recommendation = "Capture the boolean return and handle failures (require/if/rollback)."
			f.Evidence = []string{fmt.Sprintf("unchecked .%s at line %d", st[i].Text, st[i].Line)}
			f.References = []string{"https://swcregistry.io/docs/SWC-104"}
			util.Stamp(&f, fmt.Sprintf("%s:%d", st[i].Text, st[i].Line))
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// memberCall finds `.method(` or `.method{` in st and returns the index of the method token.
func memberCall(st []model.Token, methods ...string) (int, bool) {
	for i := 1; i+1 < len(st); i++ {
		if !st[i-1].Is(".") || !(st[i+1].Is("(") || st[i+1].Is("{")) {
			continue
		}
		for _, m := range methods {
			if st[i].Is(m) {
				return i, true
			}
		}
	}
	return -1, false
}
