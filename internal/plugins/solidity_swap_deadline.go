package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// soliditySwapDeadline flags router swaps whose deadline is the current block.
type soliditySwapDeadline struct{}

func (d *soliditySwapDeadline) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-SWAP-DEADLINE", Title: "Swap call without deadline protection", Severity: model.SeverityMedium, Class: "mev"}
}

func (d *soliditySwapDeadline) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		heads, rests := statements(fn)
		for k := range rests {
			st := append(append([]model.Token(nil), heads[k]...), rests[k]...)
			i, ok := swapCall(st)
			if !ok {
				continue
			}
			end := closeParen(st, i+1)
			if end < 0 {
				continue
			}
			args := st[i+2 : end]
			deadline := ""
			if _, ok := hasSeq(args, "block", ".", "timestamp"); ok {
				deadline = "block.timestamp"
			} else if _, ok := hasSeq(args, ".", "max"); ok {
				deadline = "type(uint256).max"
			}
			if deadline == "" {
				continue
			}
			f := newFinding(d.Meta(), c, fn, st[i].Line)
			f.Description = fmt.Sprintf("%s.%s calls %s with deadline %s, which never expires.", c.Name, fn.Name, st[i].Text, deadline)
			f.Impact = "A pending swap can be held and executed later at a worse price, for example inside a sandwich."
			f.Recommendation = "Pass a deadline timestamp reasonably in the future and check slippage as well."
			f.Evidence = []string{fmt.Sprintf("%s(... %s) at line %d", st[i].Text, deadline, st[i].Line)}
			util.Stamp(&f, fmt.Sprintf("%s:%d", st[i].Text, st[i].Line))
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func swapCall(st []model.Token) (int, bool) {
	for i := 1; i+1 < len(st); i++ {
		if st[i-1].Is(".") && st[i+1].Is("(") && strings.HasPrefix(st[i].Text, "swap") && strings.Contains(st[i].Text, "For") {
			return i, true
		}
	}
	return -1, false
}
