package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityTxOrigin flags use of tx.origin in authorization-sensitive checks
type solidityTxOrigin struct{}

func (d *solidityTxOrigin) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-TX-ORIGIN", Title: "tx.origin used for authorization", Severity: model.SeverityHigh, Class: "access-control"}
}

func (d *solidityTxOrigin) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		for _, st := range solidityStatementsWithOrigin(fn) {
			// tx.origin == msg.sender is the usual EOA check, not authorization.
			if _, ok := hasSeq(st, "msg", ".", "sender"); ok {
				continue
			}
			if !authContext(st) {
				continue
			}
			i, _ := hasSeq(st, "tx", ".", "origin")
			f := newFinding(d.Meta(), c, fn, st[i].Line)
			f.Description = fmt.Sprintf("%s.%s authorizes the caller through tx.origin.", c.Name, fn.Name)
			f.Impact = "A contract the owner interacts with can call through and pass the check on the owner's behalf."
			f.Recommendation = "Replace tx.origin with msg.sender and implement proper access control."
			f.Evidence = []string{fmt.Sprintf("tx.origin in a condition at line %d", st[i].Line)}
			f.References = []string{"https://swcregistry.io/docs/SWC-115"}
			util.Stamp(&f, "tx.origin")
			findings = append(findings, f)
			break
		}
	}
	return findings, nil
}

func solidityStatementsWithOrigin(fn *model.FunctionModel) [][]model.Token {
	heads, rests := statements(fn)
	var out [][]model.Token
	for i := range heads {
		st := append(append([]model.Token(nil), heads[i]...), rests[i]...)
		if _, ok := hasSeq(st, "tx", ".", "origin"); ok {
			out = append(out, st)
		}
	}
	return out
}

// authContext is true for require/assert/if conditions and comparisons.
func authContext(st []model.Token) bool {
	if len(st) > 0 && inList(st[0].Text, "require", "assert", "if", "while") {
		return true
	}
	for _, t := range st {
		if t.Is("==") || t.Is("!=") {
			return true
		}
	}
	return false
}
