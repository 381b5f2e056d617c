package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityDelegatecallUnsafe flags delegatecall where target can be user-controlled
type solidityDelegatecallUnsafe struct{}

func (d *solidityDelegatecallUnsafe) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-UNSAFE-DELEGATECALL", Title: "delegatecall to potentially untrusted target", Severity: model.SeverityCritical, Class: "delegatecall"}
}

func (d *solidityDelegatecallUnsafe) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		params := paramNames(fn)
		for _, cs := range fn.CallSites {
			if cs.Method != "delegatecall" && cs.Method != "functionDelegateCall" {
				continue
			}
			target, err := solidity.Tokenize(cs.Receiver)
			if err != nil || !tainted(target, params) {
				continue
			}
			f := newFinding(d.Meta(), c, fn, cs.Line)
			f.Description = fmt.Sprintf("%s.%s delegatecalls %s, which the caller controls.", c.Name, fn.Name, cs.Receiver)
			f.Impact = "delegatecall executes in the caller's storage context; an attacker-chosen target can overwrite any slot and take ownership."
			f.Recommendation = "Restrict and validate delegatecall targets. Use UUPS/transparent proxy patterns with access control."
			f.Evidence = []string{fmt.Sprintf("%s at line %d", cs.Expression, cs.Line)}
			f.References = []string{"https://swcregistry.io/docs/SWC-112"}
			util.Stamp(&f, cs.Expression)
			findings = append(findings, f)
		}
	}
	return findings, nil
}
