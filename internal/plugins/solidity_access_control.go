package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// privilegedNames are substrings of state variables whose writes need a caller check.
var privilegedNames = []string{"owner", "admin", "governance", "implementation", "operator", "minter", "guardian", "paused", "fee", "oracle", "treasury", "signer"}

func privileged(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range privilegedNames {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// privilegedWrites returns the privileged state variables fn writes.
func privilegedWrites(fn *model.FunctionModel) []string {
	var out []string
	for _, v := range fn.Writes() {
		if privileged(v) {
			out = append(out, v)
		}
	}
	return out
}

// solidityAccessControl flags public entry points that rewrite privileged state
// with no modifier and no msg.sender comparison.
type solidityAccessControl struct{}

func (d *solidityAccessControl) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-ACCESS-CONTROL", Title: "Potential missing access control on state-changing function", Severity: model.SeverityHigh, Class: "access-control"}
}

func (d *solidityAccessControl) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		if !fn.IsExternallyReachable() || fn.Name == "constructor" || restricted(fn) {
			continue
		}
		vars := privilegedWrites(fn)
		if len(vars) == 0 {
			continue
		}
		f := newFinding(d.Meta(), c, fn, fn.Line)
		f.Description = fmt.Sprintf("%s.%s is %s and writes %s without restricting the caller.", c.Name, fn.Name, fn.Visibility, strings.Join(vars, ", "))
		f.Impact = "Anyone can take over privileged roles or reconfigure the contract."
		f.Recommendation = "Add appropriate access control (e.g., onlyOwner/onlyRole) or explicit require() checks."
		for _, v := range vars {
			f.Evidence = append(f.Evidence, "unrestricted write to "+v)
		}
		f.References = []string{"https://swcregistry.io/docs/SWC-105"}
		util.Stamp(&f, strings.Join(vars, ","))
		findings = append(findings, f)
	}
	return findings, nil
}
