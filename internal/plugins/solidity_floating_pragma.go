package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityFloatingPragma detects caret or open ranges without pinning minor version (SWC-103)
type solidityFloatingPragma struct{}

func (d *solidityFloatingPragma) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-FLOATING-PRAGMA", Title: "Floating pragma solidity version", Severity: model.SeverityInformational, Class: "pragma"}
}

var exactPragma = regexp.MustCompile(`^=?\s*\d+\s*\.\s*\d+\s*\.\s*\d+$`)

// AnalyzeBatch reports once per source unit, on its first contract.
func (d *solidityFloatingPragma) AnalyzeBatch(ctx context.Context, pctx *analysis.ProjectContext) ([]model.Finding, error) {
	var findings []model.Finding
	seen := map[string]bool{}
	for i := range pctx.Contracts {
		c := &pctx.Contracts[i]
		if seen[c.Unit] || c.Pragma == "" {
			continue
		}
		seen[c.Unit] = true
		ver := strings.TrimSpace(strings.TrimPrefix(c.Pragma, "solidity"))
		if exactPragma.MatchString(ver) || !strings.ContainsAny(ver, "^<>~*x") {
			continue
		}
		f := newFinding(d.Meta(), c, nil, c.Line)
		f.Description = fmt.Sprintf("%s compiles with any compiler in the range %q.", c.Unit, ver)
		f.Impact = "Different builds may use compilers with different bugs or semantics."
		f.Recommendation = "Pin to an exact compiler version, e.g., pragma solidity 0.8.20; and enforce in CI."
		f.Evidence = []string{"pragma " + c.Pragma}
		f.References = []string{"https://swcregistry.io/docs/SWC-103"}
		util.Stamp(&f, c.Unit+":"+ver)
		findings = append(findings, f)
	}
	return findings, nil
}
