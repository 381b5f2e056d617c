package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityStorageGap flags upgradeable base contracts that declare storage but
// reserve no __gap. Only contracts other batch members inherit from matter.
type solidityStorageGap struct{}

func (d *solidityStorageGap) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-STORAGE-GAP", Title: "Upgradeable contract missing storage gap", Severity: model.SeverityMedium, Class: "upgradeability"}
}

func (d *solidityStorageGap) AnalyzeBatch(ctx context.Context, pctx *analysis.ProjectContext) ([]model.Finding, error) {
	inherited := map[string]bool{}
	for _, c := range pctx.Contracts {
		for _, b := range c.Bases {
			inherited[b] = true
		}
	}
	var findings []model.Finding
	for i := range pctx.Contracts {
		c := &pctx.Contracts[i]
		if c.Kind == model.KindInterface || c.Kind == model.KindLibrary || !inherited[c.Name] || !upgradeable(c) {
			continue
		}
		slots := 0
		gap := false
		for _, v := range c.StateVariables {
			if v.Constant || v.Immutable {
				continue
			}
			if strings.HasPrefix(v.Name, "__gap") {
				gap = true
			}
			slots++
		}
		if gap || slots == 0 {
			continue
		}
		f := newFinding(d.Meta(), c, nil, c.Line)
		f.Description = fmt.Sprintf("%s is an upgradeable base with %d storage variables and no __gap.", c.Name, slots)
		f.Impact = "Adding a variable to the base in a later version shifts every child slot and corrupts live storage."
		f.Recommendation = "Add uint256[50] private __gap; in upgradeable base as per OpenZeppelin guidelines."
		util.Stamp(&f, c.Name)
		findings = append(findings, f)
	}
	return findings, nil
}

func upgradeable(c *model.ContractState) bool {
	if strings.Contains(c.Name, "Upgradeable") {
		return true
	}
	for _, b := range c.Bases {
		if strings.Contains(b, "Upgradeable") || b == "Initializable" {
			return true
		}
	}
	_, ok := c.Function("initialize")
	return ok
}
