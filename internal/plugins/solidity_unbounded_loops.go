package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityUnboundedLoops flags loops in entry points bounded by the length of a
// storage array anyone can grow.
type solidityUnboundedLoops struct{}

func (d *solidityUnboundedLoops) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-UNBOUNDED-LOOP", Title: "Unbounded loop over dynamic array in external function", Severity: model.SeverityMedium, Class: "dos"}
}

func (d *solidityUnboundedLoops) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		if !fn.IsExternallyReachable() {
			continue
		}
		heads, _ := statements(fn)
		for _, h := range heads {
			if len(h) == 0 || !(h[0].Is("for") || h[0].Is("while")) {
				continue
			}
			arr, line, ok := storageLength(c, h)
			if !ok {
				continue
			}
			f := newFinding(d.Meta(), c, fn, line)
			f.Description = fmt.Sprintf("%s.%s loops over %s.length, a storage array with no upper bound.", c.Name, fn.Name, arr)
			f.Impact = "Once the array is large enough the function runs out of block space and is permanently unusable."
			f.Recommendation = "Bound array length or split work across transactions."
			f.Evidence = []string{fmt.Sprintf("loop over %s.length at line %d", arr, line)}
			f.References = []string{"https://swcregistry.io/docs/SWC-128"}
			util.Stamp(&f, arr)
			findings = append(findings, f)
			break
		}
	}
	return findings, nil
}

func storageLength(c *model.ContractState, header []model.Token) (string, int, bool) {
	for i := 0; i+2 < len(header); i++ {
		if !header[i+1].Is(".") || !header[i+2].Is("length") {
			continue
		}
		if i > 0 && header[i-1].Is(".") {
			continue
		}
		v, ok := c.Variable(header[i].Text)
		if ok && !v.Constant && len(v.Type) > 2 && v.Type[len(v.Type)-2:] == "[]" {
			return v.Name, header[i].Line, true
		}
	}
	return "", 0, false
}
