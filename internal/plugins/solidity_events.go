package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityMissingEvents flags privileged state changes without any emit.
type solidityMissingEvents struct{}

func (d *solidityMissingEvents) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-MISSING-EVENT", Title: "State change without event emission", Severity: model.SeverityLow, Class: "events"}
}

func (d *solidityMissingEvents) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		if !fn.IsExternallyReachable() || fn.Name == "constructor" {
			continue
		}
		vars := privilegedWrites(fn)
		if len(vars) == 0 {
			continue
		}
		if _, ok := hasSeq(fn.Body, "emit"); ok {
			continue
		}
		f := newFinding(d.Meta(), c, fn, fn.Line)
		f.Description = fmt.Sprintf("%s.%s updates %s without emitting an event.", c.Name, fn.Name, strings.Join(vars, ", "))
		f.Impact = "Monitoring cannot observe changes to privileged configuration."
		f.Recommendation = "Emit an event when updating critical state variables; include relevant parameters."
		util.Stamp(&f, strings.Join(vars, ","))
		findings = append(findings, f)
	}
	return findings, nil
}
