package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

type solidityTransferSend struct{}

func (d *solidityTransferSend) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-TRANSFER-SEND", Title: "Ether sent with transfer/send fixed stipend", Severity: model.SeverityLow, Class: "ether-transfer"}
}

func (d *solidityTransferSend) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		for _, cs := range fn.CallSites {
			if cs.Kind != model.CallLowLevel || !(cs.Method == "transfer" && cs.Args == 1 || cs.Method == "send") {
				continue
			}
			f := newFinding(d.Meta(), c, fn, cs.Line)
			f.Description = fmt.Sprintf("%s.%s pays ether with %s, which forwards only 2300 units of stipend.", c.Name, fn.Name, cs.Expression)
			f.Impact = "Payments to smart-contract wallets revert once their receive logic costs more than the stipend."
			f.Recommendation = "Use call{value: amount}(\"\") and handle the success boolean, or implement pull payment pattern."
			f.Evidence = []string{fmt.Sprintf("%s at line %d", cs.Expression, cs.Line)}
			f.References = []string{"https://eips.ethereum.org/EIPS/eip-1884"}
			util.Stamp(&f, cs.Expression)
			findings = append(findings, f)
		}
	}
	return findings, nil
}
