package crosschain

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

var WormholePattern = Pattern{
	Meta: model.RuleMeta{
		ID:       "XCHAIN-WORMHOLE-GUARDIAN",
		Title:    "Bridge message verified without guardian-set or quorum check",
		Severity: model.SeverityHigh,
		Class:    "bridge-verification",
		Tags:     []string{"cross-chain", "wormhole", "bridge"},
	},
	Triggers: []string{"parseAndVerifyVM", "verifyVM", "parseVM", "verifyMessage", "verifySignatures"},
	Guards: []GuardGroup{
		{Name: "guardian-set", Markers: []string{"guardianset", "quorum"}},
	},
	Impact:         "A message signed by an expired or insufficient guardian set is accepted, letting an attacker forge transfers.",
	Recommendation: "Check vm.guardianSetIndex against the current guardian set and enforce the signature quorum before acting on the message.",
	References:     []string{"https://wormhole.com/docs/protocol/infrastructure/guardians/"},
}

// WormholeDetector flags bridge-message verification with no guardian-set
// or quorum check in the same function body.
type WormholeDetector struct{}

func (WormholeDetector) Meta() model.RuleMeta { return WormholePattern.Meta }

func (WormholeDetector) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	p := WormholePattern
	var out []model.Finding
	for i := range c.Functions {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		fn := &c.Functions[i]
		trig := p.triggers(fn.Body)
		if len(trig) == 0 {
			continue
		}
		if len(p.missing(p.present(p.scope(c, fn)))) == 0 {
			continue
		}
		f := model.Finding{
			RuleID:         p.Meta.ID,
			Class:          p.Meta.Class,
			Title:          p.Meta.Title,
			Severity:       p.Meta.Severity,
			Description:    fmt.Sprintf("%s.%s calls %s but never checks the guardian set index or signature quorum.", c.Name, fn.Name, trig[0].name),
			Impact:         p.Impact,
			Locations:      []model.Location{{Contract: c.Name, Function: fn.Name, Line: trig[0].line, File: c.Unit}},
			Recommendation: p.Recommendation,
			Confidence:     model.ConfidenceHeuristic,
			Evidence:       []string{fmt.Sprintf("%s at line %d", trig[0].name, trig[0].line), "no guardianSet/quorum reference in function body"},
			References:     append([]string(nil), p.References...),
		}
		util.Stamp(&f, trig[0].name)
		out = append(out, f)
	}
	return out, nil
}

// DetectWormholeVulnerabilities runs the detector over free-standing source code.
func DetectWormholeVulnerabilities(code string) []model.Finding {
	var out []model.Finding
	for _, c := range extract(code) {
		fs, _ := WormholeDetector{}.Analyze(context.Background(), &c)
		out = append(out, fs...)
	}
	return out
}
