package crosschain

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

var SignatureReplayPattern = Pattern{
	Meta: model.RuleMeta{
		ID:       "XCHAIN-SIGNATURE-REPLAY",
		Title:    "Signature can be replayed",
		Severity: model.SeverityHigh,
		Class:    "signature-replay",
		Tags:     []string{"cross-chain", "signature", "replay"},
	},
	Triggers: []string{"ecrecover", "recover", "tryRecover", "isValidSignatureNow"},
	Guards: []GuardGroup{
		{Name: "nonce", Markers: []string{"nonce"}},
		{Name: "chain id", Markers: []string{"chainid", "domainseparator", "hashtypeddata"}},
		{Name: "deadline", Markers: []string{"deadline", "expir", "validuntil", "validbefore"}},
	},
	FollowHelpers:  true,
	Impact:         "The same signature can be submitted again, on this chain or another deployment, to repeat the authorized action.",
	Recommendation: "Bind the signed digest to a per-signer nonce, block.chainid (or an EIP-712 domain separator) and a deadline, and consume the nonce on use.",
	References:     []string{"https://swcregistry.io/docs/SWC-121", "https://eips.ethereum.org/EIPS/eip-712"},
}

// SignatureReplayDetector flags signature recovery whose digest omits a
// nonce, a chain id or a deadline.
type SignatureReplayDetector struct{}

func (SignatureReplayDetector) Meta() model.RuleMeta { return SignatureReplayPattern.Meta }

func (SignatureReplayDetector) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	p := SignatureReplayPattern
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
		missing := p.missing(p.present(p.scope(c, fn)))
		if len(missing) == 0 {
			continue
		}
		f := model.Finding{
			RuleID:         p.Meta.ID,
			Class:          p.Meta.Class,
			Title:          fmt.Sprintf("%s: digest lacks %s", p.Meta.Title, strings.Join(missing, ", ")),
			Severity:       model.SeverityHigh,
			Description:    fmt.Sprintf("%s.%s recovers a signer with %s but the signed digest does not include %s.", c.Name, fn.Name, trig[0].name, strings.Join(missing, ", ")),
			Impact:         p.Impact,
			Locations:      []model.Location{{Contract: c.Name, Function: fn.Name, Line: trig[0].line, File: c.Unit}},
			Recommendation: p.Recommendation,
			Confidence:     model.ConfidenceConfirmed,
			References:     append([]string(nil), p.References...),
		}
		for _, m := range missing {
			f.Evidence = append(f.Evidence, "missing "+m)
		}
		if len(missing) < len(p.Guards) {
			f.Severity = model.SeverityMedium
			f.Confidence = model.ConfidenceHeuristic
		}
		util.Stamp(&f, trig[0].name)
		out = append(out, f)
	}
	return out, nil
}

// DetectSignatureReplay runs the detector over free-standing source code.
func DetectSignatureReplay(code string) []model.Finding {
	var out []model.Finding
	for _, c := range extract(code) {
		fs, _ := SignatureReplayDetector{}.Analyze(context.Background(), &c)
		out = append(out, fs...)
	}
	return out
}
