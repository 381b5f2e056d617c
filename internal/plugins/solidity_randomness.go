package plugins

import (
	"context"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/util"
)

// solidityRandomness flags miner-influenced randomness sources
type solidityRandomness struct{}

func (d *solidityRandomness) Meta() model.RuleMeta {
	return model.RuleMeta{ID: "SOL-RANDOMNESS", Title: "Weak randomness from chain attributes", Severity: model.SeverityMedium, Class: "randomness"}
}

var chainEntropy = [][]string{
	{"block", ".", "timestamp"},
	{"block", ".", "prevrandao"},
	{"block", ".", "difficulty"},
	{"block", ".", "number"},
	{"blockhash", "("},
	{"now"},
}

// Analyze reports chain attributes that feed a modulo or a hash, the usual
// shape of an on-chain dice roll.
func (d *solidityRandomness) Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error) {
	var findings []model.Finding
	for _, fn := range bodies(c) {
		heads, rests := statements(fn)
		for k := range rests {
			st := append(append([]model.Token(nil), heads[k]...), rests[k]...)
			_, mod := hasSeq(st, "%")
			_, hash := hasSeq(st, "keccak256", "(")
			if !mod && !hash {
				continue
			}
			src, at := "", -1
			for _, seq := range chainEntropy {
				if i, ok := hasSeq(st, seq...); ok {
					src, at = joinSeq(seq), i
					break
				}
			}
			if at < 0 {
				continue
			}
			f := newFinding(d.Meta(), c, fn, st[at].Line)
			f.Description = fmt.Sprintf("%s.%s derives a random value from %s.", c.Name, fn.Name, src)
			f.Impact = "Validators and contracts in the same block can predict or steer the outcome."
			f.Recommendation = "Use Chainlink VRF or commit-reveal schemes instead of chain attributes."
			f.Evidence = []string{fmt.Sprintf("%s used in a hash or modulo at line %d", src, st[at].Line)}
			f.References = []string{"https://swcregistry.io/docs/SWC-120"}
			util.Stamp(&f, src)
			findings = append(findings, f)
			break
		}
	}
	return findings, nil
}

func joinSeq(seq []string) string {
	s := ""
	for _, p := range seq {
		if p != "(" {
			s += p
		}
	}
	return s
}
