package report

import (
	"sort"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// Rank sorts in place: severity descending, findings with a PoC or economic
// impact first, Confirmed before Heuristic, then by location and ID so the
// order is total.
func Rank(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if ea, eb := a.HasExploitEvidence(), b.HasExploitEvidence(); ea != eb {
			return ea
		}
		if ca, cb := a.Confidence == model.ConfidenceConfirmed, b.Confidence == model.ConfidenceConfirmed; ca != cb {
			return ca
		}
		la, lb := a.Primary(), b.Primary()
		if la.File != lb.File {
			return la.File < lb.File
		}
		if la.Contract != lb.Contract {
			return la.Contract < lb.Contract
		}
		if la.Line != lb.Line {
			return la.Line < lb.Line
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.ID < b.ID
	})
}
