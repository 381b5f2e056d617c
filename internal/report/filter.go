package report

import (
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// DefaultGarbageKeywords are phrases of gas-optimization and pure style commentary.
var DefaultGarbageKeywords = []string{
	"gas optimization",
	"gas optimisation",
	"gas saving",
	"save gas",
	"saves gas",
	"gas cost",
	"naming convention",
	"code style",
	"style guide",
	"consider renaming",
	"unused variable",
	"unused import",
	"redundant",
	"cosmetic",
	"typo",
}

// FilterGarbageFindings drops findings whose title or description matches a
// keyword (case-insensitive), unless they carry an economic impact or PoC.
// With no keywords the default list applies. The input is not modified.
func FilterGarbageFindings(findings []model.Finding, keywords ...string) []model.Finding {
	if len(keywords) == 0 {
		keywords = DefaultGarbageKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	out := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.HasExploitEvidence() || !garbage(f, lowered) {
			out = append(out, f)
		}
	}
	return out
}

func garbage(f model.Finding, keywords []string) bool {
	text := strings.ToLower(f.Title + "\n" + f.Description)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
