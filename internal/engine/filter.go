package engine

import (
	"github.com/avaloki108/mush-audit-sub001/internal/config"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// filterBySeverity removes findings below the configured severity threshold
func filterBySeverity(findings []model.Finding, cfg config.Config) []model.Finding {
	if cfg.SeverityThreshold == "" {
		return findings
	}
	threshold := model.ParseSeverity(cfg.SeverityThreshold)
	var out []model.Finding
	for _, f := range findings {
		if model.SeverityGTE(f.Severity, threshold) {
			out = append(out, f)
		}
	}
	return out
}

// filterByRules keeps only findings whose rule, or rule family, is in cfg.Rules
// when the list is non-empty.
func filterByRules(findings []model.Finding, cfg config.Config) []model.Finding {
	if len(cfg.Rules) == 0 {
		return findings
	}
	var out []model.Finding
	for _, f := range findings {
		for _, id := range cfg.Rules {
			if matchesRule(f.RuleID, id) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
