package report

import "github.com/avaloki108/mush-audit-sub001/internal/model"

// dedupeKey is (contract, function, class). Findings without a class fall
// back to their rule.
func dedupeKey(f model.Finding) [3]string {
	loc := f.Primary()
	class := f.Class
	if class == "" {
		class = f.RuleID
	}
	return [3]string{loc.Contract, loc.Function, class}
}

// Dedupe collapses findings sharing (contract, function, class) into one. The
// most severe member leads (Confirmed, then earliest, on ties); evidence,
// locations, flags and references are merged; confidence is Confirmed when any
// member is. Group order follows first appearance.
func Dedupe(findings []model.Finding) []model.Finding {
	var order [][3]string
	groups := map[[3]string][]model.Finding{}
	for _, f := range findings {
		k := dedupeKey(f)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}
	out := make([]model.Finding, 0, len(order))
	for _, k := range order {
		out = append(out, merge(groups[k]))
	}
	return out
}

func merge(fs []model.Finding) model.Finding {
	lead := 0
	for i, f := range fs[1:] {
		l := fs[lead]
		if f.Severity.Rank() > l.Severity.Rank() ||
			f.Severity == l.Severity && f.Confidence == model.ConfidenceConfirmed && l.Confidence != model.ConfidenceConfirmed {
			lead = i + 1
		}
	}
	out := fs[lead].Clone()
	if len(fs) == 1 {
		return out
	}
	for i, f := range fs {
		if i == lead {
			continue
		}
		out.Severity = model.MaxSeverity(out.Severity, f.Severity)
		if f.Confidence == model.ConfidenceConfirmed {
			out.Confidence = model.ConfidenceConfirmed
		}
		if out.EconomicImpact == "" {
			out.EconomicImpact = f.EconomicImpact
		}
		if out.PoCCode == "" {
			out.PoCCode = f.PoCCode
		}
		out.Locations = appendLocations(out.Locations, f.Locations)
		out.Evidence = appendUnique(out.Evidence, f.Evidence...)
		out.Flags = appendUnique(out.Flags, f.Flags...)
		out.References = appendUnique(out.References, f.References...)
		if f.RuleID != out.RuleID {
			out.Evidence = appendUnique(out.Evidence, "also reported by "+f.RuleID)
		}
	}
	return out
}

func appendUnique(dst []string, src ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}

func appendLocations(dst, src []model.Location) []model.Location {
	seen := make(map[model.Location]bool, len(dst))
	for _, l := range dst {
		seen[l] = true
	}
	for _, l := range src {
		if !seen[l] {
			seen[l] = true
			dst = append(dst, l)
		}
	}
	return dst
}
