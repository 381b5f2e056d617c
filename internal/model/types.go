package model

import "strings"

type Severity string

const (
	SeverityInformational Severity = "informational"
	SeverityLow           Severity = "low"
	SeverityMedium        Severity = "medium"
	SeverityHigh          Severity = "high"
	SeverityCritical      Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityInformational: 0,
	SeverityLow:           1,
	SeverityMedium:        2,
	SeverityHigh:          3,
	SeverityCritical:      4,
}

// Severities lists every severity from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInformational}
}

func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(SeverityCritical):
		return SeverityCritical
	case string(SeverityHigh):
		return SeverityHigh
	case string(SeverityMedium):
		return SeverityMedium
	case string(SeverityLow):
		return SeverityLow
	default:
		return SeverityInformational
	}
}

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int { return severityOrder[s] }

func SeverityGTE(a, b Severity) bool {
	return a.Rank() >= b.Rank()
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

type Confidence string

const (
	ConfidenceHeuristic Confidence = "heuristic"
	ConfidenceConfirmed Confidence = "confirmed"
)

// Finding flags surfaced instead of silently lowering confidence.
const (
	FlagUnresolvedDependency = "unresolved-dependency"
	FlagRecursionLimit       = "recursion-limit"
)

type RuleMeta struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
	Class    string   `json:"class"`
	Tags     []string `json:"tags,omitempty"`
}

// Location points at a contract member. Line is zero when unknown.
type Location struct {
	Contract string `json:"contract"`
	Function string `json:"function,omitempty"`
	Line     int    `json:"line,omitempty"`
	File     string `json:"file,omitempty"`
}

type Finding struct {
	ID             string     `json:"id"`
	RuleID         string     `json:"ruleId"`
	Class          string     `json:"class"`
	Title          string     `json:"title"`
	Severity       Severity   `json:"severity"`
	Description    string     `json:"description"`
	Impact         string     `json:"impact"`
	Locations      []Location `json:"locations"`
	Recommendation string     `json:"recommendation"`
	Confidence     Confidence `json:"confidence"`
	EconomicImpact string     `json:"economicImpact,omitempty"`
	PoCCode        string     `json:"pocCode,omitempty"`
	Evidence       []string   `json:"evidence,omitempty"`
	Flags          []string   `json:"flags,omitempty"`
	References     []string   `json:"references,omitempty"`
	Snippet        string     `json:"snippet,omitempty"`
	Fingerprint    string     `json:"fingerprint"`
}

// Primary returns the first location, or a zero Location.
func (f Finding) Primary() Location {
	if len(f.Locations) == 0 {
		return Location{}
	}
	return f.Locations[0]
}

// HasExploitEvidence reports whether the finding carries an economic impact or PoC.
func (f Finding) HasExploitEvidence() bool {
	return strings.TrimSpace(f.EconomicImpact) != "" || strings.TrimSpace(f.PoCCode) != ""
}

// HasFlag reports whether flag is set on the finding.
func (f Finding) HasFlag(flag string) bool {
	for _, fl := range f.Flags {
		if fl == flag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can modify slices freely.
func (f Finding) Clone() Finding {
	out := f
	out.Locations = append([]Location(nil), f.Locations...)
	out.Evidence = append([]string(nil), f.Evidence...)
	out.Flags = append([]string(nil), f.Flags...)
	out.References = append([]string(nil), f.References...)
	return out
}
