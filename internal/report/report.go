package report

import (
	"encoding/json"
	"fmt"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// Options tune the reduction. The zero value uses the defaults.
type Options struct {
	GarbageKeywords []string
	Scoring         Scoring
}

type Summary struct {
	TotalFindings int                    `json:"totalFindings"`
	BySeverity    map[model.Severity]int `json:"bySeverity"`
}

// Report is the immutable result of one run. Accessors return copies.
type Report struct {
	findings    []model.Finding
	riskScore   float64
	summary     Summary
	diagnostics []model.Diagnostic
}

// Generate filters noise, deduplicates, ranks and scores findings. It performs
// no I/O and never modifies its arguments.
func Generate(findings []model.Finding, diagnostics []model.Diagnostic, opts Options) *Report {
	in := make([]model.Finding, len(findings))
	for i, f := range findings {
		in[i] = f.Clone()
	}
	out := Dedupe(FilterGarbageFindings(in, opts.GarbageKeywords...))
	Rank(out)
	return &Report{
		findings:    out,
		riskScore:   opts.Scoring.RiskScore(out),
		summary:     summarize(out),
		diagnostics: append([]model.Diagnostic{}, diagnostics...),
	}
}

// Empty returns a well-formed report with no findings.
func Empty(diagnostics ...model.Diagnostic) *Report {
	return Generate(nil, diagnostics, Options{})
}

func summarize(fs []model.Finding) Summary {
	s := Summary{TotalFindings: len(fs), BySeverity: map[model.Severity]int{}}
	for _, sev := range model.Severities() {
		s.BySeverity[sev] = 0
	}
	for _, f := range fs {
		s.BySeverity[f.Severity]++
	}
	return s
}

func (r *Report) Findings() []model.Finding {
	out := make([]model.Finding, len(r.findings))
	for i, f := range r.findings {
		out[i] = f.Clone()
	}
	return out
}

func (r *Report) RiskScore() float64 { return r.riskScore }

func (r *Report) Summary() Summary {
	s := Summary{TotalFindings: r.summary.TotalFindings, BySeverity: map[model.Severity]int{}}
	for k, v := range r.summary.BySeverity {
		s.BySeverity[k] = v
	}
	return s
}

func (r *Report) Diagnostics() []model.Diagnostic {
	return append([]model.Diagnostic{}, r.diagnostics...)
}

// AtLeast reports whether any finding is at or above sev.
func (r *Report) AtLeast(sev model.Severity) bool {
	for _, f := range r.findings {
		if model.SeverityGTE(f.Severity, sev) {
			return true
		}
	}
	return false
}

type wireFinding struct {
	model.Finding
	Location model.Location `json:"location"`
}

type wireReport struct {
	Findings    []wireFinding      `json:"findings"`
	RiskScore   float64            `json:"riskScore"`
	Summary     Summary            `json:"summary"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

func (r *Report) MarshalJSON() ([]byte, error) {
	w := wireReport{
		Findings:    make([]wireFinding, 0, len(r.findings)),
		RiskScore:   r.riskScore,
		Summary:     r.summary,
		Diagnostics: r.diagnostics,
	}
	if w.Diagnostics == nil {
		w.Diagnostics = []model.Diagnostic{}
	}
	for _, f := range r.findings {
		w.Findings = append(w.Findings, wireFinding{Finding: f, Location: f.Primary()})
	}
	return json.Marshal(w)
}

// Parse reads a report previously written with MarshalJSON.
func Parse(data []byte) (*Report, error) {
	var w wireReport
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	r := &Report{riskScore: w.RiskScore, summary: w.Summary, diagnostics: w.Diagnostics}
	for _, f := range w.Findings {
		r.findings = append(r.findings, f.Finding)
	}
	if r.summary.BySeverity == nil {
		r.summary = summarize(r.findings)
	}
	return r, nil
}
