package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// WriteTable prints a compact human summary.
func WriteTable(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "Findings: %d  Risk score: %.1f/100\n", r.summary.TotalFindings, r.riskScore)
	if len(r.findings) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEVERITY\tCONFIDENCE\tRULE\tLOCATION\tTITLE")
		for _, f := range r.findings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Severity, f.Confidence, f.RuleID, where(f.Primary().File, f.Primary().Contract, f.Primary().Function, f.Primary().Line), f.Title)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	for _, d := range r.diagnostics {
		fmt.Fprintf(w, "! %s %s: %s\n", d.Kind, strings.TrimSpace(d.Unit+" "+d.Contract), d.Message)
	}
	return nil
}

func where(file, contract, function string, line int) string {
	s := contract
	if function != "" {
		s += "." + function
	}
	if file != "" {
		s = file + ":" + s
	}
	if line > 0 {
		s += fmt.Sprintf(":%d", line)
	}
	return s
}

// WriteMarkdown renders an audit-style Markdown document.
func WriteMarkdown(w io.Writer, r *Report) error {
	var b strings.Builder
	b.WriteString("# Security report\n\n")
	fmt.Fprintf(&b, "Risk score: **%.1f / 100**, %d findings\n\n", r.riskScore, r.summary.TotalFindings)
	b.WriteString("| Severity | Count |\n|---|---|\n")
	for _, sev := range model.Severities() {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, r.summary.BySeverity[sev])
	}
	for i, f := range r.findings {
		l := f.Primary()
		fmt.Fprintf(&b, "\n## %d. [%s] %s\n\n", i+1, strings.ToUpper(string(f.Severity)), f.Title)
		fmt.Fprintf(&b, "- Rule: `%s`\n- Confidence: %s\n- Location: `%s`\n", f.RuleID, f.Confidence, where(l.File, l.Contract, l.Function, l.Line))
		if len(f.Flags) > 0 {
			fmt.Fprintf(&b, "- Flags: %s\n", strings.Join(f.Flags, ", "))
		}
		fmt.Fprintf(&b, "\n%s\n", f.Description)
		if f.Impact != "" {
			fmt.Fprintf(&b, "\n**Impact.** %s\n", f.Impact)
		}
		if f.EconomicImpact != "" {
			fmt.Fprintf(&b, "\n**Economic impact.** %s\n", f.EconomicImpact)
		}
		if len(f.Evidence) > 0 {
			b.WriteString("\n**Evidence**\n\n")
			for _, e := range f.Evidence {
				fmt.Fprintf(&b, "- %s\n", e)
			}
		}
		if f.Snippet != "" {
			fmt.Fprintf(&b, "\n```solidity\n%s\n```\n", f.Snippet)
		}
		if f.Recommendation != "" {
			fmt.Fprintf(&b, "\n**Recommendation.** %s\n", f.Recommendation)
		}
		if f.PoCCode != "" {
			fmt.Fprintf(&b, "\n<details><summary>Proof of concept</summary>\n\n```solidity\n%s\n```\n\n</details>\n", f.PoCCode)
		}
	}
	if len(r.diagnostics) > 0 {
		b.WriteString("\n## Diagnostics\n\n")
		for _, d := range r.diagnostics {
			fmt.Fprintf(&b, "- %s: %s\n", d.Kind, d.Message)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
