package report

import (
	"encoding/json"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}
type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}
type sarifLoc struct {
	Physical sarifPhys      `json:"physicalLocation"`
	Logical  []sarifLogical `json:"logicalLocations,omitempty"`
}
type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}
type sarifArt struct {
	URI string `json:"uri"`
}
type sarifRegion struct {
	StartLine int `json:"startLine"`
}
type sarifLogical struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

func level(sev model.Severity) string {
	switch sev {
	case model.SeverityMedium:
		return "warning"
	case model.SeverityHigh, model.SeverityCritical:
		return "error"
	}
	return "note"
}

// ToSARIF renders the report as SARIF 2.1.0.
func ToSARIF(r *Report) ([]byte, error) {
	results := []sarifResult{}
	rules := []sarifRule{}
	seen := map[string]bool{}
	for _, f := range r.findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			rules = append(rules, sarifRule{ID: f.RuleID, ShortDescription: sarifMessage{Text: f.Title}})
		}
		var locs []sarifLoc
		for _, l := range f.Locations {
			loc := sarifLoc{Physical: sarifPhys{ArtifactLocation: sarifArt{URI: l.File}}}
			if l.Line > 0 {
				loc.Physical.Region = &sarifRegion{StartLine: l.Line}
			}
			name := l.Contract
			if l.Function != "" {
				name += "." + l.Function
			}
			loc.Logical = []sarifLogical{{FullyQualifiedName: name}}
			locs = append(locs, loc)
		}
		results = append(results, sarifResult{
			RuleID:              f.RuleID,
			Level:               level(f.Severity),
			Message:             sarifMessage{Text: f.Title + ": " + f.Description},
			Locations:           locs,
			PartialFingerprints: map[string]string{"mushAudit/v1": f.Fingerprint},
			Properties: map[string]any{
				"severity":   f.Severity,
				"confidence": f.Confidence,
			},
		})
	}
	s := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "mush-audit", InformationURI: "https://github.com/avaloki108/mush-audit", Rules: rules}},
			Results: results,
		}},
	}
	return json.MarshalIndent(s, "", "  ")
}
