package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

func finding(id string, sev model.Severity, conf model.Confidence, contract, fn, class string) model.Finding {
	return model.Finding{
		ID:          id,
		RuleID:      "R-" + class,
		Class:       class,
		Title:       "title " + id,
		Description: "description " + id,
		Severity:    sev,
		Confidence:  conf,
		Locations:   []model.Location{{Contract: contract, Function: fn, Line: 1, File: contract + ".sol"}},
		Fingerprint: "fp-" + id,
	}
}

func TestFilterGarbageFindings(t *testing.T) {
	gas := finding("1", model.SeverityLow, model.ConfidenceHeuristic, "A", "f", "gas")
	gas.Title = "Gas optimization: cache array length"
	style := finding("2", model.SeverityInformational, model.ConfidenceHeuristic, "A", "g", "style")
	style.Description = "Function does not follow the naming convention"
	kept := finding("3", model.SeverityHigh, model.ConfidenceConfirmed, "A", "h", "reentrancy")
	poc := finding("4", model.SeverityLow, model.ConfidenceHeuristic, "A", "i", "gas")
	poc.Title = "Redundant check enables bypass"
	poc.PoCCode = "contract X {}"
	econ := finding("5", model.SeverityLow, model.ConfidenceHeuristic, "A", "j", "gas")
	econ.Description = "gas cost spike lets anyone grief withdrawals"
	econ.EconomicImpact = "withdrawals blocked"

	in := []model.Finding{gas, style, kept, poc, econ}
	out := FilterGarbageFindings(in)
	var ids []string
	for _, f := range out {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"3", "4", "5"}, ids)
	assert.Len(t, in, 5)

	assert.Len(t, FilterGarbageFindings(in, "description"), 2)
	assert.Empty(t, FilterGarbageFindings(nil))
}

// Randomized check: the output never grows and exploit-bearing findings survive.
func TestFilterGarbageFindingsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"gas optimization", "reentrancy", "naming convention", "oracle", "typo", "overflow"}
	for round := 0; round < 200; round++ {
		var in []model.Finding
		for i := 0; i < rng.Intn(12); i++ {
			f := finding(fmt.Sprint(i), model.SeverityMedium, model.ConfidenceHeuristic, "C", "f", "x")
			f.Title = words[rng.Intn(len(words))]
			if rng.Intn(3) == 0 {
				f.PoCCode = "poc"
			}
			if rng.Intn(4) == 0 {
				f.EconomicImpact = "loss"
			}
			in = append(in, f)
		}
		out := FilterGarbageFindings(in)
		require.LessOrEqual(t, len(out), len(in))
		for _, f := range in {
			if f.HasExploitEvidence() {
				assert.Contains(t, out, f)
			}
		}
	}
}

func TestDedupeMergesByContractFunctionClass(t *testing.T) {
	a := finding("a", model.SeverityMedium, model.ConfidenceHeuristic, "Bank", "withdraw", "reentrancy")
	a.Evidence = []string{"call before write"}
	a.Flags = []string{model.FlagUnresolvedDependency}
	b := finding("b", model.SeverityCritical, model.ConfidenceConfirmed, "Bank", "withdraw", "reentrancy")
	b.RuleID = "SOL-XCONTRACT-REENTRANCY"
	b.Evidence = []string{"read balances", "call before write"}
	b.Locations = append(b.Locations, model.Location{Contract: "Bank", Function: "withdraw", Line: 9, File: "Bank.sol"})
	c := finding("c", model.SeverityLow, model.ConfidenceHeuristic, "Bank", "deposit", "reentrancy")

	out := Dedupe([]model.Finding{a, b, c})
	require.Len(t, out, 2)
	m := out[0]
	assert.Equal(t, "b", m.ID)
	assert.Equal(t, model.SeverityCritical, m.Severity)
	assert.Equal(t, model.ConfidenceConfirmed, m.Confidence)
	assert.Equal(t, []string{"read balances", "call before write", "also reported by R-reentrancy"}, m.Evidence)
	assert.Equal(t, []string{model.FlagUnresolvedDependency}, m.Flags)
	assert.Len(t, m.Locations, 2)
	assert.Equal(t, "c", out[1].ID)

	assert.Len(t, a.Evidence, 1, "inputs are not modified")
}

func TestRankOrder(t *testing.T) {
	h1 := finding("h1", model.SeverityHigh, model.ConfidenceHeuristic, "A", "a", "x")
	h2 := finding("h2", model.SeverityHigh, model.ConfidenceConfirmed, "A", "b", "x")
	h3 := finding("h3", model.SeverityHigh, model.ConfidenceHeuristic, "A", "c", "x")
	h3.EconomicImpact = "drain"
	crit := finding("c", model.SeverityCritical, model.ConfidenceHeuristic, "Z", "z", "x")
	med := finding("m", model.SeverityMedium, model.ConfidenceConfirmed, "A", "d", "x")

	fs := []model.Finding{med, h1, h2, crit, h3}
	Rank(fs)
	var ids []string
	for _, f := range fs {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"c", "h3", "h2", "h1", "m"}, ids)
}

func TestRiskScore(t *testing.T) {
	s := DefaultScoring()
	assert.Equal(t, 0.0, s.RiskScore(nil))

	one := []model.Finding{finding("1", model.SeverityCritical, model.ConfidenceConfirmed, "A", "f", "x")}
	heur := []model.Finding{finding("1", model.SeverityCritical, model.ConfidenceHeuristic, "A", "f", "x")}
	assert.Greater(t, s.RiskScore(one), s.RiskScore(heur))

	var many []model.Finding
	for i := 0; i < 50; i++ {
		many = append(many, finding(fmt.Sprint(i), model.SeverityCritical, model.ConfidenceConfirmed, "A", "f", "x"))
	}
	score := s.RiskScore(many)
	assert.LessOrEqual(t, score, 100.0)
	assert.Greater(t, score, 99.0)

	info := []model.Finding{finding("1", model.SeverityInformational, model.ConfidenceConfirmed, "A", "f", "x")}
	assert.Equal(t, 0.0, Scoring{}.RiskScore(info))
}

func TestGenerateIsImmutableAndDeterministic(t *testing.T) {
	in := []model.Finding{
		finding("m", model.SeverityMedium, model.ConfidenceHeuristic, "A", "f", "x"),
		finding("h", model.SeverityHigh, model.ConfidenceConfirmed, "B", "g", "y"),
	}
	diags := []model.Diagnostic{{Kind: model.DiagParseWarning, Unit: "bad.sol", Message: "unbalanced"}}
	r := Generate(in, diags, Options{})
	assert.Equal(t, "m", in[0].ID, "input order untouched")

	got := r.Findings()
	require.Len(t, got, 2)
	assert.Equal(t, "h", got[0].ID)
	got[0].Severity = model.SeverityLow
	got[0].Evidence = append(got[0].Evidence, "mutated")
	assert.Equal(t, model.SeverityHigh, r.Findings()[0].Severity)
	assert.Empty(t, r.Findings()[0].Evidence)

	sum := r.Summary()
	assert.Equal(t, 2, sum.TotalFindings)
	assert.Equal(t, 1, sum.BySeverity[model.SeverityHigh])
	sum.BySeverity[model.SeverityHigh] = 9
	assert.Equal(t, 1, r.Summary().BySeverity[model.SeverityHigh])
	assert.True(t, r.AtLeast(model.SeverityHigh))
	assert.False(t, r.AtLeast(model.SeverityCritical))

	a, err := json.Marshal(r)
	require.NoError(t, err)
	b, err := json.Marshal(Generate(in, diags, Options{}))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReportJSONShape(t *testing.T) {
	f := finding("h", model.SeverityHigh, model.ConfidenceConfirmed, "B", "g", "y")
	f.PoCCode = "contract Attacker {}"
	data, err := json.Marshal(Generate([]model.Finding{f}, nil, Options{}))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "riskScore")
	assert.Contains(t, raw, "diagnostics")
	summary := raw["summary"].(map[string]any)
	assert.Equal(t, 1.0, summary["totalFindings"])
	assert.Equal(t, 0.0, summary["bySeverity"].(map[string]any)["critical"])
	first := raw["findings"].([]any)[0].(map[string]any)
	for _, k := range []string{"id", "title", "severity", "description", "impact", "location", "recommendation", "confidence", "pocCode"} {
		assert.Contains(t, first, k)
	}
	assert.NotContains(t, first, "economicImpact")
	assert.Equal(t, "B", first["location"].(map[string]any)["contract"])

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "h", back.Findings()[0].ID)
	assert.Equal(t, 1, back.Summary().TotalFindings)
}

func TestEmptyReport(t *testing.T) {
	r := Empty(model.Diagnostic{Kind: model.DiagInvalidInput, Message: "no source units"})
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"findings":[]`)
	assert.Equal(t, 0.0, r.RiskScore())
	assert.Len(t, r.Diagnostics(), 1)
}

func TestRenderers(t *testing.T) {
	f := finding("h", model.SeverityHigh, model.ConfidenceConfirmed, "Bank", "withdraw", "reentrancy")
	f.Evidence = []string{"read balances"}
	r := Generate([]model.Finding{f}, []model.Diagnostic{{Kind: model.DiagUnresolvedDependency, Contract: "Bank", Message: "IERC20 not in batch"}}, Options{})

	var tbl bytes.Buffer
	require.NoError(t, WriteTable(&tbl, r))
	assert.Contains(t, tbl.String(), "Bank.sol:Bank.withdraw:1")
	assert.Contains(t, tbl.String(), "UnresolvedDependency")

	var md bytes.Buffer
	require.NoError(t, WriteMarkdown(&md, r))
	assert.Contains(t, md.String(), "## 1. [HIGH] title h")
	assert.Contains(t, md.String(), "- read balances")

	data, err := ToSARIF(r)
	require.NoError(t, err)
	var s map[string]any
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, "2.1.0", s["version"])
	run := s["runs"].([]any)[0].(map[string]any)
	res := run["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "error", res["level"])
	assert.Equal(t, "R-reentrancy", res["ruleId"])
}
