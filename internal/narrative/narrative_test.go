package narrative

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/config"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

type fakeGenerator struct {
	prompt string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return "summary", nil
}

func sample() *report.Report {
	f := model.Finding{
		ID:             "1",
		RuleID:         "SOL-XCONTRACT-REENTRANCY",
		Class:          "reentrancy",
		Title:          "Cross-contract reentrancy in Bank.withdraw on balances",
		Description:    "Bank.withdraw reads balances, calls token.transfer, and only then writes balances.",
		Severity:       model.SeverityCritical,
		Confidence:     model.ConfidenceConfirmed,
		EconomicImpact: "balances can be drained",
		Locations:      []model.Location{{Contract: "Bank", Function: "withdraw", Line: 7}},
	}
	return report.Generate([]model.Finding{f}, []model.Diagnostic{{Kind: model.DiagUnresolvedDependency, Message: "x"}}, report.Options{})
}

func TestSummarize(t *testing.T) {
	gen := &fakeGenerator{}
	out, err := New(gen, 0).Summarize(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
	assert.Contains(t, gen.prompt, "1. [critical/confirmed] Cross-contract reentrancy")
	assert.Contains(t, gen.prompt, "Economic impact: balances can be drained")
	assert.Contains(t, gen.prompt, "incomplete in 1 places")
}

func TestSummarizeTruncatesPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	_, err := New(gen, 40).Summarize(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, 40, utf8.RuneCountInString(gen.prompt))
}

func TestSummarizeWithoutFindings(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("unreachable")}
	out, err := New(gen, 0).Summarize(context.Background(), report.Empty())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Empty(t, gen.prompt)
}

func TestSummarizePropagatesErrors(t *testing.T) {
	_, err := New(&fakeGenerator{err: errors.New("down")}, 0).Summarize(context.Background(), sample())
	assert.EqualError(t, err, "down")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héé", truncate("hééllo", 3))
	assert.Equal(t, "ab", truncate("ab", 5))
}

func TestNewOllama(t *testing.T) {
	_, err := NewOllama(config.NarrativeConfig{Host: "http://localhost:11434", Model: ""})
	assert.Error(t, err)
	g, err := NewOllama(config.Default().Narrative)
	require.NoError(t, err)
	assert.Equal(t, "llama3", g.model)
}
