package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

func sampleReport() *report.Report {
	f := model.Finding{
		ID:          "f1",
		RuleID:      "SOL-TX-ORIGIN",
		Class:       "access-control",
		Title:       "tx.origin used for authorization",
		Severity:    model.SeverityHigh,
		Confidence:  model.ConfidenceHeuristic,
		Locations:   []model.Location{{Contract: "Wallet", Function: "pay", Line: 4, File: "Wallet.sol"}},
		Fingerprint: "fp1",
	}
	return report.Generate([]model.Finding{f}, []model.Diagnostic{{Kind: model.DiagParseWarning, Unit: "x.sol", Message: "empty source"}}, report.Options{})
}

func TestRecordAndLoad(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer s.Close()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	first, err := s.Record(ctx, "contracts/", sampleReport(), base)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, 1, first.High)
	assert.Equal(t, 1, first.Diagnostics)

	_, err = s.Record(ctx, "other/", report.Empty(), base.Add(time.Hour))
	require.NoError(t, err)

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "other/", all[0].Target)
	assert.Empty(t, all[0].Report)

	mine, err := s.Recent(ctx, "contracts/", 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	r, err := s.Load(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, r.Findings(), 1)
	assert.Equal(t, "SOL-TX-ORIGIN", r.Findings()[0].RuleID)
	assert.Equal(t, sampleReport().RiskScore(), r.RiskScore())

	_, err = s.Load(ctx, 999)
	assert.Error(t, err)
}
