package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, path, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, 500, cfg.MaxFiles)
	assert.Contains(t, cfg.GuardModifiers, "nonReentrant")
}

func TestDefaultListsMatchDetectors(t *testing.T) {
	cfg := Default()
	assert.Equal(t, analysis.DefaultGuardModifiers, cfg.GuardModifiers)
	assert.Equal(t, analysis.DefaultAccountingKeywords, cfg.AccountingKeywords)
	assert.Equal(t, report.DefaultGarbageKeywords, cfg.GarbageKeywords)

	cfg.GuardModifiers[0] = "changed"
	cfg.GarbageKeywords[0] = "changed"
	assert.Equal(t, "nonReentrant", analysis.DefaultGuardModifiers[0])
	assert.NotEqual(t, "changed", report.DefaultGarbageKeywords[0])
}

func TestLoadSearchesUpwards(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "contracts", "core")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`
max_depth: 3
rules: [SOL-TX-ORIGIN]
ignore:
  - rule: SOL-FLOATING-PRAGMA
    path: contracts/mocks
logging:
  level: debug
`), 0o644))

	cfg, path, err := Load(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), path)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, []string{"SOL-TX-ORIGIN"}, cfg.Rules)
	require.Len(t, cfg.Ignore, 1)
	assert.Equal(t, "contracts/mocks", cfg.Ignore[0].Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 500, cfg.MaxFiles)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MUSH_AUDIT_MAX_DEPTH", "5")
	t.Setenv("MUSH_AUDIT_LOGGING_LEVEL", "error")
	cfg, _, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())
	bad := Default()
	bad.MaxDepth = 0
	bad.SeverityThreshold = "scary"
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_depth")
	assert.Contains(t, err.Error(), "scary")
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Rules = []string{"SOL-INVARIANT"}
	require.NoError(t, Write(filepath.Join(dir, FileName), cfg))
	got, _, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Rules, got.Rules)
	assert.Equal(t, cfg.GarbageKeywords, got.GarbageKeywords)
}

func TestIgnoreRuleActive(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.True(t, IgnoreRule{}.Active(now))
	assert.True(t, IgnoreRule{Expires: "2026-03-10"}.Active(now))
	assert.False(t, IgnoreRule{Expires: "2026-03-09"}.Active(now))
	assert.True(t, IgnoreRule{Expires: "soon"}.Active(now))
}
