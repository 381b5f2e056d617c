package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/config"
)

func TestInitLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	closer := InitLogger(config.LoggingConfig{Level: "debug", Format: "json", Output: path})
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	})
	For("extract").WithField("unit", "Vault.sol").Warn("parse warning")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"extract"`)
	assert.Contains(t, string(data), `"unit":"Vault.sol"`)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestInitLoggerBadLevelFallsBack(t *testing.T) {
	closer := InitLogger(config.LoggingConfig{Level: "chatty", Output: "stderr"})
	t.Cleanup(func() { logrus.SetLevel(logrus.InfoLevel) })
	assert.NoError(t, closer.Close())
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
}
