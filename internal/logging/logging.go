package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/avaloki108/mush-audit-sub001/internal/config"
)

// InitLogger configures the standard logrus logger from cfg. The returned
// closer releases a log file, if one was opened.
func InitLogger(cfg config.LoggingConfig) io.Closer {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', using 'warn' instead. Error: %v", cfg.Level, err)
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	var closer io.Closer = nopCloser{}
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			logrus.Warnf("Failed to open log file '%s', using 'stderr' instead. Error: %v", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
			closer = file
		}
	}
	logrus.SetOutput(output)
	logrus.Debug("Logger initialized")
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// For returns an entry tagged with the pipeline stage.
func For(stage string) *logrus.Entry {
	return logrus.WithField("stage", stage)
}
