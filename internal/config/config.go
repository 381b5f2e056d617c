package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/report"
)

// FileName is the project config searched for upwards from the scan root.
const FileName = ".mush-audit.yaml"

// EnvPrefix prefixes environment overrides, e.g. MUSH_AUDIT_MAX_DEPTH=4.
const EnvPrefix = "MUSH_AUDIT"

type IgnoreRule struct {
	Rule    string `yaml:"rule" mapstructure:"rule"`
	Path    string `yaml:"path" mapstructure:"path"`
	Reason  string `yaml:"reason" mapstructure:"reason"`
	Expires string `yaml:"expires" mapstructure:"expires"`
}

// Active reports whether the rule still applies at now. Expires is a
// YYYY-MM-DD date; an unparseable date never expires.
func (r IgnoreRule) Active(now time.Time) bool {
	if r.Expires == "" {
		return true
	}
	t, err := time.Parse(time.DateOnly, r.Expires)
	if err != nil {
		return true
	}
	return now.Before(t.AddDate(0, 0, 1))
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// NarrativeConfig configures the optional ollama-backed summary.
type NarrativeConfig struct {
	Host            string `yaml:"host" mapstructure:"host"`
	Model           string `yaml:"model" mapstructure:"model"`
	MaxPromptLength int    `yaml:"max_prompt_length" mapstructure:"max_prompt_length"`
}

// HistoryConfig configures the sqlite report history.
type HistoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

type Config struct {
	SeverityThreshold  string          `yaml:"severity_threshold" mapstructure:"severity_threshold"`
	MaxDepth           int             `yaml:"max_depth" mapstructure:"max_depth"`
	MaxFiles           int             `yaml:"max_files" mapstructure:"max_files"`
	Workers            int             `yaml:"workers" mapstructure:"workers"`
	CacheSize          int             `yaml:"cache_size" mapstructure:"cache_size"`
	Rules              []string        `yaml:"rules" mapstructure:"rules"`
	Ignore             []IgnoreRule    `yaml:"ignore" mapstructure:"ignore"`
	GuardModifiers     []string        `yaml:"guard_modifiers" mapstructure:"guard_modifiers"`
	GarbageKeywords    []string        `yaml:"garbage_keywords" mapstructure:"garbage_keywords"`
	AccountingKeywords []string        `yaml:"accounting_keywords" mapstructure:"accounting_keywords"`
	ScoreDamping       float64         `yaml:"score_damping" mapstructure:"score_damping"`
	Logging            LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Narrative          NarrativeConfig `yaml:"narrative" mapstructure:"narrative"`
	History            HistoryConfig   `yaml:"history" mapstructure:"history"`
}

func Default() Config {
	return Config{
		SeverityThreshold: "low",
		MaxDepth:          8,
		MaxFiles:          500,
		CacheSize:         256,
		GuardModifiers:     append([]string(nil), analysis.DefaultGuardModifiers...),
		GarbageKeywords:    append([]string(nil), report.DefaultGarbageKeywords...),
		AccountingKeywords: append([]string(nil), analysis.DefaultAccountingKeywords...),
		ScoreDamping:       20,
		Logging:            LoggingConfig{Level: "warn", Format: "text", Output: "stderr"},
		Narrative:          NarrativeConfig{Host: "http://localhost:11434", Model: "llama3", MaxPromptLength: 12000},
		History:            HistoryConfig{Path: ".mush-audit/history.db"},
	}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.SeverityThreshold) {
	case "", "informational", "low", "medium", "high", "critical":
	default:
		errs = append(errs, fmt.Errorf("severity_threshold %q is not a severity", c.SeverityThreshold))
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if c.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("max_files must be positive, got %d", c.MaxFiles))
	}
	if c.ScoreDamping < 0 {
		errs = append(errs, fmt.Errorf("score_damping must not be negative"))
	}
	return errors.Join(errs...)
}

// Load searches upwards from startDir for FileName and merges it over the
// defaults; MUSH_AUDIT_* environment variables override both. The returned
// path is empty when no file was found.
func Load(startDir string) (Config, string, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	path := find(startDir)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Default(), path, fmt.Errorf("read %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), path, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

func find(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		dir = startDir
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached root
			return ""
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("severity_threshold", d.SeverityThreshold)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("max_files", d.MaxFiles)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("rules", d.Rules)
	v.SetDefault("ignore", d.Ignore)
	v.SetDefault("guard_modifiers", d.GuardModifiers)
	v.SetDefault("garbage_keywords", d.GarbageKeywords)
	v.SetDefault("accounting_keywords", d.AccountingKeywords)
	v.SetDefault("score_damping", d.ScoreDamping)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("narrative.host", d.Narrative.Host)
	v.SetDefault("narrative.model", d.Narrative.Model)
	v.SetDefault("narrative.max_prompt_length", d.Narrative.MaxPromptLength)
	v.SetDefault("history.path", d.History.Path)
}

// Write stores cfg as YAML at path.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
