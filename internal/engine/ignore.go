package engine

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/config"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// inlineMarker precedes a rule ID in a source comment:
//
//	// mush-audit:ignore SOL-TX-ORIGIN accepted for EOA-only entry
const inlineMarker = "mush-audit:ignore"

// inlineWindow is how many lines above a finding a marker may sit.
const inlineWindow = 5

// applyIgnores filters findings based on config ignore rules and inline suppression markers
func applyIgnores(findings []model.Finding, cfg config.Config, pctx *analysis.ProjectContext, now time.Time) []model.Finding {
	var out []model.Finding
	lines := map[string][]string{}
	for _, f := range findings {
		if isIgnored(f, cfg, now) {
			continue
		}
		loc := f.Primary()
		src, ok := lines[loc.File]
		if !ok {
			src = strings.Split(pctx.UnitText(loc.File), "\n")
			lines[loc.File] = src
		}
		if hasInlineSuppression(src, f.RuleID, loc.Line) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isIgnored(f model.Finding, cfg config.Config, now time.Time) bool {
	file := filepath.ToSlash(f.Primary().File)
	for _, ig := range cfg.Ignore {
		if !ig.Active(now) {
			continue
		}
		if ig.Rule != "" && !matchesRule(f.RuleID, ig.Rule) {
			continue
		}
		if ig.Path != "" && !strings.HasPrefix(file, filepath.ToSlash(ig.Path)) {
			continue
		}
		return true
	}
	return false
}

// hasInlineSuppression looks at the finding line and the lines above it for
// a marker naming the rule or its family.
func hasInlineSuppression(lines []string, ruleID string, line int) bool {
	if line <= 0 || len(lines) == 0 {
		return false
	}
	from := max(0, line-1-inlineWindow)
	to := min(len(lines)-1, line-1)
	for i := from; i <= to; i++ {
		idx := strings.Index(lines[i], inlineMarker)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(lines[i][idx+len(inlineMarker):])
		if len(fields) > 0 && matchesRule(ruleID, fields[0]) {
			return true
		}
	}
	return false
}

// matchesRule reports whether pattern names id or the family id belongs to,
// so SOL-INVARIANT matches SOL-INVARIANT-RESERVE-SYNC.
func matchesRule(id, pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	return strings.EqualFold(id, pattern) || strings.HasPrefix(strings.ToUpper(id), strings.ToUpper(pattern)+"-")
}
