package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// baseline is either a bare JSON array of fingerprints or this struct.
type baseline struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	Fingerprints map[string]bool `json:"fingerprints"`
}

func loadBaseline(path string) (baseline, error) {
	var b baseline
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	var fp []string
	if err := json.Unmarshal(data, &fp); err == nil {
		m := make(map[string]bool, len(fp))
		for _, f := range fp {
			m[f] = true
		}
		b.Fingerprints = m
		return b, nil
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("decode baseline: %w", err)
	}
	if b.Fingerprints == nil {
		b.Fingerprints = map[string]bool{}
	}
	return b, nil
}

func filterByBaseline(findings []model.Finding, b baseline) []model.Finding {
	if len(b.Fingerprints) == 0 {
		return findings
	}
	var out []model.Finding
	for _, f := range findings {
		if f.Fingerprint != "" && b.Fingerprints[f.Fingerprint] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// WriteBaseline stores the sorted, distinct fingerprints of findings at path.
func WriteBaseline(path string, findings []model.Finding) error {
	if path == "" {
		return nil
	}
	m := make(map[string]bool)
	for _, f := range findings {
		if f.Fingerprint != "" {
			m[f.Fingerprint] = true
		}
	}
	arr := make([]string, 0, len(m))
	for k := range m {
		arr = append(arr, k)
	}
	sort.Strings(arr)
	data, err := json.MarshalIndent(arr, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
