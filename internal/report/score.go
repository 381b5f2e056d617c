package report

import (
	"math"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// Scoring weighs findings into the 0-100 risk score.
type Scoring struct {
	Weights         map[model.Severity]float64
	HeuristicFactor float64
	Damping         float64
}

func DefaultScoring() Scoring {
	return Scoring{
		Weights: map[model.Severity]float64{
			model.SeverityCritical:      10,
			model.SeverityHigh:          6,
			model.SeverityMedium:        3,
			model.SeverityLow:           1,
			model.SeverityInformational: 0,
		},
		HeuristicFactor: 0.7,
		Damping:         20,
	}
}

// RiskScore is 100*(1-e^(-W/Damping)) where W sums severity weights, scaled
// down for heuristic findings. It saturates towards 100 and is rounded to one
// decimal.
func (s Scoring) RiskScore(findings []model.Finding) float64 {
	d := DefaultScoring()
	if s.Weights == nil {
		s.Weights = d.Weights
	}
	if s.HeuristicFactor <= 0 {
		s.HeuristicFactor = d.HeuristicFactor
	}
	if s.Damping <= 0 {
		s.Damping = d.Damping
	}
	w := 0.0
	for _, f := range findings {
		fw := s.Weights[f.Severity]
		if f.Confidence != model.ConfidenceConfirmed {
			fw *= s.HeuristicFactor
		}
		w += fw
	}
	score := 100 * (1 - math.Exp(-w/s.Damping))
	return math.Round(score*10) / 10
}
