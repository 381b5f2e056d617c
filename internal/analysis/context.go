package analysis

import (
	"github.com/sirupsen/logrus"

	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// ProjectContext is the read-only view of one analysis run that batch detectors consume.
type ProjectContext struct {
	Units     []model.SourceUnit
	Contracts []model.ContractState
	Graph     *depmap.Graph
	Flows     []model.CrossContractFlow // nil until the flow stage ran
	Options   Options
	Log       *logrus.Entry
}

// Options are the tunable policy parameters of the analyzers.
type Options struct {
	MaxDepth           int
	Workers            int
	GuardModifiers     []string
	AccountingKeywords []string
}

var (
	DefaultGuardModifiers     = []string{"nonReentrant", "noReentrant", "nonreentrant", "lock", "reentrancyGuard", "mutex"}
	DefaultAccountingKeywords = []string{"balance", "supply", "share", "debt", "deposit", "stake", "reserve", "collateral"}
)

const DefaultMaxDepth = 8

// DefaultOptions returns the conservative defaults.
func DefaultOptions() Options {
	return Options{
		MaxDepth:           DefaultMaxDepth,
		GuardModifiers:     DefaultGuardModifiers,
		AccountingKeywords: DefaultAccountingKeywords,
	}
}

// WithDefaults fills unset fields from DefaultOptions.
func (o Options) WithDefaults() Options { return o.withDefaults() }

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if len(o.GuardModifiers) == 0 {
		o.GuardModifiers = DefaultGuardModifiers
	}
	if len(o.AccountingKeywords) == 0 {
		o.AccountingKeywords = DefaultAccountingKeywords
	}
	return o
}

// UnitText returns the source text of the named unit, or "".
func (p *ProjectContext) UnitText(name string) string {
	for _, u := range p.Units {
		if u.Name == name {
			return u.Text
		}
	}
	return ""
}
