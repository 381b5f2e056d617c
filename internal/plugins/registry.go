package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/crosschain"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// Detector inspects one contract at a time.
type Detector interface {
	Meta() model.RuleMeta
	Analyze(ctx context.Context, c *model.ContractState) ([]model.Finding, error)
}

// BatchDetector needs the whole batch: the dependency graph, flows or other contracts.
type BatchDetector interface {
	Meta() model.RuleMeta
	AnalyzeBatch(ctx context.Context, pctx *analysis.ProjectContext) ([]model.Finding, error)
}

type Registry struct{ detectors []any }

func NewRegistry() *Registry { return &Registry{} }

// Register adds a Detector or BatchDetector. Anything else is rejected.
func (r *Registry) Register(d any) error {
	switch d.(type) {
	case Detector, BatchDetector:
		r.detectors = append(r.detectors, d)
		return nil
	}
	return fmt.Errorf("register %T: not a detector", d)
}

func (r *Registry) mustRegister(d any) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

func (r *Registry) RegisterBuiltin() {
	r.mustRegister(&crossContractReentrancy{})
	r.mustRegister(&stateInvariants{})
	r.mustRegister(crosschain.WormholeDetector{})
	r.mustRegister(crosschain.SignatureReplayDetector{})
	r.mustRegister(&solidityReentrancy{})
	r.mustRegister(&solidityTxOrigin{})
	r.mustRegister(&soliditySelfdestruct{})
	r.mustRegister(&solidityUncheckedCalls{})
	r.mustRegister(&solidityUncheckedERC20{})
	r.mustRegister(&solidityDelegatecallUnsafe{})
	r.mustRegister(&solidityRandomness{})
	r.mustRegister(&solidityFloatingPragma{})
	r.mustRegister(&solidityAccessControl{})
	r.mustRegister(&solidityMissingEvents{})
	r.mustRegister(&solidityTransferSend{})
	r.mustRegister(&soliditySwapDeadline{})
	r.mustRegister(&solidityUnboundedLoops{})
	r.mustRegister(&solidityStorageGap{})
}

// Only returns a registry restricted to the given rule IDs. A family ID such as
// SOL-INVARIANT-RESERVE-SYNC selects the detector registered as SOL-INVARIANT.
// An empty list keeps everything.
func (r *Registry) Only(ids []string) *Registry {
	if len(ids) == 0 {
		return r
	}
	out := NewRegistry()
	for _, d := range r.detectors {
		rule := metaOf(d).ID
		for _, id := range ids {
			if id == rule || strings.HasPrefix(id, rule+"-") {
				out.detectors = append(out.detectors, d)
				break
			}
		}
	}
	return out
}

// Run executes every detector concurrently. Findings come back in registration
// order; a failing or panicking detector contributes nothing and is logged.
func (r *Registry) Run(ctx context.Context, pctx *analysis.ProjectContext) []model.Finding {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		cpu = 2
	}
	if pctx.Options.Workers > 0 {
		cpu = pctx.Options.Workers
	}
	log := pctx.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	results := make([][]model.Finding, len(r.detectors))
	var wg sync.WaitGroup
	sem := make(chan struct{}, cpu)
	for i, d := range r.detectors {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			rule := metaOf(d).ID
			defer func() {
				if rec := recover(); rec != nil {
					log.WithField("rule", rule).Errorf("detector panicked: %v", rec)
					results[i] = nil
				}
			}()
			fs, err := runOne(ctx, d, pctx)
			if err != nil {
				log.WithField("rule", rule).WithError(err).Warn("detector failed")
				return
			}
			for j := range fs {
				for k := range fs[j].Locations {
					fs[j].Locations[k].File = filepath.ToSlash(fs[j].Locations[k].File)
				}
			}
			results[i] = fs
		}()
	}
	wg.Wait()
	var out []model.Finding
	for _, fs := range results {
		out = append(out, fs...)
	}
	return out
}

func runOne(ctx context.Context, d any, pctx *analysis.ProjectContext) ([]model.Finding, error) {
	switch det := d.(type) {
	case BatchDetector:
		return det.AnalyzeBatch(ctx, pctx)
	case Detector:
		var out []model.Finding
		for i := range pctx.Contracts {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			c := &pctx.Contracts[i]
			if pctx.Graph != nil {
				if gc, ok := pctx.Graph.Contract(c.Name); ok {
					c = gc
				}
			}
			fs, err := det.Analyze(ctx, c)
			if err != nil {
				return out, err
			}
			out = append(out, fs...)
		}
		return out, nil
	}
	return nil, nil
}

func metaOf(d any) model.RuleMeta {
	switch det := d.(type) {
	case BatchDetector:
		return det.Meta()
	case Detector:
		return det.Meta()
	}
	return model.RuleMeta{}
}

func (r *Registry) Detectors() []any { return r.detectors }

// Rules lists the metadata of every registered detector.
func (r *Registry) Rules() []model.RuleMeta {
	out := make([]model.RuleMeta, 0, len(r.detectors))
	for _, d := range r.detectors {
		out = append(out, metaOf(d))
	}
	return out
}
