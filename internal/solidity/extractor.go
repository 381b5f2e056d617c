package solidity

import (
	"errors"

	"github.com/avaloki108/mush-audit-sub001/internal/cache"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

const irVersion = "sol-ir-v2"

// Extractor memoizes contract models by unit content. It is safe for
// concurrent use; every call returns copies the caller may modify.
type Extractor struct {
	memo *cache.Memo[[]model.ContractState]
}

func NewExtractor(size int) (*Extractor, error) {
	m, err := cache.NewMemo[[]model.ContractState](size)
	if err != nil {
		return nil, err
	}
	return &Extractor{memo: m}, nil
}

// Extract returns every contract in the unit, or a *ParseWarning.
func (e *Extractor) Extract(unit model.SourceUnit) ([]model.ContractState, error) {
	key := cache.Key(irVersion, unitName(unit), unit.Path, unit.Text)
	if e != nil {
		if hit, ok := e.memo.Load(key); ok {
			return cloneAll(hit), nil
		}
	}
	all, err := ExtractAll(unit)
	if err != nil {
		return nil, err
	}
	if e != nil {
		e.memo.Store(key, cloneAll(all))
	}
	return all, nil
}

// Cached reports how many units are memoized.
func (e *Extractor) Cached() int {
	if e == nil {
		return 0
	}
	return e.memo.Len()
}

// IsParseWarning reports whether err is a recoverable per-unit warning.
func IsParseWarning(err error) (*ParseWarning, bool) {
	var w *ParseWarning
	if errors.As(err, &w) {
		return w, true
	}
	return nil, false
}

func cloneAll(in []model.ContractState) []model.ContractState {
	out := make([]model.ContractState, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
