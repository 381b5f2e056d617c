package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/analysis"
	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

const ierc20Src = `pragma solidity ^0.8.0;
interface IERC20 {
    function transfer(address to, uint256 amount) external returns (bool);
}`

const bankSrc = `pragma solidity ^0.8.0;
contract Bank {
    IERC20 public token;
    mapping(address => uint256) public balances;
    function withdraw(uint256 amount) external {
        require(balances[msg.sender] >= amount, "low");
        token.transfer(msg.sender, amount);
        balances[msg.sender] -= amount;
    }
}`

func project(t *testing.T, srcs ...string) *analysis.ProjectContext {
	t.Helper()
	pctx := &analysis.ProjectContext{Options: analysis.DefaultOptions()}
	for i, src := range srcs {
		u := model.SourceUnit{Name: string(rune('a'+i)) + ".sol", Text: src}
		all, err := solidity.ExtractAll(u)
		require.NoError(t, err)
		pctx.Units = append(pctx.Units, u)
		pctx.Contracts = append(pctx.Contracts, all...)
	}
	pctx.Graph = depmap.Build(pctx.Contracts)
	return pctx
}

func rules(fs []model.Finding) []string {
	var out []string
	for _, f := range fs {
		out = append(out, f.RuleID)
	}
	return out
}

func runSingle(t *testing.T, d any, srcs ...string) []model.Finding {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(d))
	return r.Run(context.Background(), project(t, srcs...))
}

type panicky struct{}

func (panicky) Meta() model.RuleMeta { return model.RuleMeta{ID: "PANIC"} }
func (panicky) Analyze(context.Context, *model.ContractState) ([]model.Finding, error) {
	panic("boom")
}

type failing struct{}

func (failing) Meta() model.RuleMeta { return model.RuleMeta{ID: "FAIL"} }
func (failing) AnalyzeBatch(context.Context, *analysis.ProjectContext) ([]model.Finding, error) {
	return []model.Finding{{RuleID: "FAIL"}}, errors.New("nope")
}

func TestRegisterRejectsNonDetectors(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(struct{}{}))
	assert.NoError(t, r.Register(panicky{}))
	assert.NoError(t, r.Register(failing{}))
	assert.Len(t, r.Detectors(), 2)
}

func TestBuiltinRulesAreUnique(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltin()
	seen := map[string]bool{}
	for _, m := range r.Rules() {
		assert.False(t, seen[m.ID], m.ID)
		seen[m.ID] = true
		assert.NotEmpty(t, m.Class, m.ID)
	}
	for _, id := range []string{"SOL-XCONTRACT-REENTRANCY", "SOL-INVARIANT", "XCHAIN-WORMHOLE-GUARDIAN", "XCHAIN-SIGNATURE-REPLAY"} {
		assert.True(t, seen[id], id)
	}
}

func TestOnlySelectsFamilies(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltin()
	assert.Same(t, r, r.Only(nil))
	sub := r.Only([]string{"SOL-INVARIANT-RESERVE-SYNC", "SOL-TX-ORIGIN"})
	var ids []string
	for _, m := range sub.Rules() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"SOL-INVARIANT", "SOL-TX-ORIGIN"}, ids)
}

func TestRunSurvivesBrokenDetectors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(panicky{}))
	require.NoError(t, r.Register(failing{}))
	require.NoError(t, r.Register(&solidityReentrancy{}))
	fs := r.Run(context.Background(), project(t, bankSrc))
	assert.Equal(t, []string{"SOL-REENTRANCY-ORDER"}, rules(fs))
}

func TestBuiltinsResolvedVersusUnresolved(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltin()

	resolved := r.Run(context.Background(), project(t, ierc20Src, bankSrc))
	assert.Contains(t, rules(resolved), "SOL-XCONTRACT-REENTRANCY")
	assert.Contains(t, rules(resolved), "SOL-UNCHECKED-ERC20")
	assert.NotContains(t, rules(resolved), "SOL-REENTRANCY-ORDER")

	again := r.Run(context.Background(), project(t, ierc20Src, bankSrc))
	assert.Equal(t, resolved, again)

	alone := r.Run(context.Background(), project(t, bankSrc))
	assert.NotContains(t, rules(alone), "SOL-XCONTRACT-REENTRANCY")
	require.Contains(t, rules(alone), "SOL-REENTRANCY-ORDER")
	for _, f := range alone {
		if f.RuleID == "SOL-REENTRANCY-ORDER" {
			assert.Equal(t, model.SeverityHigh, f.Severity)
			assert.Equal(t, model.ConfidenceHeuristic, f.Confidence)
			assert.Equal(t, 7, f.Primary().Line)
			assert.Equal(t, "b.sol", f.Primary().File)
			assert.NotEmpty(t, f.ID)
		}
	}
}

func TestPrecomputedFlowsAreUsed(t *testing.T) {
	pctx := project(t, ierc20Src, bankSrc)
	pctx.Flows = []model.CrossContractFlow{}
	fs, err := (&crossContractReentrancy{}).AnalyzeBatch(context.Background(), pctx)
	require.NoError(t, err)
	assert.Empty(t, fs)
}
