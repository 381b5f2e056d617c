package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/depmap"
	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

const ierc20Src = `pragma solidity ^0.8.0;
interface IERC20 {
    function transfer(address to, uint256 amount) external returns (bool);
    function balanceOf(address who) external view returns (uint256);
}`

const bankSrc = `pragma solidity ^0.8.0;
import "./IERC20.sol";
contract Bank {
    IERC20 public token;
    mapping(address => uint256) public balances;
    function withdraw(uint256 amount) external {
        require(balances[msg.sender] >= amount, "low");
        token.transfer(msg.sender, amount);
        balances[msg.sender] -= amount;
    }
}`

func batch(t *testing.T, srcs ...string) []model.ContractState {
	t.Helper()
	var out []model.ContractState
	for i, src := range srcs {
		all, err := solidity.ExtractAll(model.SourceUnit{Name: string(rune('a'+i)) + ".sol", Text: src})
		require.NoError(t, err)
		out = append(out, all...)
	}
	return out
}

func TestNoExternalCallsYieldsNoFlows(t *testing.T) {
	contracts := batch(t, `contract Counter {
    uint256 public n;
    function bump() external { n += 1; }
    function get() external view returns (uint256) { return n; }
}`)
	assert.Empty(t, AnalyzeCrossContractFlows(contracts, depmap.Build(contracts)))
}

func TestUnresolvedCallsYieldNoFlows(t *testing.T) {
	contracts := batch(t, bankSrc)
	assert.Empty(t, AnalyzeCrossContractFlows(contracts, nil))
}

func TestCrossContractReentrancy(t *testing.T) {
	contracts := batch(t, ierc20Src, bankSrc)
	g := depmap.Build(contracts)
	flows := AnalyzeCrossContractFlows(contracts, g)
	require.Len(t, flows, 1)
	assert.Equal(t, model.FlowRef{Contract: "Bank", Function: "withdraw"}, flows[0].Entry)
	assert.Equal(t, "token.transfer", flows[0].Focus)
	assert.False(t, flows[0].Partial)

	findings := DetectCrossContractReentrancy(flows, g)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.True(t, model.SeverityGTE(f.Severity, model.SeverityHigh))
	assert.Equal(t, model.SeverityCritical, f.Severity)
	assert.Equal(t, model.ConfidenceConfirmed, f.Confidence)
	assert.Equal(t, "Bank", f.Primary().Contract)
	assert.Equal(t, "withdraw", f.Primary().Function)
	assert.Equal(t, 8, f.Primary().Line)
	assert.NotEmpty(t, f.PoCCode)
	assert.NotEmpty(t, f.EconomicImpact)
	assert.Empty(t, f.Flags)
	assert.NotEmpty(t, f.ID)

	again := DetectCrossContractReentrancy(AnalyzeCrossContractFlows(contracts, g), g)
	assert.Equal(t, findings, again)
}

func TestSameNamedLocalsFollowTheirOwnTypes(t *testing.T) {
	contracts := batch(t, `interface IA { function ping() external; }
contract B { uint256 public n; function ping() external { n += 1; } }
contract A {
    function f(IA t) external { t.ping(); }
    function g(B t) external { t.ping(); }
}`)
	flows := AnalyzeCrossContractFlows(contracts, depmap.Build(contracts))
	var g *model.CrossContractFlow
	for i := range flows {
		if flows[i].Entry.Function == "g" {
			g = &flows[i]
		}
	}
	require.NotNil(t, g)
	assert.Equal(t, []string{"A", "B"}, g.Contracts())
}

func TestReentrancyGuards(t *testing.T) {
	marker := `import "./IERC20.sol";
contract Bank {
    IERC20 public token;
    mapping(address => uint256) public balances;
    function withdraw(uint256 amount) external nonReentrant {
        require(balances[msg.sender] >= amount);
        token.transfer(msg.sender, amount);
        balances[msg.sender] -= amount;
    }
}`
	mutex := `import "./IERC20.sol";
contract Bank {
    IERC20 public token;
    bool private locked;
    mapping(address => uint256) public balances;
    modifier guard() { require(!locked); locked = true; _; locked = false; }
    function withdraw(uint256 amount) external guard {
        require(balances[msg.sender] >= amount);
        token.transfer(msg.sender, amount);
        balances[msg.sender] -= amount;
    }
}`
	for name, src := range map[string]string{"marker": marker, "mutex": mutex} {
		contracts := batch(t, ierc20Src, src)
		g := depmap.Build(contracts)
		flows := AnalyzeCrossContractFlows(contracts, g)
		require.NotEmpty(t, flows, name)
		assert.Empty(t, DetectCrossContractReentrancy(flows, g), name)
	}
}

const chainSrc = `contract B {
    C public c;
    function step() external { c.go(); }
}
contract C {
    uint256 public n;
    function go() external { n += 1; }
}
contract A {
    B public b;
    uint256 public credit;
    function run() external {
        uint256 x = credit;
        b.step();
        credit = x + 1;
    }
}`

func flowsOf(flows []model.CrossContractFlow, contract string) []model.CrossContractFlow {
	var out []model.CrossContractFlow
	for _, f := range flows {
		if f.Entry.Contract == contract {
			out = append(out, f)
		}
	}
	return out
}

func TestFlowDepthBound(t *testing.T) {
	contracts := batch(t, chainSrc)
	g := depmap.Build(contracts)

	full := AnalyzeCrossContractFlows(contracts, g)
	a := flowsOf(full, "A")
	require.Len(t, a, 1)
	assert.False(t, a[0].Partial)
	assert.Equal(t, []string{"A", "B", "C"}, a[0].Contracts())
	assert.Len(t, flowsOf(full, "B"), 1)

	shallow, err := FlowAnalyzer{MaxDepth: 1, Workers: 2}.Analyze(context.Background(), contracts, g)
	require.NoError(t, err)
	a = flowsOf(shallow, "A")
	require.Len(t, a, 1)
	assert.True(t, a[0].Partial)
	assert.Contains(t, a[0].Tags, model.FlowTagRecursionLimit)
	assert.Equal(t, []string{"A", "B"}, a[0].Contracts())

	findings := DetectCrossContractReentrancy(shallow, g)
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)
	assert.Equal(t, model.ConfidenceHeuristic, findings[0].Confidence)
	assert.True(t, findings[0].HasFlag(model.FlagRecursionLimit))
}

func TestMutualRecursionTerminates(t *testing.T) {
	contracts := batch(t, `contract P {
    Q public q;
    uint256 public x;
    function ping() external { x += 1; q.pong(); }
}
contract Q {
    P public p;
    function pong() external { p.ping(); }
}`)
	flows := AnalyzeCrossContractFlows(contracts, nil)
	require.Len(t, flows, 2)
	for _, f := range flows {
		assert.False(t, f.Partial)
	}
}

const leakyVault = `contract Vault {
    mapping(address => uint256) public balances;
    uint256 public totalSupply;
    function deposit() external payable { balances[msg.sender] += msg.value; }
    function withdraw(uint256 amount) external {
        balances[msg.sender] -= amount;
        payable(msg.sender).transfer(amount);
    }
}`

const reconciledVault = `contract Vault {
    mapping(address => uint256) public balances;
    uint256 public totalSupply;
    function deposit() external payable {
        balances[msg.sender] += msg.value;
        totalSupply += msg.value;
    }
    function withdraw(uint256 amount) external {
        balances[msg.sender] -= amount;
        totalSupply -= amount;
        payable(msg.sender).transfer(amount);
    }
}`

func violated(invs []model.StateInvariant) []model.StateInvariant {
	var out []model.StateInvariant
	for _, inv := range invs {
		if inv.Violated {
			out = append(out, inv)
		}
	}
	return out
}

func TestBalanceTotalInvariant(t *testing.T) {
	got := violated(CheckStateInvariants(batch(t, leakyVault)))
	require.Len(t, got, 1)
	assert.Equal(t, "balance-total-reconciliation", got[0].ID)
	assert.Equal(t, "Vault", got[0].Contract)
	assert.Equal(t, []string{"deposit", "withdraw"}, got[0].Functions)

	fixed := CheckStateInvariants(batch(t, reconciledVault))
	assert.Empty(t, violated(fixed))
	require.Len(t, fixed, 1)
}

func TestInternalHelpersReconcile(t *testing.T) {
	got := CheckStateInvariants(batch(t, `contract Token {
    mapping(address => uint256) public balanceOf;
    uint256 public totalSupply;
    function mint(address to, uint256 a) external { _mint(to, a); }
    function transfer(address to, uint256 a) external { balanceOf[msg.sender] -= a; balanceOf[to] += a; }
    function _mint(address to, uint256 a) internal { balanceOf[to] += a; totalSupply += a; }
}`))
	assert.Empty(t, violated(got))
}

func TestSharePriceDonation(t *testing.T) {
	src := `contract ShareVault {
    IERC20 public asset;
    uint256 public totalShares;
    mapping(address => uint256) public shares;
    function pricePerShare() public view returns (uint256) {
        return asset.balanceOf(address(this)) * 1e18 / totalShares;
    }
}`
	got := violated(CheckStateInvariants(batch(t, src)))
	require.Len(t, got, 1)
	assert.Equal(t, "share-price-donation", got[0].ID)

	ic, err := NewInvariantChecker(DefaultInvariants())
	require.NoError(t, err)
	contracts := batch(t, src)
	g := depmap.Build(contracts)
	findings := ic.InvariantFindings(ic.Check(contracts, g), g)
	require.Len(t, findings, 1)
	assert.Equal(t, "SOL-INVARIANT-SHARE-PRICE-DONATION", findings[0].RuleID)
	assert.Equal(t, "pricePerShare", findings[0].Primary().Function)
	assert.NotEmpty(t, findings[0].EconomicImpact)
	assert.True(t, findings[0].HasFlag(model.FlagUnresolvedDependency))

	accounted := `contract ShareVault {
    IERC20 public asset;
    uint256 public totalShares;
    uint256 public storedAssets;
    function deposit(uint256 a) external { storedAssets += a; }
    function pricePerShare() public view returns (uint256) {
        return asset.balanceOf(address(this)) * 1e18 / totalShares;
    }
}`
	assert.Empty(t, violated(CheckStateInvariants(batch(t, accounted))))
}

func TestReserveSync(t *testing.T) {
	got := violated(CheckStateInvariants(batch(t, `contract Pair {
    IERC20 public token0;
    uint112 private reserve0;
    function swapOut(uint256 a) external { token0.transfer(msg.sender, a); }
    function sync() external { reserve0 = uint112(token0.balanceOf(address(this))); }
}`)))
	require.Len(t, got, 1)
	assert.Equal(t, "reserve-sync", got[0].ID)
	assert.Equal(t, []string{"swapOut"}, got[0].Functions)
}

func TestBadPredicateFailsToCompile(t *testing.T) {
	_, err := NewInvariantChecker([]InvariantPattern{{ID: "broken", Applies: "vars.exists("}})
	assert.Error(t, err)
}

func TestReentrancyPoC(t *testing.T) {
	fn := &model.FunctionModel{Name: "withdraw", Params: []model.Param{{Name: "amount", Type: "uint256"}}}
	poc := ReentrancyPoC("Bank", fn, "token.transfer")
	assert.Contains(t, poc, "function withdraw(uint256 amount) external;")
	assert.Contains(t, poc, "target.withdraw(1);")
}
