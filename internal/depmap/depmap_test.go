package depmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

const ierc20Src = `pragma solidity ^0.8.0;
interface IERC20 {
    function transfer(address to, uint256 amount) external returns (bool);
    function balanceOf(address who) external view returns (uint256);
}`

const vaultSrc = `pragma solidity ^0.8.0;
import "./IERC20.sol";
contract Vault {
    IERC20 public token;
    address public oracle;
    mapping(address => uint256) public balances;
    function withdraw(uint256 amount) external {
        token.transfer(msg.sender, amount);
        IERC20(oracle).balanceOf(address(this));
    }
}`

func extract(t *testing.T, srcs map[string]string, order ...string) []model.ContractState {
	t.Helper()
	var out []model.ContractState
	for _, name := range order {
		all, err := solidity.ExtractAll(model.SourceUnit{Name: name, Text: srcs[name]})
		require.NoError(t, err)
		out = append(out, all...)
	}
	return out
}

func TestExtractVariableTypes(t *testing.T) {
	types := ExtractVariableTypes(vaultSrc)
	assert.Equal(t, map[string]string{
		"token":    "IERC20",
		"oracle":   "address",
		"balances": "mapping(address => uint256)",
	}, types)
	assert.Empty(t, ExtractVariableTypes("not solidity {"))
}

func TestFindContractByType(t *testing.T) {
	batch := extract(t, map[string]string{"IERC20.sol": ierc20Src, "Vault.sol": vaultSrc}, "IERC20.sol", "Vault.sol")

	got := FindContractByType("IERC20", batch)
	require.NotNil(t, got)
	assert.Equal(t, model.KindInterface, got.Kind)

	assert.NotNil(t, FindContractByType("ierc20", batch))
	assert.NotNil(t, FindContractByType("mapping(address => IERC20[])", batch))
	assert.Nil(t, FindContractByType("uint256", batch))

	alone := extract(t, map[string]string{"Vault.sol": vaultSrc}, "Vault.sol")
	assert.Nil(t, FindContractByType("IERC20", alone))
}

func TestFindContractByName(t *testing.T) {
	batch := extract(t, map[string]string{"Token.sol": "contract Token {}", "IOracle.sol": "interface IOracle {}"}, "Token.sol", "IOracle.sol")
	require.NotNil(t, FindContractByName("token", batch))
	require.NotNil(t, FindContractByName("_token", batch))
	require.NotNil(t, FindContractByName("s_token", batch))
	got := FindContractByName("oracle", batch)
	require.NotNil(t, got)
	assert.Equal(t, "IOracle", got.Name)
	assert.Nil(t, FindContractByName("router", batch))
}

func TestBuildResolvesEdges(t *testing.T) {
	batch := extract(t, map[string]string{"IERC20.sol": ierc20Src, "Vault.sol": vaultSrc}, "IERC20.sol", "Vault.sol")
	g := Build(batch)

	assert.Equal(t, []string{"IERC20", "Vault"}, g.Nodes())
	e, ok := g.Edge("Vault", "token")
	require.True(t, ok)
	assert.Equal(t, "IERC20", e.To)
	assert.Equal(t, model.Resolved, e.Resolution)
	assert.Equal(t, model.ByDeclaredType, e.Method)

	cast, ok := g.Edge("Vault", "IERC20(oracle)")
	require.True(t, ok)
	assert.Equal(t, "IERC20", cast.To)

	assert.Len(t, g.EdgesFrom("Vault"), 2)
	assert.Empty(t, g.Unresolved("Vault"))
}

func TestBuildAnnotatesUnresolved(t *testing.T) {
	batch := extract(t, map[string]string{"Vault.sol": vaultSrc}, "Vault.sol")
	g := Build(batch)

	assert.Empty(t, g.Edges())
	refs := g.Unresolved("Vault")
	require.Len(t, refs, 2)
	assert.Equal(t, model.UnresolvedRef{Contract: "Vault", Variable: "token", DeclaredType: "IERC20"}, refs[0])
	assert.Equal(t, "IERC20(oracle)", refs[1].Variable)
	assert.Len(t, g.AllUnresolved(), 2)
}

func TestLookupFunctionWalksBases(t *testing.T) {
	src := `contract Base { function hook() public {} }
contract Child is Base { function run() external { hook(); } }`
	batch := extract(t, map[string]string{"Child.sol": src}, "Child.sol")
	g := Build(batch)
	owner, fn, ok := g.LookupFunction("Child", "hook")
	require.True(t, ok)
	assert.Equal(t, "Base", owner.Name)
	assert.Equal(t, "hook", fn.Name)
	_, _, ok = g.LookupFunction("Child", "missing")
	assert.False(t, ok)
}

func TestBuildScopesLocalReceivers(t *testing.T) {
	src := `interface IA { function ping() external; }
contract B { uint256 public n; function ping() external { n += 1; } }
contract A {
    function f(IA t) external { t.ping(); }
    function g(B t) external { t.ping(); }
}`
	batch := extract(t, map[string]string{"A.sol": src}, "A.sol")
	g := Build(batch)

	f, ok := g.EdgeFor("A", "f", "t")
	require.True(t, ok)
	assert.Equal(t, "IA", f.To)
	b, ok := g.EdgeFor("A", "g", "t")
	require.True(t, ok)
	assert.Equal(t, "B", b.To)
	assert.Len(t, g.EdgesFrom("A"), 2)

	_, ok = g.EdgeFor("A", "missing", "t")
	assert.False(t, ok)
}

func TestBuildResolvesNestedMappingValues(t *testing.T) {
	src := `interface IVault { function sweep() external; }
contract A {
    mapping(address => mapping(uint256 => IVault)) vaults;
    function run(uint256 id) external { vaults[msg.sender][id].sweep(); }
}`
	batch := extract(t, map[string]string{"A.sol": src}, "A.sol")
	g := Build(batch)

	e, ok := g.Edge("A", "vaults")
	require.True(t, ok)
	assert.Equal(t, "IVault", e.To)
	assert.Equal(t, model.ByDeclaredType, e.Method)
	assert.Empty(t, g.Unresolved("A"))

	e, ok = g.EdgeFor("A", "run", "vaults")
	require.True(t, ok)
	assert.Equal(t, "IVault", e.To)
}
