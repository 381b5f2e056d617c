package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/config"
)

const bankSrc = `pragma solidity 0.8.20;
interface IERC20 {
    function transfer(address to, uint256 amount) external returns (bool);
}
contract Bank {
    IERC20 public token;
    mapping(address => uint256) public balances;
    function withdraw(uint256 amount) external {
        require(balances[msg.sender] >= amount, "low");
        token.transfer(msg.sender, amount);
        balances[msg.sender] -= amount;
    }
}`

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "Bank.sol"), []byte(bankSrc), 0o644))
	t.Setenv("MUSH_AUDIT_HISTORY_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("MUSH_AUDIT_LOGGING_LEVEL", "error")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "mush-audit", SilenceUsage: true, SilenceErrors: true}
	AddCommands(root)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScanJSON(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "", "scan", dir, "--format", "json")
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	findings := raw["findings"].([]any)
	require.NotEmpty(t, findings)
	first := findings[0].(map[string]any)
	assert.Equal(t, "Bank", first["location"].(map[string]any)["contract"])
}

func TestScanFailOn(t *testing.T) {
	dir := project(t)
	_, err := execute(t, "", "scan", dir, "--fail-on", "medium")
	assert.Error(t, err)
	_, err = execute(t, "", "scan", dir, "--rules", "SOL-TX-ORIGIN", "--fail-on", "low")
	assert.NoError(t, err)
}

func TestScanRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "", "scan", project(t), "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestScanStdinAndBaseline(t *testing.T) {
	dir := project(t)
	baseline := filepath.Join(dir, "baseline.json")
	out, err := execute(t, bankSrc, "scan", dir, "--stdin", "--name", "Bank.sol", "--write-baseline", baseline)
	require.NoError(t, err)
	assert.Contains(t, out, "Bank.sol")
	require.FileExists(t, baseline)

	out, err = execute(t, "", "scan", dir, "--format", "json", "--baseline", baseline)
	require.NoError(t, err)
	assert.Contains(t, out, `"findings": []`)
}

func TestScanSARIFToFile(t *testing.T) {
	dir := project(t)
	dest := filepath.Join(dir, "report.sarif")
	_, err := execute(t, "", "scan", dir, "--format", "sarif", "--out", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "2.1.0"`)
}

func TestHistoryRoundTrip(t *testing.T) {
	dir := project(t)
	_, err := execute(t, "", "scan", dir, "--history")
	require.NoError(t, err)

	out, err := execute(t, "", "history", "list", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "RISK")
	assert.Contains(t, out, dir)

	out, err = execute(t, "", "history", "show", "1", "--dir", dir, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "Bank")

	_, err = execute(t, "", "history", "show", "x", "--dir", dir)
	assert.Error(t, err)
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "", "init", "--dir", dir)
	require.NoError(t, err)
	cfg, path, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, config.FileName), path)
	assert.Equal(t, config.Default().MaxDepth, cfg.MaxDepth)

	_, err = execute(t, "", "init", "--dir", dir)
	assert.Error(t, err)
	_, err = execute(t, "", "init", "--dir", dir, "--force")
	assert.NoError(t, err)
}

func TestRulesList(t *testing.T) {
	out, err := execute(t, "", "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SOL-XCONTRACT-REENTRANCY")
	assert.Contains(t, out, "XCHAIN-WORMHOLE-GUARDIAN")
}

func TestGraph(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "", "graph", dir, "--flows")
	require.NoError(t, err)
	assert.Contains(t, out, "Bank -> IERC20 via token")
	assert.Contains(t, out, "Unresolved (0)")

	out, err = execute(t, "", "graph", dir, "--json")
	require.NoError(t, err)
	var view graphView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, []string{"IERC20", "Bank"}, view.Nodes)
}
