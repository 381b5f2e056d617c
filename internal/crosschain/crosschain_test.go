package crosschain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

const receiverSrc = `pragma solidity ^0.8.0;
contract Receiver {
    IWormhole public wormhole;
    mapping(bytes32 => bool) public processed;
    function receiveMessage(bytes memory encoded) external {
        (IWormhole.VM memory vm, bool valid, string memory reason) = wormhole.parseAndVerifyVM(encoded);
        require(valid, reason);
        %s
        require(!processed[vm.hash], "replayed");
        processed[vm.hash] = true;
    }
    function ping() external {}
}`

func TestWormholeMissingGuardianCheck(t *testing.T) {
	findings := DetectWormholeVulnerabilities(strings.Replace(receiverSrc, "%s", "", 1))
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, WormholePattern.Meta.ID, f.RuleID)
	assert.Equal(t, "receiveMessage", f.Primary().Function)
	assert.Equal(t, 6, f.Primary().Line)
	assert.Equal(t, model.SeverityHigh, f.Severity)
}

func TestWormholeGuardianCheckSuppresses(t *testing.T) {
	check := `require(vm.guardianSetIndex == wormhole.getCurrentGuardianSetIndex(), "stale guardian set");`
	assert.Empty(t, DetectWormholeVulnerabilities(strings.Replace(receiverSrc, "%s", check, 1)))
}

const claimNone = `contract Claim {
    address public signer;
    function claim(uint256 amount, uint8 v, bytes32 r, bytes32 s) external {
        bytes32 digest = keccak256(abi.encodePacked(msg.sender, amount));
        require(ecrecover(digest, v, r, s) == signer, "bad sig");
        payable(msg.sender).transfer(amount);
    }
}`

const claimNonce = `contract Claim {
    address public signer;
    mapping(address => uint256) public nonces;
    function claim(uint256 amount, uint8 v, bytes32 r, bytes32 s) external {
        bytes32 digest = keccak256(abi.encodePacked(msg.sender, amount, nonces[msg.sender]++));
        require(ecrecover(digest, v, r, s) == signer, "bad sig");
        payable(msg.sender).transfer(amount);
    }
}`

const claimAll = `contract Claim {
    address public signer;
    mapping(address => uint256) public nonces;
    function claim(uint256 amount, uint256 deadline, uint8 v, bytes32 r, bytes32 s) external {
        require(block.timestamp <= deadline, "expired");
        bytes32 digest = keccak256(abi.encodePacked(msg.sender, amount, nonces[msg.sender]++, block.chainid, deadline));
        require(ecrecover(digest, v, r, s) == signer, "bad sig");
        payable(msg.sender).transfer(amount);
    }
}`

const claimHelper = `contract Claim {
    address public signer;
    mapping(address => uint256) public nonces;
    function claim(uint256 amount, uint256 deadline, bytes calldata sig) external {
        bytes32 digest = _digest(amount, deadline);
        require(ECDSA.recover(digest, sig) == signer, "bad sig");
    }
    function _digest(uint256 amount, uint256 deadline) internal returns (bytes32) {
        require(block.timestamp <= deadline, "expired");
        return _hashTypedDataV4(keccak256(abi.encode(msg.sender, amount, nonces[msg.sender]++, deadline)));
    }
}`

func TestSignatureReplayNoProtection(t *testing.T) {
	findings := DetectSignatureReplay(claimNone)
	require.Len(t, findings, 1)
	assert.Equal(t, model.ConfidenceConfirmed, findings[0].Confidence)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
	assert.Equal(t, []string{"missing nonce", "missing chain id", "missing deadline"}, findings[0].Evidence)
}

func TestSignatureReplayPartialProtection(t *testing.T) {
	findings := DetectSignatureReplay(claimNonce)
	require.Len(t, findings, 1)
	assert.Equal(t, model.ConfidenceHeuristic, findings[0].Confidence)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)
	assert.Equal(t, []string{"missing chain id", "missing deadline"}, findings[0].Evidence)
}

func TestSignatureReplayFullProtection(t *testing.T) {
	assert.Empty(t, DetectSignatureReplay(claimAll))
	assert.Empty(t, DetectSignatureReplay(claimHelper))
}

func TestDetectorsAreIndependent(t *testing.T) {
	all, err := solidity.ExtractAll(model.SourceUnit{Name: "Claim.sol", Text: claimNone})
	require.NoError(t, err)
	c := &all[0]
	ctx := context.Background()

	w1, _ := WormholeDetector{}.Analyze(ctx, c)
	s1, _ := SignatureReplayDetector{}.Analyze(ctx, c)
	s2, _ := SignatureReplayDetector{}.Analyze(ctx, c)
	w2, _ := WormholeDetector{}.Analyze(ctx, c)
	assert.Equal(t, w1, w2)
	assert.Equal(t, s1, s2)
	assert.Empty(t, w1)
	assert.Len(t, s1, 1)
}

func TestUnparseableCodeYieldsNothing(t *testing.T) {
	assert.Empty(t, DetectWormholeVulnerabilities("contract {"))
	assert.Empty(t, DetectSignatureReplay(""))
}
