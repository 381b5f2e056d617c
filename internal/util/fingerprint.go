package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// findingNamespace scopes name-based finding IDs to this tool.
var findingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/avaloki108/mush-audit/finding"))

// Fingerprint computes a stable hash for a finding key
func Fingerprint(ruleID, contract, function string, line int, context string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s", ruleID, contract, function, line, context)
	return hex.EncodeToString(h.Sum(nil))
}

// FindingID derives a deterministic UUID from a fingerprint so repeated runs on the
// same input produce the same IDs.
func FindingID(fingerprint string) string {
	return uuid.NewSHA1(findingNamespace, []byte(fingerprint)).String()
}

// Stamp sets Fingerprint and ID from the rule and primary location of f.
func Stamp(f *model.Finding, context string) {
	loc := f.Primary()
	f.Fingerprint = Fingerprint(f.RuleID, loc.Contract, loc.Function, loc.Line, context)
	f.ID = FindingID(f.Fingerprint)
}
