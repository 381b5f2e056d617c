package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("R1", "Vault", "withdraw", 10, "balances")
	b := Fingerprint("R1", "Vault", "withdraw", 10, "balances")
	c := Fingerprint("R1", "Vault", "withdraw", 11, "balances")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFindingIDDeterministic(t *testing.T) {
	fp := Fingerprint("R1", "Vault", "deposit", 3, "")
	assert.Equal(t, FindingID(fp), FindingID(fp))
	assert.NotEqual(t, FindingID(fp), FindingID(fp+"x"))
}

func TestExtractSnippet(t *testing.T) {
	content := "l1\nl2\nl3\nl4\nl5\nl6\nl7"
	assert.Equal(t, "  3 | l3\n> 4 | l4\n  5 | l5", ExtractSnippet(content, 4, 4, 2))
	assert.Equal(t, "> 1 | l1\n  2 | l2", ExtractSnippet(content, 1, 1, 2))
	assert.Equal(t, "   8 | l8\n>  9 | l9\n> 10 | l10", ExtractSnippet(content+"\nl8\nl9\nl10", 9, 12, 2))
	assert.Empty(t, ExtractSnippet(content, 40, 40, 2))
	assert.Empty(t, ExtractSnippet("", 1, 1, 2))
}
