package solidity

import (
	"fmt"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// longest operators first
var punctuators = []string{
	">>>=", "<<=", ">>=", ">>>",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "*=", "/=", "%=", "|=", "&=", "^=",
	"<<", ">>", "++", "--", "**", "->",
}

// Tokenize splits Solidity source into identifiers, numbers, strings and punctuation,
// dropping comments and whitespace. Unterminated strings or block comments are errors.
func Tokenize(src string) ([]model.Token, error) {
	var toks []model.Token
	line := 1
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return toks, fmt.Errorf("line %d: unterminated block comment", line)
			}
			line += strings.Count(src[i:i+2+end], "\n")
			i += end + 4
		case c == '"' || c == '\'':
			start, startLine := i, line
			i++
			for i < n && src[i] != c {
				if src[i] == '\\' && i+1 < n {
					i++
				}
				if src[i] == '\n' {
					line++
				}
				i++
			}
			if i >= n {
				return toks, fmt.Errorf("line %d: unterminated string literal", startLine)
			}
			i++
			toks = append(toks, model.Token{Kind: model.TokenString, Text: src[start:i], Line: startLine})
		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, model.Token{Kind: model.TokenIdent, Text: src[start:i], Line: line})
		case isDigit(c) || (c == '.' && i+1 < n && isDigit(src[i+1])):
			start := i
			i++
			for i < n && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, model.Token{Kind: model.TokenNumber, Text: src[start:i], Line: line})
		default:
			text := string(c)
			for _, p := range punctuators {
				if strings.HasPrefix(src[i:], p) {
					text = p
					break
				}
			}
			i += len(text)
			toks = append(toks, model.Token{Kind: model.TokenPunct, Text: text, Line: line})
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// joinTokens renders tokens back to compact source text.
func joinTokens(toks []model.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && needsSpace(toks[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

func needsSpace(prev, cur model.Token) bool {
	if prev.Text == "=>" || cur.Text == "=>" {
		return true
	}
	if prev.Text == "," {
		return true
	}
	wordy := func(t model.Token) bool { return t.Kind != model.TokenPunct }
	return wordy(prev) && wordy(cur)
}
