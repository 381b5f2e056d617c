package plugins

import (
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
	"github.com/avaloki108/mush-audit-sub001/internal/solidity"
)

// newFinding fills the fields every single-contract heuristic shares.
func newFinding(meta model.RuleMeta, c *model.ContractState, fn *model.FunctionModel, line int) model.Finding {
	loc := model.Location{Contract: c.Name, Line: line, File: c.Unit}
	if fn != nil {
		loc.Function = fn.Name
	}
	return model.Finding{
		RuleID:     meta.ID,
		Class:      meta.Class,
		Title:      meta.Title,
		Severity:   meta.Severity,
		Locations:  []model.Location{loc},
		Confidence: model.ConfidenceHeuristic,
	}
}

// bodies yields every function of c that has a body.
func bodies(c *model.ContractState) []*model.FunctionModel {
	var out []*model.FunctionModel
	for i := range c.Functions {
		if c.Functions[i].HasBody {
			out = append(out, &c.Functions[i])
		}
	}
	return out
}

// statements splits fn into statements with leading if/while/for/else headers
// removed, so the remainder is what executes unconditionally after the header.
// The header is returned separately.
func statements(fn *model.FunctionModel) (heads, rests [][]model.Token) {
	for _, st := range solidity.Statements(fn.Body) {
		head, rest := splitHeader(st)
		heads = append(heads, head)
		rests = append(rests, rest)
	}
	return heads, rests
}

func splitHeader(st []model.Token) ([]model.Token, []model.Token) {
	i := 0
	for i < len(st) {
		switch st[i].Text {
		case "else", "do", "unchecked":
			i++
			continue
		case "if", "while", "for":
			if i+1 < len(st) && st[i+1].Is("(") {
				if end := closeParen(st, i+1); end > 0 {
					i = end + 1
					continue
				}
			}
		}
		break
	}
	return st[:i], st[i:]
}

func closeParen(toks []model.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// hasSeq reports whether toks contains the given token texts consecutively,
// returning the index of the first.
func hasSeq(toks []model.Token, seq ...string) (int, bool) {
outer:
	for i := 0; i+len(seq) <= len(toks); i++ {
		for j, s := range seq {
			if !toks[i+j].Is(s) {
				continue outer
			}
		}
		return i, true
	}
	return -1, false
}

// resultDiscarded reports whether the statement is a bare expression whose
// value is neither assigned, returned, nor checked.
func resultDiscarded(st []model.Token) bool {
	if len(st) == 0 {
		return false
	}
	switch st[0].Text {
	case "require", "assert", "return", "revert", "emit", "(", "bool", "!":
		return false
	}
	for _, t := range st {
		switch t.Text {
		case "=", "==", "!=", "&&", "||", "?":
			return false
		}
	}
	return true
}

func paramNames(fn *model.FunctionModel) map[string]bool {
	out := map[string]bool{}
	for _, p := range fn.Params {
		if p.Name != "" {
			out[p.Name] = true
		}
	}
	return out
}

func inList(s string, list ...string) bool {
	for _, l := range list {
		if strings.EqualFold(s, l) {
			return true
		}
	}
	return false
}
