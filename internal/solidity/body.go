package solidity

import (
	"sort"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"|=": true, "&=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
}

// lowLevelMethods move value or control to an arbitrary address.
var lowLevelMethods = map[string]bool{
	"call": true, "delegatecall": true, "staticcall": true, "send": true, "transfer": true,
	"sendValue": true, "functionCall": true, "functionCallWithValue": true,
	"functionDelegateCall": true, "functionStaticCall": true,
}

var builtinReceivers = map[string]bool{
	"abi": true, "block": true, "bytes": true, "string": true, "type": true, "msg": true, "tx": true,
}

var builtinFunctions = map[string]bool{
	"require": true, "assert": true, "revert": true, "keccak256": true, "sha256": true, "ripemd160": true,
	"ecrecover": true, "addmod": true, "mulmod": true, "blockhash": true, "blobhash": true, "gasleft": true,
	"selfdestruct": true, "suicide": true, "payable": true, "type": true, "sha3": true, "if": true,
	"while": true, "for": true, "return": true, "returns": true, "catch": true, "try": true,
}

// statement keywords that never start a declaration
var statementKeywords = map[string]bool{
	"return": true, "emit": true, "delete": true, "revert": true, "new": true, "else": true,
	"if": true, "for": true, "while": true, "do": true, "unchecked": true, "throw": true,
	"break": true, "continue": true, "assembly": true, "try": true, "catch": true, "_": true,
}

type bodyAnalyzer struct {
	fn       *model.FunctionModel
	contract *model.ContractState
	funcs    map[string]bool
	locals   map[string]string
	aliases  map[string]string
}

// analyzeBody fills fn.CallSites and fn.Effects from the body tokens.
func analyzeBody(fn *model.FunctionModel, body []model.Token, c *model.ContractState, funcs map[string]bool) {
	a := &bodyAnalyzer{
		fn:       fn,
		contract: c,
		funcs:    funcs,
		locals:   map[string]string{},
		aliases:  map[string]string{},
	}
	for _, p := range append(append([]model.Param(nil), fn.Params...), fn.Returns...) {
		if p.Name != "" {
			a.locals[p.Name] = p.Type
		}
	}
	for _, st := range splitStatements(body) {
		a.statement(st)
	}
}

// Statements splits a function body into the flat statements effect
// extraction works on.
func Statements(body []model.Token) [][]model.Token { return splitStatements(body) }

// splitStatements cuts a block into flat statements. Block braces end the
// preceding header (if/else/for/unchecked); call-option braces do not.
// Inline assembly is skipped.
func splitStatements(toks []model.Token) [][]model.Token {
	var out [][]model.Token
	flush := func(from, to int) {
		if to > from {
			out = append(out, toks[from:to])
		}
	}
	depth, options, start := 0, 0, 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Text {
		case "(", "[":
			depth++
		case ")", "]":
			depth--
		case "assembly":
			if depth != 0 {
				continue
			}
			flush(start, i)
			j := i + 1
			for j < len(toks) && !toks[j].Is("{") {
				j++
			}
			if j < len(toks) {
				if end := matchClose(toks, j); end > 0 {
					j = end
				}
			}
			i = j
			start = j + 1
		case "{":
			if depth != 0 {
				continue
			}
			if options > 0 || isCallOptions(toks, i) {
				options++
				continue
			}
			flush(start, i)
			start = i + 1
		case "}":
			if depth != 0 {
				continue
			}
			if options > 0 {
				options--
				continue
			}
			flush(start, i)
			start = i + 1
		case ";":
			if depth == 0 && options == 0 {
				flush(start, i)
				start = i + 1
			}
		}
	}
	flush(start, len(toks))
	return out
}

func isCallOptions(toks []model.Token, i int) bool {
	if i < 2 || toks[i-1].Kind != model.TokenIdent {
		return false
	}
	return toks[i-2].Is(".") || toks[i-2].Is("new")
}

type writeTarget struct {
	variable string
	compound bool
}

type event struct {
	pos    int
	effect model.Effect
}

func (a *bodyAnalyzer) statement(st []model.Token) {
	if len(st) == 0 {
		return
	}
	skip := map[int]bool{}
	if st[0].Is("for") && len(st) > 2 && st[1].Is("(") {
		if end := matchClose(st, 1); end > 0 {
			inner := st[2:end]
			if parts := splitTopLevel(inner, ";"); len(parts) > 0 {
				a.declare(parts[0], 2, skip)
			}
		}
	} else {
		a.declare(st, 0, skip)
	}

	targets := a.writeTargets(st, skip)
	var events []event
	var writes []event
	for i, t := range st {
		if t.Kind != model.TokenIdent || skip[i] {
			continue
		}
		member := i > 0 && st[i-1].Is(".")
		if v, ok := a.stateRef(t.Text); ok && !member {
			if wt, isTarget := targets[i]; isTarget {
				if wt.compound {
					events = append(events, event{pos: i, effect: model.Effect{Kind: model.EffectStateRead, Variable: v, CallSite: -1, Line: t.Line}})
				}
				writes = append(writes, event{pos: i, effect: model.Effect{Kind: model.EffectStateWrite, Variable: v, CallSite: -1, Line: t.Line}})
			} else {
				events = append(events, event{pos: i, effect: model.Effect{Kind: model.EffectStateRead, Variable: v, CallSite: -1, Line: t.Line}})
			}
		}
		if ev, ok := a.call(st, i); ok {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].pos < events[j].pos })
	for _, ev := range append(events, writes...) {
		a.addEffect(ev.effect)
	}
}

func (a *bodyAnalyzer) addEffect(e model.Effect) {
	effects := a.fn.Effects
	if n := len(effects); n > 0 && e.Kind == model.EffectStateRead {
		last := effects[n-1]
		if last.Kind == e.Kind && last.Variable == e.Variable {
			return
		}
	}
	a.fn.Effects = append(a.fn.Effects, e)
}

// stateRef maps an identifier to the storage variable it denotes, honoring
// locals that shadow state and storage-pointer aliases.
func (a *bodyAnalyzer) stateRef(name string) (string, bool) {
	if v, ok := a.aliases[name]; ok {
		return v, true
	}
	if _, ok := a.locals[name]; ok {
		return "", false
	}
	v, ok := a.contract.Variable(name)
	if !ok || v.Constant || v.Immutable {
		return "", false
	}
	return v.Name, true
}

// declare registers local variable declarations found at the start of st.
func (a *bodyAnalyzer) declare(st []model.Token, offset int, skip map[int]bool) {
	if len(st) == 0 || statementKeywords[st[0].Text] {
		return
	}
	if st[0].Is("(") {
		end := matchClose(st, 0)
		if end < 0 || end+1 >= len(st) || !st[end+1].Is("=") {
			return
		}
		pos := 1
		for _, part := range splitTopLevel(st[1:end], ",") {
			if name, idx, _, ok := declaredName(part); ok {
				a.locals[name] = joinTokens(part[:typeLength(part)])
				skip[offset+pos+idx] = true
			}
			pos += len(part) + 1
		}
		return
	}
	name, idx, location, ok := declaredName(st)
	if !ok {
		return
	}
	typ := joinTokens(st[:typeLength(st)])
	delete(a.aliases, name)
	a.locals[name] = typ
	skip[offset+idx] = true
	if location == "storage" && idx+2 < len(st) && st[idx+1].Is("=") {
		if rhs := st[idx+2]; rhs.Kind == model.TokenIdent {
			if v, ok := a.stateRef(rhs.Text); ok {
				a.aliases[name] = v
			}
		}
	}
}

// declaredName recognizes `Type [location] name [= ...]`.
func declaredName(st []model.Token) (string, int, string, bool) {
	n := typeLength(st)
	if n == 0 || n >= len(st) || statementKeywords[st[0].Text] {
		return "", 0, "", false
	}
	i := n
	location := ""
	if dataLocations[st[i].Text] {
		location = st[i].Text
		i++
	}
	if i >= len(st) || st[i].Kind != model.TokenIdent {
		return "", 0, "", false
	}
	if i+1 < len(st) && !st[i+1].Is("=") {
		return "", 0, "", false
	}
	return st[i].Text, i, location, true
}

// writeTargets maps the token index of each written base identifier.
func (a *bodyAnalyzer) writeTargets(st []model.Token, skip map[int]bool) map[int]writeTarget {
	out := map[int]writeTarget{}
	mark := func(base int, compound bool) {
		if base < 0 || base >= len(st) || skip[base] || st[base].Kind != model.TokenIdent {
			return
		}
		if v, ok := a.stateRef(st[base].Text); ok {
			prev := out[base]
			out[base] = writeTarget{variable: v, compound: compound || prev.compound}
		}
	}
	for j, t := range st {
		switch {
		case assignOps[t.Text]:
			if j == 0 {
				continue
			}
			if st[j-1].Is(")") {
				open := matchOpen(st, j-1)
				if open < 0 || (open > 0 && st[open-1].Kind == model.TokenIdent) {
					continue
				}
				pos := open + 1
				for _, part := range splitTopLevel(st[open+1:j-1], ",") {
					if len(part) > 0 {
						mark(chainBase(st, pos+len(part)-1), false)
					}
					pos += len(part) + 1
				}
				continue
			}
			mark(chainBase(st, j-1), t.Text != "=")
		case t.Is("++"), t.Is("--"):
			if j > 0 && (st[j-1].Kind == model.TokenIdent || st[j-1].Is("]")) {
				mark(chainBase(st, j-1), true)
			} else if j+1 < len(st) {
				mark(j+1, true)
			}
		case t.Is("delete"):
			mark(j+1, false)
		case (t.Is("push") || t.Is("pop")) && j >= 2 && st[j-1].Is(".") && j+1 < len(st) && st[j+1].Is("("):
			mark(chainBase(st, j-2), true)
		}
	}
	return out
}

// chainBase walks left over `x[...]`, `.member` and returns the base identifier index.
func chainBase(st []model.Token, k int) int {
	for k >= 0 {
		switch {
		case st[k].Is("]"):
			open := matchOpen(st, k)
			if open < 0 {
				return -1
			}
			k = open - 1
		case st[k].Kind == model.TokenIdent:
			if k >= 2 && st[k-1].Is(".") {
				k -= 2
				continue
			}
			return k
		default:
			return -1
		}
	}
	return -1
}

// receiverStart walks left from the token before a '.' over member chains,
// index expressions, casts and calls, returning where the receiver begins.
func receiverStart(st []model.Token, k int) int {
	for k >= 0 {
		t := st[k]
		switch {
		case t.Is("]") || t.Is(")"):
			open := matchOpen(st, k)
			if open < 0 {
				return k + 1
			}
			if t.Is(")") && (open == 0 || st[open-1].Kind != model.TokenIdent) {
				return open
			}
			k = open - 1
		case t.Kind == model.TokenIdent:
			if k >= 2 && st[k-1].Is(".") {
				k -= 2
				continue
			}
			return k
		default:
			return k + 1
		}
	}
	return 0
}

// matchOpen returns the index of the delimiter opening toks[closeIdx], or -1.
func matchOpen(toks []model.Token, closeIdx int) int {
	pairs := map[string]string{")": "(", "]": "[", "}": "{"}
	openText, ok := pairs[toks[closeIdx].Text]
	if !ok {
		return -1
	}
	depth := 0
	for i := closeIdx; i >= 0; i-- {
		switch toks[i].Text {
		case toks[closeIdx].Text:
			depth++
		case openText:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// call recognizes a call whose callee name is st[i] and records its call site.
// The returned event sits at the closing parenthesis so argument reads come first.
func (a *bodyAnalyzer) call(st []model.Token, i int) (event, bool) {
	argsOpen := i + 1
	if argsOpen < len(st) && st[argsOpen].Is("{") && i >= 1 && st[i-1].Is(".") {
		end := matchClose(st, argsOpen)
		if end < 0 {
			return event{}, false
		}
		argsOpen = end + 1
	}
	if argsOpen >= len(st) || !st[argsOpen].Is("(") {
		return event{}, false
	}
	argsClose := matchClose(st, argsOpen)
	if argsClose < 0 {
		return event{}, false
	}
	method := st[i].Text
	args := countArgs(st[argsOpen+1 : argsClose])
	line := st[i].Line

	if i >= 2 && st[i-1].Is(".") {
		rs := receiverStart(st, i-2)
		if rs < 0 || rs > i-2 {
			return event{}, false
		}
		recv := st[rs : i-1]
		cs := a.classifyMember(recv, method, args)
		if cs.Kind == "" {
			return event{}, false
		}
		cs.Expression = joinTokens(st[rs:argsOpen])
		cs.Line = line
		return a.record(cs, argsClose)
	}
	if i >= 1 && (st[i-1].Is("emit") || st[i-1].Is("new") || st[i-1].Is("revert") || st[i-1].Is("function")) {
		return event{}, false
	}
	if _, isLocal := a.locals[method]; isLocal {
		return event{}, false
	}
	// unknown lowercase callees are taken as inherited functions
	if !a.funcs[method] && (builtinFunctions[method] || isTypeName(method) || IsElementaryType(method)) {
		return event{}, false
	}
	return a.record(model.CallSite{Expression: method, Method: method, Kind: model.CallInternal, Args: args, Line: line}, argsClose)
}

func (a *bodyAnalyzer) record(cs model.CallSite, pos int) (event, bool) {
	idx := len(a.fn.CallSites)
	a.fn.CallSites = append(a.fn.CallSites, cs)
	var kind model.EffectKind
	switch cs.Kind {
	case model.CallExternal, model.CallLowLevel:
		kind = model.EffectExternalCall
	case model.CallInternal:
		kind = model.EffectInternalCall
	default:
		return event{}, false
	}
	return event{pos: pos, effect: model.Effect{Kind: kind, CallSite: idx, Line: cs.Line}}, true
}

func countArgs(toks []model.Token) int {
	if len(toks) == 0 {
		return 0
	}
	return len(splitTopLevel(toks, ","))
}

// classifyMember decides what `recv.method(...)` calls. An empty Kind means
// the expression is a builtin and not a call site.
func (a *bodyAnalyzer) classifyMember(recv []model.Token, method string, args int) model.CallSite {
	cs := model.CallSite{Method: method, Args: args, Receiver: joinTokens(recv)}
	base := recv[0]
	if base.Kind != model.TokenIdent {
		cs.Kind = model.CallExternal
		return cs
	}
	isCast := len(recv) > 1 && recv[1].Is("(") && matchClose(recv, 1) == len(recv)-1
	simple := len(recv) == 1 || (!isCast && allIndexGroups(recv[1:]))
	switch {
	case base.Is("super"), base.Is("this"):
		cs.Kind = model.CallInternal
		return cs
	case builtinReceivers[base.Text]:
		full := joinTokens(recv)
		if (full == "msg.sender" || full == "tx.origin") && lowLevelMethods[method] {
			cs.Kind = model.CallLowLevel
			cs.ReceiverType = "address"
		}
		return cs
	case isCast:
		switch {
		case base.Is("address"), base.Is("payable"):
			cs.ReceiverType = "address"
		case IsElementaryType(base.Text):
			cs.Kind = model.CallLibrary
			return cs
		case isTypeName(base.Text):
			cs.ReceiverType = base.Text
		}
	case simple:
		cs.Receiver = base.Text
		switch {
		case a.aliases[base.Text] != "":
			v, _ := a.contract.Variable(a.aliases[base.Text])
			cs.ReceiverType = ValueType(v.Type)
		case a.locals[base.Text] != "":
			cs.ReceiverType = ValueType(a.locals[base.Text])
		default:
			if v, ok := a.contract.Variable(base.Text); ok {
				cs.ReceiverType = ValueType(v.Type)
			} else if isTypeName(base.Text) {
				// Library.fn(...) or Contract.fn(...) static reference
				if lowLevelMethods[method] && method != "transfer" && method != "send" {
					cs.Kind = model.CallLowLevel
					cs.ReceiverType = "address"
					return cs
				}
				cs.Kind = model.CallLibrary
				cs.ReceiverType = base.Text
				return cs
			}
		}
	}
	cs.Kind = a.kindFor(cs.ReceiverType, method, args)
	return cs
}

func (a *bodyAnalyzer) kindFor(typ, method string, args int) model.CallKind {
	switch {
	case typ == "":
		if method == "transfer" && args == 1 {
			return model.CallLowLevel
		}
		if lowLevelMethods[method] && method != "transfer" {
			return model.CallLowLevel
		}
		return model.CallExternal
	case typ == "address" || typ == "address payable":
		if lowLevelMethods[method] {
			return model.CallLowLevel
		}
		return model.CallLibrary
	case IsElementaryType(typ), a.contract.DeclaresType(typ):
		return model.CallLibrary
	default:
		return model.CallExternal
	}
}

func allIndexGroups(toks []model.Token) bool {
	for i := 0; i < len(toks); {
		if !toks[i].Is("[") {
			return false
		}
		end := matchClose(toks, i)
		if end < 0 {
			return false
		}
		i = end + 1
	}
	return true
}

func isTypeName(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

// IsElementaryType reports whether typ is a value type rather than a contract reference.
func IsElementaryType(typ string) bool {
	typ = strings.TrimSpace(typ)
	if i := strings.Index(typ, "["); i >= 0 {
		typ = typ[:i]
	}
	switch typ {
	case "address", "address payable", "bool", "string", "bytes", "byte", "uint", "int", "fixed", "ufixed", "function":
		return true
	}
	for _, prefix := range []string{"uint", "int", "bytes", "fixed", "ufixed"} {
		if rest, ok := strings.CutPrefix(typ, prefix); ok && rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			return true
		}
	}
	return strings.HasPrefix(typ, "mapping") || strings.HasPrefix(typ, "function")
}

// ValueType strips mapping keys and array suffixes:
// mapping(address => IStrategy[]) yields IStrategy, at any mapping depth.
func ValueType(typ string) string {
	typ = strings.TrimSpace(typ)
	for strings.HasPrefix(typ, "mapping") {
		i := strings.LastIndex(typ, "=>")
		if i < 0 {
			break
		}
		typ = strings.TrimSpace(strings.TrimRight(typ[i+2:], ") "))
	}
	if i := strings.Index(typ, "["); i >= 0 {
		typ = strings.TrimSpace(typ[:i])
	}
	if i := strings.LastIndex(typ, "."); i >= 0 {
		typ = typ[i+1:]
	}
	return typ
}
