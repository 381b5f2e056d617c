package solidity

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/avaloki108/mush-audit-sub001/internal/model"
)

// ParseWarning means a source unit could not be modeled. The unit is skipped;
// the batch continues.
type ParseWarning struct {
	Unit   string
	Reason string
}

func (w *ParseWarning) Error() string {
	return fmt.Sprintf("parse warning in %s: %s", w.Unit, w.Reason)
}

// Diagnostic converts the warning for the report.
func (w *ParseWarning) Diagnostic() model.Diagnostic {
	return model.Diagnostic{Kind: model.DiagParseWarning, Unit: w.Unit, Message: w.Reason}
}

// ExtractAll models every contract, interface and library declared in the unit.
func ExtractAll(unit model.SourceUnit) ([]model.ContractState, error) {
	name := unitName(unit)
	if strings.TrimSpace(unit.Text) == "" {
		return nil, &ParseWarning{Unit: name, Reason: "empty source"}
	}
	toks, err := Tokenize(unit.Text)
	if err != nil {
		return nil, &ParseWarning{Unit: name, Reason: err.Error()}
	}
	p := &parser{toks: toks, unit: unit, name: name}
	contracts, err := p.parseUnit()
	if err != nil {
		return nil, &ParseWarning{Unit: name, Reason: err.Error()}
	}
	if len(contracts) == 0 {
		return nil, &ParseWarning{Unit: name, Reason: "no contract, interface or library declaration found"}
	}
	return contracts, nil
}

// ExtractState models the primary contract of a unit: the one named after the
// file, otherwise the last concrete contract, otherwise the last declaration.
func ExtractState(unit model.SourceUnit) (*model.ContractState, error) {
	all, err := ExtractAll(unit)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(unitName(unit)), filepath.Ext(unitName(unit)))
	for i := range all {
		if all[i].Name == base {
			return &all[i], nil
		}
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Kind == model.KindContract {
			return &all[i], nil
		}
	}
	return &all[len(all)-1], nil
}

func unitName(u model.SourceUnit) string {
	if u.Name != "" {
		return u.Name
	}
	if u.Path != "" {
		return filepath.Base(u.Path)
	}
	return "<input>"
}

type parser struct {
	toks   []model.Token
	pos    int
	unit   model.SourceUnit
	name   string
	pragma string
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek(off int) model.Token {
	if p.pos+off >= len(p.toks) || p.pos+off < 0 {
		return model.Token{}
	}
	return p.toks[p.pos+off]
}

func (p *parser) peekAt(i int) model.Token {
	if i < 0 || i >= len(p.toks) {
		return model.Token{}
	}
	return p.toks[i]
}

func (p *parser) next() model.Token {
	t := p.peek(0)
	p.pos++
	return t
}

func (p *parser) parseUnit() ([]model.ContractState, error) {
	var out []model.ContractState
	for !p.eof() {
		t := p.peek(0)
		switch {
		case t.Is("pragma"):
			start := p.pos
			p.skipTo(";")
			if p.peekAt(start + 1).Is("solidity") {
				p.pragma = pragmaText(p.toks[start+1 : max(start+1, p.pos-1)])
			}
		case t.Is("import"), t.Is("using"), t.Is("error"), t.Is("event"), t.Is("type"):
			p.skipTo(";")
		case t.Is("abstract") && p.peek(1).Is("contract"):
			p.pos += 2
			c, err := p.parseContract(model.KindAbstract)
			if err != nil {
				return out, err
			}
			out = append(out, c)
		case t.Is("contract") || t.Is("interface") || t.Is("library"):
			p.pos++
			c, err := p.parseContract(model.ContractKind(t.Text))
			if err != nil {
				return out, err
			}
			out = append(out, c)
		case t.Is("{"):
			if _, err := p.skipBalanced("{", "}"); err != nil {
				return out, err
			}
		case t.Is("}"):
			return out, fmt.Errorf("line %d: unexpected '}'", t.Line)
		default:
			p.pos++
		}
	}
	return out, nil
}

// pragmaText renders "solidity >=0.8.0 <0.9.0" style directives.
func pragmaText(toks []model.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && (i == 1 || toks[i-1].Kind != model.TokenPunct && t.Kind == model.TokenPunct) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// skipTo advances past the next occurrence of text at nesting depth zero.
func (p *parser) skipTo(text string) {
	depth := 0
	for !p.eof() {
		t := p.next()
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		if depth <= 0 && t.Text == text {
			return
		}
	}
}

// skipBalanced consumes an open/close delimited group starting at the current
// token and returns its inner tokens.
func (p *parser) skipBalanced(open, close string) ([]model.Token, error) {
	if !p.peek(0).Is(open) {
		return nil, fmt.Errorf("line %d: expected %q", p.peek(0).Line, open)
	}
	startLine := p.peek(0).Line
	start := p.pos + 1
	depth := 0
	for !p.eof() {
		t := p.next()
		if t.Is(open) {
			depth++
		} else if t.Is(close) {
			depth--
			if depth == 0 {
				return p.toks[start : p.pos-1], nil
			}
		}
	}
	return nil, fmt.Errorf("line %d: unbalanced %q", startLine, open)
}

func (p *parser) parseContract(kind model.ContractKind) (model.ContractState, error) {
	nameTok := p.next()
	if nameTok.Kind != model.TokenIdent {
		return model.ContractState{}, fmt.Errorf("line %d: expected %s name", nameTok.Line, kind)
	}
	c := model.ContractState{
		Name:   nameTok.Text,
		Kind:   kind,
		Unit:   p.name,
		Path:   p.unit.Path,
		Pragma: p.pragma,
		Line:   nameTok.Line,
	}
	if p.peek(0).Is("is") {
		p.pos++
		for !p.eof() && !p.peek(0).Is("{") {
			t := p.next()
			switch {
			case t.Is("("):
				p.pos--
				if _, err := p.skipBalanced("(", ")"); err != nil {
					return c, err
				}
			case t.Kind == model.TokenIdent && !p.peek(0).Is("."):
				c.Bases = append(c.Bases, t.Text)
			}
		}
	}
	body, err := p.skipBalanced("{", "}")
	if err != nil {
		return c, err
	}
	members := &parser{toks: body, unit: p.unit, name: p.name}
	var pending []pendingFunc
	for !members.eof() {
		if err := members.parseMember(&c, &pending); err != nil {
			return c, err
		}
	}
	// bodies are analyzed once every member is known so forward references resolve
	funcs := map[string]bool{}
	for _, pf := range pending {
		if !pf.modifier {
			funcs[pf.fn.Name] = true
		}
	}
	for _, pf := range pending {
		fn := pf.fn
		if pf.body != nil {
			analyzeBody(&fn, pf.body, &c, funcs)
		}
		if pf.modifier {
			c.Modifiers = append(c.Modifiers, fn)
			continue
		}
		if fn.IsExternallyReachable() && fn.Name != "constructor" && fn.Name != "fallback" && fn.Name != "receive" {
			fn.Selector = Selector(fn, &c)
		}
		c.Functions = append(c.Functions, fn)
	}
	return c, nil
}

type pendingFunc struct {
	fn       model.FunctionModel
	body     []model.Token
	modifier bool
}

func (p *parser) parseMember(c *model.ContractState, pending *[]pendingFunc) error {
	t := p.peek(0)
	switch {
	case t.Is("function"), t.Is("constructor"), t.Is("fallback"), t.Is("receive"):
		fn, body, err := p.parseFunction(c.Kind)
		if err != nil {
			return err
		}
		*pending = append(*pending, pendingFunc{fn: fn, body: body})
	case t.Is("modifier"):
		p.pos++
		name := p.next()
		fn := model.FunctionModel{Name: name.Text, Visibility: "internal", Line: name.Line}
		if p.peek(0).Is("(") {
			params, err := p.skipBalanced("(", ")")
			if err != nil {
				return err
			}
			fn.Params = parseParams(params)
		}
		for !p.eof() && !p.peek(0).Is("{") && !p.peek(0).Is(";") {
			p.pos++
		}
		var body []model.Token
		if p.peek(0).Is("{") {
			b, err := p.skipBalanced("{", "}")
			if err != nil {
				return err
			}
			body = b
			fn.Body = b
			fn.HasBody = true
		} else {
			p.pos++
		}
		*pending = append(*pending, pendingFunc{fn: fn, body: body, modifier: true})
	case t.Is("struct"), t.Is("enum"):
		p.pos++
		name := p.next()
		if t.Is("struct") {
			c.StructNames = append(c.StructNames, name.Text)
		} else {
			c.EnumNames = append(c.EnumNames, name.Text)
		}
		if _, err := p.skipBalanced("{", "}"); err != nil {
			return err
		}
	case t.Is("event"), t.Is("error"), t.Is("using"), t.Is("type"):
		p.skipTo(";")
	case t.Is(";"):
		p.pos++
	default:
		decl, err := p.collectStatement()
		if err != nil {
			return err
		}
		if v, ok := parseStateVar(decl); ok {
			c.StateVariables = append(c.StateVariables, v)
		}
	}
	return nil
}

// collectStatement gathers tokens up to a ';' at depth zero.
func (p *parser) collectStatement() ([]model.Token, error) {
	start := p.pos
	depth := 0
	for !p.eof() {
		t := p.next()
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("line %d: unexpected %q", t.Line, t.Text)
			}
		case ";":
			if depth == 0 {
				return p.toks[start : p.pos-1], nil
			}
		}
	}
	return p.toks[start:p.pos], nil
}

var functionAttributes = map[string]bool{"virtual": true}

func (p *parser) parseFunction(kind model.ContractKind) (model.FunctionModel, []model.Token, error) {
	kw := p.next()
	fn := model.FunctionModel{Line: kw.Line}
	switch {
	case kw.Is("function") && p.peek(0).Kind == model.TokenIdent:
		fn.Name = p.next().Text
	case kw.Is("function"):
		fn.Name = "fallback"
	default:
		fn.Name = kw.Text
	}
	params, err := p.skipBalanced("(", ")")
	if err != nil {
		return fn, nil, err
	}
	fn.Params = parseParams(params)
header:
	for !p.eof() {
		t := p.peek(0)
		switch {
		case t.Is("{"), t.Is(";"):
			break header
		case isVisibility(t.Text):
			fn.Visibility = t.Text
			p.pos++
		case t.Is("view"), t.Is("pure"), t.Is("payable"), t.Is("constant"):
			fn.Mutability = t.Text
			p.pos++
		case t.Is("returns"):
			p.pos++
			rets, err := p.skipBalanced("(", ")")
			if err != nil {
				return fn, nil, err
			}
			fn.Returns = parseParams(rets)
		case t.Is("override"):
			p.pos++
			if p.peek(0).Is("(") {
				if _, err := p.skipBalanced("(", ")"); err != nil {
					return fn, nil, err
				}
			}
		case functionAttributes[t.Text]:
			p.pos++
		case t.Kind == model.TokenIdent:
			p.pos++
			name := t.Text
			for p.peek(0).Is(".") && p.peek(1).Kind == model.TokenIdent {
				name += "." + p.peek(1).Text
				p.pos += 2
			}
			fn.Modifiers = append(fn.Modifiers, name)
			if p.peek(0).Is("(") {
				if _, err := p.skipBalanced("(", ")"); err != nil {
					return fn, nil, err
				}
			}
		default:
			return fn, nil, fmt.Errorf("line %d: unexpected %q in function header", t.Line, t.Text)
		}
	}
	if fn.Visibility == "" {
		if kind == model.KindInterface || fn.Name == "fallback" || fn.Name == "receive" {
			fn.Visibility = "external"
		} else {
			fn.Visibility = "public"
		}
	}
	if p.eof() {
		return fn, nil, fmt.Errorf("line %d: function %s has no body or terminator", fn.Line, fn.Name)
	}
	if p.peek(0).Is(";") {
		p.pos++
		return fn, nil, nil
	}
	body, err := p.skipBalanced("{", "}")
	if err != nil {
		return fn, nil, err
	}
	fn.HasBody = true
	fn.Body = body
	return fn, body, nil
}

func isVisibility(s string) bool {
	switch s {
	case "public", "external", "internal", "private":
		return true
	}
	return false
}

var dataLocations = map[string]bool{"memory": true, "storage": true, "calldata": true}

// parseParams splits a parameter list into typed, optionally named params.
func parseParams(toks []model.Token) []model.Param {
	var out []model.Param
	for _, part := range splitTopLevel(toks, ",") {
		if len(part) == 0 {
			continue
		}
		typeEnd := typeLength(part)
		if typeEnd == 0 {
			continue
		}
		prm := model.Param{Type: joinTokens(part[:typeEnd])}
		for _, t := range part[typeEnd:] {
			switch {
			case dataLocations[t.Text]:
				prm.Location = t.Text
			case t.Is("indexed"), t.Is("payable"):
			case t.Kind == model.TokenIdent:
				prm.Name = t.Text
			}
		}
		out = append(out, prm)
	}
	return out
}

// splitTopLevel splits tokens on sep at nesting depth zero.
func splitTopLevel(toks []model.Token, sep string) [][]model.Token {
	var out [][]model.Token
	depth, start := 0, 0
	for i, t := range toks {
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		if depth == 0 && t.Text == sep {
			out = append(out, toks[start:i])
			start = i + 1
		}
	}
	if start <= len(toks) {
		out = append(out, toks[start:])
	}
	return out
}

// typeLength returns how many leading tokens form a type name:
// mapping(...), qualified identifiers, `address payable`, `function(...)` and array suffixes.
func typeLength(toks []model.Token) int {
	if len(toks) == 0 || toks[0].Kind != model.TokenIdent {
		return 0
	}
	i := 1
	if toks[0].Is("mapping") || toks[0].Is("function") {
		if i >= len(toks) || !toks[i].Is("(") {
			return 0
		}
		end := matchClose(toks, i)
		if end < 0 {
			return 0
		}
		i = end + 1
		if toks[0].Is("function") {
			for i < len(toks) && toks[i].Kind == model.TokenIdent && (isVisibility(toks[i].Text) || toks[i].Is("view") || toks[i].Is("pure") || toks[i].Is("payable")) {
				i++
			}
			if i < len(toks) && toks[i].Is("returns") && i+1 < len(toks) {
				if end := matchClose(toks, i+1); end > 0 {
					i = end + 1
				}
			}
		}
	} else {
		for i+1 < len(toks) && toks[i].Is(".") && toks[i+1].Kind == model.TokenIdent {
			i += 2
		}
		if toks[0].Is("address") && i < len(toks) && toks[i].Is("payable") {
			i++
		}
	}
	for i < len(toks) && toks[i].Is("[") {
		end := matchClose(toks, i)
		if end < 0 {
			return i
		}
		i = end + 1
	}
	return i
}

// matchClose returns the index of the delimiter closing toks[open], or -1.
func matchClose(toks []model.Token, open int) int {
	pairs := map[string]string{"(": ")", "[": "]", "{": "}"}
	closeText, ok := pairs[toks[open].Text]
	if !ok {
		return -1
	}
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Text {
		case toks[open].Text:
			depth++
		case closeText:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var variableAttributes = map[string]bool{
	"public": true, "private": true, "internal": true, "external": true,
	"constant": true, "immutable": true, "transient": true, "override": true,
}

func parseStateVar(decl []model.Token) (model.StateVariable, bool) {
	typeEnd := typeLength(decl)
	if typeEnd == 0 || typeEnd >= len(decl) {
		return model.StateVariable{}, false
	}
	v := model.StateVariable{Type: joinTokens(decl[:typeEnd]), Visibility: "internal", Line: decl[0].Line}
	for i := typeEnd; i < len(decl); i++ {
		t := decl[i]
		if t.Is("=") {
			break
		}
		if t.Is("(") {
			if end := matchClose(decl, i); end > 0 {
				i = end
			}
			continue
		}
		if t.Kind != model.TokenIdent {
			return model.StateVariable{}, false
		}
		if variableAttributes[t.Text] {
			switch t.Text {
			case "constant":
				v.Constant = true
			case "immutable":
				v.Immutable = true
			case "override":
			default:
				v.Visibility = t.Text
			}
			continue
		}
		if v.Name == "" {
			v.Name = t.Text
		}
	}
	if v.Name == "" {
		return model.StateVariable{}, false
	}
	return v, true
}
