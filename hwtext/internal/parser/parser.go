package parser

import (
	"strconv"
	"strings"

	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext/internal/token"
)

type Parser struct {
	design *hw.Design
	// values maps %names to values within the module being parsed.
	values map[string]hw.ValueID
	// pending holds forward references not yet defined, with the line of
	// their first use.
	pending map[string]int
	tokens  []token.Token
	pos     int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse reads a whole design and infers the result types that depend on
// operands or on modules declared later in the text.
func (p *Parser) Parse() (*hw.Design, error) {
	p.design = hw.NewDesign()
	if err := p.parseDesign(); err != nil {
		return nil, err
	}
	inferTypes(p.design)
	return p.design, nil
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) *token.Token {
	if p.pos+n >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos+n]
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) line() int {
	if t := p.peek(); t != nil {
		return t.Line
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Line
	}
	return 1
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, errors.ParseFailed(p.line(), "unexpected end of input, expected %v", typ)
	}
	if t.Type != typ {
		return nil, errors.ParseFailed(t.Line, "expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

func (p *Parser) expectKeyword(kw string) error {
	t, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if t.Value != kw {
		return errors.ParseFailed(t.Line, "expected '%s', got %q", kw, t.Value)
	}
	return nil
}

func (p *Parser) atRParen() bool {
	t := p.peek()
	return t != nil && t.Type == token.RParen
}

func (p *Parser) parseDesign() error {
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	if err := p.expectKeyword("design"); err != nil {
		return err
	}
	for !p.atRParen() {
		if p.peek() == nil {
			return errors.ParseFailed(p.line(), "unexpected end of input")
		}
		if err := p.parseModule(); err != nil {
			return err
		}
	}
	p.next()
	if t := p.peek(); t != nil {
		return errors.ParseFailed(t.Line, "unexpected %q after design", t.Value)
	}
	return nil
}

func (p *Parser) parseModule() error {
	if _, err := p.expect(token.LParen); err != nil {
		return err
	}
	kw, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	var kind hw.ModuleKind
	switch kw.Value {
	case "module":
		kind = hw.Definition
	case "extern":
		kind = hw.Extern
	case "fixed":
		kind = hw.Fixed
	default:
		return errors.ParseFailed(kw.Line, "expected 'module', 'extern' or 'fixed', got %q", kw.Value)
	}
	name, err := p.expect(token.Symbol)
	if err != nil {
		return err
	}

	var ports []hw.Port
	hasBody := false
	for !p.atRParen() {
		if head := p.peekAt(1); head != nil && head.Type == token.Ident && head.Value == "body" {
			if kind != hw.Definition {
				return errors.ParseFailed(head.Line, "%s module $%s cannot have a body", kind, name.Value)
			}
			hasBody = true
			break
		}
		open, err := p.expect(token.LParen)
		if err != nil {
			return err
		}
		head, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		if head.Value != "input" && head.Value != "output" {
			return errors.ParseFailed(open.Line, "unexpected %q in module", head.Value)
		}
		port, err := p.parsePort(head.Value)
		if err != nil {
			return err
		}
		ports = append(ports, port)
	}

	id, err := p.design.AddModule(name.Value, kind, ports)
	if err != nil {
		if e, ok := errors.As(err); ok {
			e.Phase = errors.PhaseParse
			e.Line = name.Line
		}
		return err
	}

	if hasBody {
		if err := p.parseBody(id); err != nil {
			return err
		}
	}
	if !p.atRParen() {
		return errors.ParseFailed(p.line(), "expected ')' to close module $%s", name.Value)
	}
	p.next()
	return nil
}

func (p *Parser) parsePort(dir string) (hw.Port, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return hw.Port{}, err
	}
	typ, err := p.parseType()
	if err != nil {
		return hw.Port{}, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return hw.Port{}, err
	}
	port := hw.Port{Name: name.Value, Type: typ, Direction: hw.Input}
	if dir == "output" {
		port.Direction = hw.Output
	}
	return port, nil
}

func (p *Parser) parseType() (hw.Type, error) {
	t := p.next()
	if t == nil {
		return nil, errors.ParseFailed(p.line(), "unexpected end of input, expected type")
	}
	if t.Type == token.Ident {
		if strings.HasPrefix(t.Value, "i") {
			if w, err := strconv.Atoi(t.Value[1:]); err == nil && w > 0 {
				return hw.IntType{Width: w}, nil
			}
		}
		return nil, errors.ParseFailed(t.Line, "unknown type %q", t.Value)
	}
	if t.Type != token.LParen {
		return nil, errors.ParseFailed(t.Line, "expected type, got %q", t.Value)
	}

	head, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	var typ hw.Type
	switch head.Value {
	case "chan":
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		typ = hw.ChannelType{Inner: inner}

	case "array":
		n, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		typ = hw.ArrayType{Elem: elem, Len: n}

	case "bundle":
		var chans []hw.BundledChannel
		seen := make(map[string]bool)
		for !p.atRParen() {
			ch, err := p.parseBundledChannel()
			if err != nil {
				return nil, err
			}
			if seen[ch.Name] {
				return nil, errors.ParseFailed(head.Line, "duplicate channel %q in bundle", ch.Name)
			}
			seen[ch.Name] = true
			chans = append(chans, ch)
		}
		if len(chans) == 0 {
			return nil, errors.ParseFailed(head.Line, "bundle has no channels")
		}
		typ = hw.NewBundleType(chans...)

	default:
		return nil, errors.ParseFailed(head.Line, "unknown type constructor %q", head.Value)
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return typ, nil
}

func (p *Parser) parseBundledChannel() (hw.BundledChannel, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return hw.BundledChannel{}, err
	}
	dir, err := p.expect(token.Ident)
	if err != nil {
		return hw.BundledChannel{}, err
	}
	ch := hw.BundledChannel{}
	switch dir.Value {
	case "to":
		ch.Direction = hw.To
	case "from":
		ch.Direction = hw.From
	default:
		return ch, errors.ParseFailed(dir.Line, "expected 'to' or 'from', got %q", dir.Value)
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return ch, err
	}
	ch.Name = name.Value
	if ch.Type, err = p.parseType(); err != nil {
		return ch, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return ch, err
	}
	return ch, nil
}

func (p *Parser) parseNumber() (int, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(t.Value)
	if err != nil {
		return 0, errors.ParseFailed(t.Line, "invalid number %q", t.Value)
	}
	return n, nil
}

func (p *Parser) parseString() (string, error) {
	t, err := p.expect(token.String)
	if err != nil {
		return "", err
	}
	s, err := strconv.Unquote(`"` + t.Value + `"`)
	if err != nil {
		return "", errors.ParseFailed(t.Line, "invalid string literal %q", t.Value)
	}
	return s, nil
}
