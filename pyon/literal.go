package pyon

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxDepth bounds container nesting in a payload.
const MaxDepth = 512

// SyntaxError reports a payload that is not a valid literal.
type SyntaxError struct {
	Offset int // byte offset into the payload
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pyon: offset %d: %s", e.Offset, e.Msg)
}

// ParseLiteral decodes a Python-style literal.
//
// The grammar is limited to values: strings (single, double and
// triple quoted, with r/u/b prefixes and adjacent-literal
// concatenation), integers, floats, True/False/None, lists, tuples,
// dicts and sets.  Decoded types are:
//
//	dict        map[string]any (non-string keys use their literal text)
//	list, tuple []any
//	set         []any
//	str, bytes  string
//	int         int64, or *big.Int when it does not fit
//	float       float64
//	bool        bool
//	None        nil
func ParseLiteral(src []byte) (any, error) {
	p := &parser{src: src}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q after value", p.src[p.pos])
	}
	return v, nil
}

type parser struct {
	src   []byte
	pos   int
	depth int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() error {
	return &SyntaxError{Offset: p.pos, Msg: "unexpected end of input"}
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

// skipSpace skips whitespace, line continuations and comments.
func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; c {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		case '\\':
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n' {
				p.pos += 2
				continue
			}
			return
		case '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) value() (any, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.eof()
	}
	switch {
	case c == '[':
		return p.container('[', ']')
	case c == '(':
		return p.paren()
	case c == '{':
		return p.brace()
	case c == '\'' || c == '"':
		return p.stringValue()
	case c == '-' || c == '+':
		return p.signed()
	case c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.ident()
	}
	return nil, p.errorf("unexpected %q", c)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return p.errorf("nesting deeper than %d", MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// container parses comma separated values up to close.  A trailing
// comma is allowed.
func (p *parser) container(open, close byte) ([]any, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++ // open
	out := []any{}
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.eof()
		}
		if c == close {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		c, ok = p.peek()
		if !ok {
			return nil, p.eof()
		}
		switch c {
		case ',':
			p.pos++
		case close:
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or %q, got %q", close, c)
		}
	}
}

// paren parses a tuple, or a parenthesised single value.
func (p *parser) paren() (any, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return nil, p.eof()
	}
	if c == ')' {
		p.pos++
		return []any{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	c, ok = p.peek()
	if !ok {
		return nil, p.eof()
	}
	switch c {
	case ')':
		p.pos++
		return first, nil
	case ',':
		rest, err := p.tail(')')
		if err != nil {
			return nil, err
		}
		return append([]any{first}, rest...), nil
	}
	return nil, p.errorf("expected ',' or ')', got %q", c)
}

// tail parses ", v, v ... close" after a first element.
func (p *parser) tail(close byte) ([]any, error) {
	var out []any
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.eof()
		}
		if c == close {
			p.pos++
			return out, nil
		}
		if c != ',' {
			return nil, p.errorf("expected ',' or %q, got %q", close, c)
		}
		p.pos++
		p.skipSpace()
		c, ok = p.peek()
		if !ok {
			return nil, p.eof()
		}
		if c == close {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// brace parses a dict or a set.
func (p *parser) brace() (any, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return nil, p.eof()
	}
	if c == '}' {
		p.pos++
		return map[string]any{}, nil
	}

	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	c, ok = p.peek()
	if !ok {
		return nil, p.eof()
	}
	if c != ':' {
		if err := checkHashable(first); err != nil {
			return nil, p.errorf("%v", err)
		}
		rest, err := p.tail('}')
		if err != nil {
			return nil, err
		}
		return append([]any{first}, rest...), nil
	}

	out := map[string]any{}
	key := first
	for {
		p.pos++ // ':'
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		ks, err := keyString(key)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		out[ks] = v

		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.eof()
		}
		switch c {
		case '}':
			p.pos++
			return out, nil
		case ',':
			p.pos++
		default:
			return nil, p.errorf("expected ',' or '}', got %q", c)
		}

		p.skipSpace()
		c, ok = p.peek()
		if !ok {
			return nil, p.eof()
		}
		if c == '}' {
			p.pos++
			return out, nil
		}
		if key, err = p.value(); err != nil {
			return nil, err
		}
		p.skipSpace()
		c, ok = p.peek()
		if !ok {
			return nil, p.eof()
		}
		if c != ':' {
			return nil, p.errorf("expected ':', got %q", c)
		}
	}
}

func checkHashable(v any) error {
	if _, ok := v.(map[string]any); ok {
		return fmt.Errorf("unhashable dict")
	}
	return nil
}

func keyString(k any) (string, error) {
	if err := checkHashable(k); err != nil {
		return "", err
	}
	if s, ok := k.(string); ok {
		return s, nil
	}
	b, err := FormatLiteral(k)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ── identifiers ──────────────────────────────────────────────────────

func (p *parser) ident() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	word := string(p.src[start:p.pos])

	// String prefixes: r, u, b and their combinations.
	if c, ok := p.peek(); ok && (c == '\'' || c == '"') && isStringPrefix(word) {
		p.pos = start
		return p.stringValue()
	}

	switch word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	}
	p.pos = start
	return nil, p.errorf("unknown name %q", word)
}

func isStringPrefix(w string) bool {
	switch strings.ToLower(w) {
	case "r", "u", "b", "br", "rb", "ur":
		return true
	}
	return false
}

// ── strings ──────────────────────────────────────────────────────────

// stringValue parses one or more adjacent string literals and returns
// their concatenation.
func (p *parser) stringValue() (any, error) {
	var sb strings.Builder
	for {
		if err := p.stringLiteral(&sb); err != nil {
			return nil, err
		}
		save := p.pos
		p.skipSpace()
		if !p.atString() {
			p.pos = save
			return sb.String(), nil
		}
	}
}

func (p *parser) atString() bool {
	i := p.pos
	for i < len(p.src) && i-p.pos < 2 && isIdentPart(p.src[i]) {
		i++
	}
	if i >= len(p.src) || (p.src[i] != '\'' && p.src[i] != '"') {
		return false
	}
	return i == p.pos || isStringPrefix(string(p.src[p.pos:i]))
}

func (p *parser) stringLiteral(sb *strings.Builder) error {
	raw := false
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		if c := p.src[p.pos]; c == 'r' || c == 'R' {
			raw = true
		}
		p.pos++
	}
	q := p.src[p.pos]
	triple := p.pos+2 < len(p.src) && p.src[p.pos+1] == q && p.src[p.pos+2] == q
	if triple {
		p.pos += 3
	} else {
		p.pos++
	}

	for {
		if p.pos >= len(p.src) {
			return p.eof()
		}
		c := p.src[p.pos]
		switch {
		case c == q && !triple:
			p.pos++
			return nil
		case c == q && p.pos+2 < len(p.src) && p.src[p.pos+1] == q && p.src[p.pos+2] == q:
			p.pos += 3
			return nil
		case c == '\n' && !triple:
			return p.errorf("newline in string")
		case c == '\\':
			if raw {
				if p.pos+1 >= len(p.src) {
					return p.eof()
				}
				sb.WriteByte(c)
				sb.WriteByte(p.src[p.pos+1])
				p.pos += 2
				continue
			}
			if err := p.escape(sb); err != nil {
				return err
			}
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
}

func (p *parser) escape(sb *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.eof()
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\n':
		// line continuation
	case '\\', '\'', '"':
		sb.WriteByte(c)
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'v':
		sb.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		n := int(c - '0')
		for i := 0; i < 2 && p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '7'; i++ {
			n = n*8 + int(p.src[p.pos]-'0')
			p.pos++
		}
		sb.WriteRune(rune(n))
	case 'x':
		r, err := p.hexDigits(2)
		if err != nil {
			return err
		}
		sb.WriteRune(r)
	case 'u':
		r, err := p.hexDigits(4)
		if err != nil {
			return err
		}
		sb.WriteRune(r)
	case 'U':
		r, err := p.hexDigits(8)
		if err != nil {
			return err
		}
		if !utf8.ValidRune(r) {
			return p.errorf("invalid code point %U", r)
		}
		sb.WriteRune(r)
	default:
		// Unknown escapes are kept verbatim.
		sb.WriteByte('\\')
		sb.WriteByte(c)
	}
	return nil
}

func (p *parser) hexDigits(n int) (rune, error) {
	if p.pos+n > len(p.src) {
		return 0, p.eof()
	}
	v, err := strconv.ParseUint(string(p.src[p.pos:p.pos+n]), 16, 32)
	if err != nil {
		return 0, p.errorf("invalid escape digits %q", p.src[p.pos:p.pos+n])
	}
	p.pos += n
	return rune(v), nil
}

// ── numbers ──────────────────────────────────────────────────────────

func (p *parser) signed() (any, error) {
	neg := p.src[p.pos] == '-'
	p.pos++
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return nil, p.eof()
	}
	if c != '.' && !isDigit(c) {
		return nil, p.errorf("expected number after sign, got %q", c)
	}
	v, err := p.number()
	if err != nil || !neg {
		return v, err
	}
	switch n := v.(type) {
	case int64:
		return -n, nil
	case *big.Int:
		n.Neg(n)
		if n.IsInt64() {
			return n.Int64(), nil
		}
		return n, nil
	case float64:
		return -n, nil
	}
	return v, nil
}

func (p *parser) number() (any, error) {
	start := p.pos
	hex := false
	if p.pos+1 < len(p.src) && p.src[p.pos] == '0' {
		switch p.src[p.pos+1] {
		case 'x', 'X':
			hex = true
		}
	}
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isDigit(c), isLetter(c), c == '.', c == '_':
		case (c == '+' || c == '-') && !hex && p.pos > start &&
			(p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'):
		default:
			break scan
		}
		p.pos++
	}
	lit := string(p.src[start:p.pos])
	v, err := parseNumber(lit)
	if err != nil {
		p.pos = start
		return nil, p.errorf("invalid number %q", lit)
	}
	return v, nil
}

func parseNumber(lit string) (any, error) {
	s := strings.TrimRight(lit, "lL")
	s, err := stripUnderscores(s)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, fmt.Errorf("empty number")
	}

	lower := strings.ToLower(s)
	isPrefixed := len(lower) > 1 && lower[0] == '0' && strings.ContainsAny(lower[1:2], "xob")
	if !isPrefixed && strings.ContainsAny(lower, ".e") {
		if len(s) != len(lit) {
			return nil, fmt.Errorf("long suffix on float")
		}
		return strconv.ParseFloat(s, 64)
	}
	if !isPrefixed && len(s) > 1 && s[0] == '0' {
		// Legacy octal, as in 0755.
		s = "0o" + strings.TrimLeft(s, "0")
		if s == "0o" {
			return int64(0), nil
		}
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n, nil
	}
	b, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", lit)
	}
	return b, nil
}

// stripUnderscores removes digit separators, rejecting misplaced ones.
func stripUnderscores(s string) (string, error) {
	if !strings.Contains(s, "_") {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			sb.WriteByte(s[i])
			continue
		}
		if i == 0 || i == len(s)-1 || !isHexDigit(s[i-1]) && s[i-1] != 'x' && s[i-1] != 'o' && s[i-1] != 'b' ||
			!isHexDigit(s[i+1]) {
			return "", fmt.Errorf("misplaced underscore")
		}
	}
	return sb.String(), nil
}

// ── character classes ────────────────────────────────────────────────

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func isHexDigit(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func isIdentStart(c byte) bool { return isLetter(c) || c == '_' }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
