package render

import (
	"fmt"
	"strconv"
	"strings"

	"snowcraft/pkg/errors"
)

// expression is an evaluatable node of a {{ }} or {% %} expression
type expression interface {
	eval(st *renderState) (interface{}, error)
}

type litExpr struct {
	val interface{}
}

func (e litExpr) eval(*renderState) (interface{}, error) {
	return e.val, nil
}

type pathExpr struct {
	segments []string
}

func (e pathExpr) eval(st *renderState) (interface{}, error) {
	return st.lookup(e.segments, strings.Join(e.segments, "."))
}

type listExpr struct {
	items []expression
}

func (e listExpr) eval(st *renderState) (interface{}, error) {
	out := make([]interface{}, len(e.items))
	for i, item := range e.items {
		val, err := item.eval(st)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

type notExpr struct {
	inner expression
}

func (e notExpr) eval(st *renderState) (interface{}, error) {
	val, err := e.inner.eval(st)
	if err != nil {
		return nil, err
	}
	return !truthy(val), nil
}

type binExpr struct {
	op    string
	left  expression
	right expression
}

func (e binExpr) eval(st *renderState) (interface{}, error) {
	left, err := e.left.eval(st)
	if err != nil {
		return nil, err
	}

	switch e.op {
	case "and":
		if !truthy(left) {
			return left, nil
		}
		return e.right.eval(st)
	case "or":
		if truthy(left) {
			return left, nil
		}
		return e.right.eval(st)
	}

	right, err := e.right.eval(st)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "==":
		return scalarEqual(left, right), nil
	case "!=":
		return !scalarEqual(left, right), nil
	}
	return nil, errors.TemplateSyntaxError(fmt.Sprintf("unknown operator %q", e.op), 0)
}

// scalarEqual compares evaluated values without panicking on
// non-comparable types such as lists.
func scalarEqual(a, b interface{}) bool {
	if _, ok := a.([]interface{}); ok {
		return false
	}
	if _, ok := b.([]interface{}); ok {
		return false
	}
	return a == b
}

// condExpr is the inline conditional: value if cond else alt. Without an
// alternative a false condition yields nil, which renders as empty text.
type condExpr struct {
	value expression
	cond  expression
	alt   expression
}

func (e condExpr) eval(st *renderState) (interface{}, error) {
	cond, err := e.cond.eval(st)
	if err != nil {
		return nil, err
	}
	if truthy(cond) {
		return e.value.eval(st)
	}
	if e.alt == nil {
		return nil, nil
	}
	return e.alt.eval(st)
}

// ---- expression lexing ----

type exprTokenKind int

const (
	etIdent exprTokenKind = iota
	etString
	etNumber
	etPunct
	etEOF
)

type exprToken struct {
	kind exprTokenKind
	text string
}

type exprLexer struct {
	src    string
	i      int
	pos    int // template offset for error reporting
	tokens []exprToken
}

func lexExpression(src string, pos int) ([]exprToken, error) {
	l := &exprLexer{src: src, pos: pos}
	for l.i < len(l.src) {
		c := l.src[l.i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.i++
		case c == '\'' || c == '"':
			if err := l.lexString(c); err != nil {
				return nil, err
			}
		case c >= '0' && c <= '9':
			l.lexNumber()
		case isIdentByte(c):
			l.lexIdent()
		case c == '=' || c == '!':
			if l.i+1 >= len(l.src) || l.src[l.i+1] != '=' {
				return nil, errors.TemplateSyntaxError(
					fmt.Sprintf("unexpected character %q in expression", string(c)), pos)
			}
			l.tokens = append(l.tokens, exprToken{etPunct, l.src[l.i : l.i+2]})
			l.i += 2
		case strings.ContainsRune("[](),.", rune(c)):
			l.tokens = append(l.tokens, exprToken{etPunct, string(c)})
			l.i++
		default:
			return nil, errors.TemplateSyntaxError(
				fmt.Sprintf("unexpected character %q in expression", string(c)), pos)
		}
	}
	l.tokens = append(l.tokens, exprToken{etEOF, ""})
	return l.tokens, nil
}

func (l *exprLexer) lexString(quote byte) error {
	start := l.i + 1
	for j := start; j < len(l.src); j++ {
		if l.src[j] == quote {
			l.tokens = append(l.tokens, exprToken{etString, l.src[start:j]})
			l.i = j + 1
			return nil
		}
	}
	return errors.TemplateSyntaxError("unterminated string literal", l.pos)
}

func (l *exprLexer) lexNumber() {
	start := l.i
	for l.i < len(l.src) && (l.src[l.i] >= '0' && l.src[l.i] <= '9' || l.src[l.i] == '.') {
		l.i++
	}
	l.tokens = append(l.tokens, exprToken{etNumber, l.src[start:l.i]})
}

func (l *exprLexer) lexIdent() {
	start := l.i
	for l.i < len(l.src) && isIdentByte(l.src[l.i]) {
		l.i++
	}
	l.tokens = append(l.tokens, exprToken{etIdent, l.src[start:l.i]})
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// ---- expression parsing ----

type exprParser struct {
	tokens []exprToken
	i      int
	pos    int
}

// parseExpression parses one expression string. pos is the template offset
// of the enclosing tag, used for error reporting.
func parseExpression(src string, pos int) (expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.TemplateSyntaxError("empty expression", pos)
	}
	tokens, err := lexExpression(src, pos)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens, pos: pos}
	expr, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != etEOF {
		return nil, errors.TemplateSyntaxError(
			fmt.Sprintf("unexpected %q after expression", p.peek().text), pos)
	}
	return expr, nil
}

func (p *exprParser) peek() exprToken {
	return p.tokens[p.i]
}

func (p *exprParser) next() exprToken {
	tok := p.tokens[p.i]
	if tok.kind != etEOF {
		p.i++
	}
	return tok
}

func (p *exprParser) acceptIdent(word string) bool {
	if p.peek().kind == etIdent && p.peek().text == word {
		p.i++
		return true
	}
	return false
}

func (p *exprParser) acceptPunct(text string) bool {
	if p.peek().kind == etPunct && p.peek().text == text {
		p.i++
		return true
	}
	return false
}

func (p *exprParser) parseCond() (expression, error) {
	value, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.acceptIdent("if") {
		return value, nil
	}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	var alt expression
	if p.acceptIdent("else") {
		alt, err = p.parseCond()
		if err != nil {
			return nil, err
		}
	}
	return condExpr{value, cond, alt}, nil
}

func (p *exprParser) parseOr() (expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binExpr{"or", left, right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptIdent("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binExpr{"and", left, right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (expression, error) {
	if p.acceptIdent("not") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notExpr{inner}, nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (expression, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{"==", "!="} {
		if p.acceptPunct(op) {
			right, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			return binExpr{op, left, right}, nil
		}
	}
	return left, nil
}

func (p *exprParser) parsePrimary() (expression, error) {
	tok := p.peek()
	switch tok.kind {
	case etString:
		p.next()
		return litExpr{tok.text}, nil

	case etNumber:
		p.next()
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, errors.TemplateSyntaxError(
				fmt.Sprintf("invalid number %q", tok.text), p.pos)
		}
		return litExpr{f}, nil

	case etIdent:
		switch tok.text {
		case "true":
			p.next()
			return litExpr{true}, nil
		case "false":
			p.next()
			return litExpr{false}, nil
		case "if", "else", "and", "or", "not", "in":
			return nil, errors.TemplateSyntaxError(
				fmt.Sprintf("unexpected keyword %q", tok.text), p.pos)
		}
		return p.parsePath()

	case etPunct:
		switch tok.text {
		case "[":
			return p.parseList()
		case "(":
			p.next()
			inner, err := p.parseCond()
			if err != nil {
				return nil, err
			}
			if !p.acceptPunct(")") {
				return nil, errors.TemplateSyntaxError("missing closing parenthesis", p.pos)
			}
			return inner, nil
		}
	}
	return nil, errors.TemplateSyntaxError(
		fmt.Sprintf("unexpected %q in expression", tok.text), p.pos)
}

func (p *exprParser) parsePath() (expression, error) {
	segments := []string{p.next().text}
	for p.acceptPunct(".") {
		seg := p.peek()
		if seg.kind != etIdent && seg.kind != etNumber {
			return nil, errors.TemplateSyntaxError("malformed attribute path", p.pos)
		}
		p.next()
		segments = append(segments, seg.text)
	}
	return pathExpr{segments}, nil
}

func (p *exprParser) parseList() (expression, error) {
	p.next() // consume '['
	var items []expression
	if p.acceptPunct("]") {
		return listExpr{items}, nil
	}
	for {
		item, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.acceptPunct("]") {
			return listExpr{items}, nil
		}
		if !p.acceptPunct(",") {
			return nil, errors.TemplateSyntaxError("missing ',' or ']' in list literal", p.pos)
		}
	}
}
