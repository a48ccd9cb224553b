package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"snowcraft/internal/common"
	"snowcraft/pkg/errors"
)

// maxIncludeDepth bounds recursive {% include %} expansion. Cycles are
// detected explicitly via the include stack; the depth cap is a backstop for
// deep non-cyclic chains.
const maxIncludeDepth = 16

// BlockRenderer expands the general templating syntax: {{ expr }} output
// tags and {% %} block tags (if/else, for, include). Included templates are
// resolved against a fixed search directory and rendered recursively with
// the same context.
type BlockRenderer struct {
	templateDir string
}

// NewBlockRenderer creates a renderer whose {% include %} tags resolve
// against templateDir. An empty templateDir disables includes.
func NewBlockRenderer(templateDir string) *BlockRenderer {
	return &BlockRenderer{templateDir: templateDir}
}

// Render expands all template tags in text against the context
func (r *BlockRenderer) Render(text string, ctx *Context) (string, error) {
	nodes, err := parseTemplate(text)
	if err != nil {
		return "", err
	}

	st := &renderState{
		renderer: r,
		ctx:      ctx,
	}
	var out strings.Builder
	if err := renderNodes(nodes, st, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// renderState carries the mutable state of one render pass: the local
// variable scopes pushed by for-loops and the include stack.
type renderState struct {
	renderer     *BlockRenderer
	ctx          *Context
	scopes       []map[string]interface{}
	includeStack []string
}

func (st *renderState) pushScope(vars map[string]interface{}) {
	st.scopes = append(st.scopes, vars)
}

func (st *renderState) popScope() {
	st.scopes = st.scopes[:len(st.scopes)-1]
}

// lookup resolves a dotted path: innermost loop scopes first, then the
// render context. Fails closed on unresolved paths.
func (st *renderState) lookup(segments []string, full string) (interface{}, error) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if val, ok := st.scopes[i][segments[0]]; ok {
			return descend(val, segments[1:], full)
		}
	}
	return st.ctx.LookupPath(segments)
}

// ---- lexing ----

type tokenKind int

const (
	tokText tokenKind = iota
	tokExpr           // {{ ... }}
	tokTag            // {% ... %}
)

type token struct {
	kind    tokenKind
	content string
	pos     int
}

func lexTemplate(text string) ([]token, error) {
	var tokens []token
	rest := text
	offset := 0

	for {
		exprIdx := strings.Index(rest, "{{")
		tagIdx := strings.Index(rest, "{%")

		idx, open, close, kind := -1, "", "", tokText
		switch {
		case exprIdx >= 0 && (tagIdx < 0 || exprIdx < tagIdx):
			idx, open, close, kind = exprIdx, "{{", "}}", tokExpr
		case tagIdx >= 0:
			idx, open, close, kind = tagIdx, "{%", "%}", tokTag
		}

		if idx < 0 {
			if rest != "" {
				tokens = append(tokens, token{tokText, rest, offset})
			}
			return tokens, nil
		}

		if idx > 0 {
			tokens = append(tokens, token{tokText, rest[:idx], offset})
		}

		end := strings.Index(rest[idx:], close)
		if end < 0 {
			return nil, errors.TemplateSyntaxError(
				fmt.Sprintf("unterminated %s tag", open), offset+idx)
		}
		end += idx

		content := strings.TrimSpace(rest[idx+len(open) : end])
		tokens = append(tokens, token{kind, content, offset + idx})

		offset += end + len(close)
		rest = rest[end+len(close):]
	}
}

// ---- parsing ----

type node interface{}

type textNode struct {
	text string
}

type exprNode struct {
	expr expression
	pos  int
}

type ifNode struct {
	cond     expression
	body     []node
	elseBody []node
}

type forNode struct {
	varName string
	seq     expression
	body    []node
}

type includeNode struct {
	name string
	pos  int
}

func parseTemplate(text string) ([]node, error) {
	tokens, err := lexTemplate(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	nodes, terminator, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if terminator != "" {
		return nil, errors.TemplateSyntaxError(
			fmt.Sprintf("unexpected {%% %s %%}", terminator), 0)
	}
	return nodes, nil
}

type parser struct {
	tokens []token
	pos    int
}

// parseNodes consumes tokens until one of the stop tags (or end of input)
// and returns the parsed nodes plus the stop tag seen.
func (p *parser) parseNodes(stop []string) ([]node, string, error) {
	var nodes []node

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++

		switch tok.kind {
		case tokText:
			nodes = append(nodes, textNode{tok.content})

		case tokExpr:
			expr, err := parseExpression(tok.content, tok.pos)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, exprNode{expr, tok.pos})

		case tokTag:
			name := tagName(tok.content)
			for _, s := range stop {
				if name == s {
					return nodes, name, nil
				}
			}
			child, err := p.parseTag(name, tok)
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, child)
		}
	}

	if len(stop) > 0 {
		return nil, "", errors.TemplateSyntaxError(
			fmt.Sprintf("missing closing tag, expected one of %s", strings.Join(stop, ", ")), 0)
	}
	return nodes, "", nil
}

func (p *parser) parseTag(name string, tok token) (node, error) {
	switch name {
	case "if":
		cond, err := parseExpression(strings.TrimSpace(tok.content[2:]), tok.pos)
		if err != nil {
			return nil, err
		}
		body, terminator, err := p.parseNodes([]string{"else", "endif"})
		if err != nil {
			return nil, err
		}
		var elseBody []node
		if terminator == "else" {
			elseBody, terminator, err = p.parseNodes([]string{"endif"})
			if err != nil {
				return nil, err
			}
		}
		if terminator != "endif" {
			return nil, errors.TemplateSyntaxError("missing {% endif %}", tok.pos)
		}
		return ifNode{cond, body, elseBody}, nil

	case "for":
		varName, seq, err := parseForClause(tok.content, tok.pos)
		if err != nil {
			return nil, err
		}
		body, terminator, err := p.parseNodes([]string{"endfor"})
		if err != nil {
			return nil, err
		}
		if terminator != "endfor" {
			return nil, errors.TemplateSyntaxError("missing {% endfor %}", tok.pos)
		}
		return forNode{varName, seq, body}, nil

	case "include":
		name, err := parseIncludeName(tok.content, tok.pos)
		if err != nil {
			return nil, err
		}
		return includeNode{name, tok.pos}, nil

	default:
		return nil, errors.TemplateSyntaxError(
			fmt.Sprintf("unknown tag {%% %s %%}", name), tok.pos)
	}
}

func tagName(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseForClause parses "for <var> in <expr>"
func parseForClause(content string, pos int) (string, expression, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(content, "for"))
	inIdx := strings.Index(rest, " in ")
	if inIdx < 0 {
		return "", nil, errors.TemplateSyntaxError("for tag requires 'in'", pos)
	}
	varName := strings.TrimSpace(rest[:inIdx])
	if !isIdentSegment(varName) {
		return "", nil, errors.TemplateSyntaxError(
			fmt.Sprintf("invalid loop variable %q", varName), pos)
	}
	seq, err := parseExpression(strings.TrimSpace(rest[inIdx+4:]), pos)
	if err != nil {
		return "", nil, err
	}
	return varName, seq, nil
}

// parseIncludeName parses `include "name"`
func parseIncludeName(content string, pos int) (string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(content, "include"))
	if len(rest) < 2 || (rest[0] != '"' && rest[0] != '\'') || rest[len(rest)-1] != rest[0] {
		return "", errors.TemplateSyntaxError("include requires a quoted template name", pos)
	}
	return rest[1 : len(rest)-1], nil
}

// ---- rendering ----

func renderNodes(nodes []node, st *renderState, out *strings.Builder) error {
	for _, n := range nodes {
		switch x := n.(type) {
		case textNode:
			out.WriteString(x.text)

		case exprNode:
			val, err := x.expr.eval(st)
			if err != nil {
				return err
			}
			s, err := stringify(val, x.pos)
			if err != nil {
				return err
			}
			out.WriteString(s)

		case ifNode:
			cond, err := x.cond.eval(st)
			if err != nil {
				return err
			}
			if truthy(cond) {
				if err := renderNodes(x.body, st, out); err != nil {
					return err
				}
			} else if err := renderNodes(x.elseBody, st, out); err != nil {
				return err
			}

		case forNode:
			if err := renderFor(x, st, out); err != nil {
				return err
			}

		case includeNode:
			if err := renderInclude(x, st, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderFor(n forNode, st *renderState, out *strings.Builder) error {
	seqVal, err := n.seq.eval(st)
	if err != nil {
		return err
	}
	items, ok := seqVal.([]interface{})
	if !ok {
		return errors.TemplateSyntaxError("for tag requires a sequence", 0)
	}

	length := len(items)
	for i, item := range items {
		// loop.last via explicit index/length comparison
		st.pushScope(map[string]interface{}{
			n.varName: item,
			"loop": map[string]interface{}{
				"index":  float64(i + 1),
				"index0": float64(i),
				"first":  i == 0,
				"last":   i == length-1,
				"length": float64(length),
			},
		})
		err := renderNodes(n.body, st, out)
		st.popScope()
		if err != nil {
			return err
		}
	}
	return nil
}

func renderInclude(n includeNode, st *renderState, out *strings.Builder) error {
	if st.renderer.templateDir == "" {
		return errors.IncludeNotFoundError(n.name).
			WithContext("reason", "no template directory configured")
	}

	for _, seen := range st.includeStack {
		if seen == n.name {
			return errors.IncludeCycleError(append(append([]string{}, st.includeStack...), n.name))
		}
	}
	if len(st.includeStack) >= maxIncludeDepth {
		return errors.IncludeCycleError(append(append([]string{}, st.includeStack...), n.name)).
			WithContext("reason", "maximum include depth exceeded")
	}

	path, err := common.ValidatePath(
		st.renderer.templateDir+string(os.PathSeparator)+n.name, st.renderer.templateDir)
	if err != nil {
		return errors.IncludeNotFoundError(n.name).WithContext("reason", err.Error())
	}
	content, err := os.ReadFile(path) // #nosec G304 - path validated against template dir
	if err != nil {
		return errors.IncludeNotFoundError(n.name)
	}

	nodes, err := parseTemplate(string(content))
	if err != nil {
		return err
	}

	st.includeStack = append(st.includeStack, n.name)
	err = renderNodes(nodes, st, out)
	st.includeStack = st.includeStack[:len(st.includeStack)-1]
	return err
}

// stringify renders an evaluated expression value as literal text. A nil
// value (inline conditional with a false condition and no alternative)
// renders as empty text.
func stringify(val interface{}, pos int) (string, error) {
	switch x := val.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", errors.TemplateSyntaxError(
			fmt.Sprintf("value of type %T has no text form", val), pos)
	}
}

func truthy(val interface{}) bool {
	switch x := val.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case []interface{}:
		return len(x) > 0
	default:
		return true
	}
}
