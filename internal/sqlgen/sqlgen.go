// Package sqlgen turns resolved entities into ordered SQL statement
// batches. It owns statement ordering only; all text expansion goes through
// the render package.
package sqlgen

import (
	"fmt"
	"strings"

	"snowcraft/internal/project"
	"snowcraft/internal/render"
	"snowcraft/internal/resolver"
	"snowcraft/pkg/errors"
)

// Generator produces DDL statement batches for resolved entities
type Generator struct {
	block *render.BlockRenderer
	ctxr  *render.ContextRenderer
}

// NewGenerator creates a generator whose block templates resolve includes
// against templateDir.
func NewGenerator(templateDir string) *Generator {
	return &Generator{
		block: render.NewBlockRenderer(templateDir),
		ctxr:  render.NewContextRenderer(),
	}
}

// QualifiedName expands an entity's identifier templates and returns the
// schema-qualified object name.
func (g *Generator) QualifiedName(r *resolver.ResolvedEntity, ctx *render.Context) (string, error) {
	name, err := g.ctxr.Render(r.IdentifierName(), ctx)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", errors.ValidationError("identifier", r.Key, "resolved name must not be empty")
	}
	schema, err := g.ctxr.Render(r.IdentifierSchema(), ctx)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return name, nil
	}
	return schema + "." + name, nil
}

// Statements renders the ordered DDL batch for one resolved entity. Every
// field value passes through the context-reference renderer before the
// kind-specific block template applies, so <% ctx %> expressions in the
// manifest and {{ }} expressions in the templates both resolve.
func (g *Generator) Statements(r *resolver.ResolvedEntity, ctx *render.Context) ([]string, error) {
	name, err := g.QualifiedName(r, ctx)
	if err != nil {
		return nil, err
	}

	params, err := g.expandFields(r.Fields, ctx)
	if err != nil {
		return nil, err
	}
	merged := map[string]interface{}{}
	for k, v := range kindDefaults[r.Kind] {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	merged["name"] = name
	if r.FromTarget != "" {
		ref, ok := ctx.Entities[r.FromTarget]
		if !ok {
			return nil, errors.DanglingReferenceError(r.Key, r.FromTarget)
		}
		merged["source"] = ref.Identifier
	}
	scoped := ctx.WithParams(merged)

	if r.Kind == project.KindGeneric {
		return g.genericStatements(r, scoped, merged)
	}

	templates, ok := kindTemplates[r.Kind]
	if !ok {
		return nil, errors.ValidationError("type", string(r.Kind), "no statement templates for kind")
	}

	var statements []string
	for _, tmpl := range templates {
		if tmpl.when != "" {
			if _, ok := params[tmpl.when]; !ok {
				continue
			}
		}
		rendered, err := g.block.Render(tmpl.text, scoped)
		if err != nil {
			return nil, err
		}
		for _, stmt := range splitOnSemicolon(rendered) {
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				statements = append(statements, stmt)
			}
		}
	}
	return statements, nil
}

// genericStatements renders a type: sql entity. The entity's own sql field
// is the template body, so it may use the full block syntax.
func (g *Generator) genericStatements(r *resolver.ResolvedEntity, scoped *render.Context, params map[string]interface{}) ([]string, error) {
	body, ok := params["sql"].(string)
	if !ok {
		return nil, errors.ValidationError("sql", r.Key, "generic entities require a sql field")
	}
	rendered, err := g.block.Render(body, scoped)
	if err != nil {
		return nil, err
	}
	var statements []string
	for _, stmt := range splitOnSemicolon(rendered) {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}

// splitOnSemicolon splits rendered SQL on statement boundaries, ignoring
// semicolons inside quoted strings, $$ blocks and -- line comments.
func splitOnSemicolon(text string) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	inDouble := false
	inDollar := false
	inComment := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case inComment:
			cur.WriteByte(c)
			if c == '\n' {
				inComment = false
			}
		case inQuote:
			cur.WriteByte(c)
			if c == '\'' {
				inQuote = false
			}
		case inDouble:
			cur.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
		case inDollar:
			cur.WriteByte(c)
			if c == '$' && i+1 < len(text) && text[i+1] == '$' {
				cur.WriteByte(text[i+1])
				i++
				inDollar = false
			}
		case c == '\'':
			inQuote = true
			cur.WriteByte(c)
		case c == '"':
			inDouble = true
			cur.WriteByte(c)
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			inComment = true
			cur.WriteString("--")
			i++
		case c == '$' && i+1 < len(text) && text[i+1] == '$':
			inDollar = true
			cur.WriteString("$$")
			i++
		case c == ';':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// expandFields converts a resolved field mapping into template parameters,
// expanding context-reference tags in every string leaf.
func (g *Generator) expandFields(fields project.Value, ctx *render.Context) (map[string]interface{}, error) {
	expanded, err := g.expandValue(fields.Any(), ctx)
	if err != nil {
		return nil, err
	}
	params, ok := expanded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("resolved fields are not a mapping")
	}
	return params, nil
}

func (g *Generator) expandValue(v interface{}, ctx *render.Context) (interface{}, error) {
	switch x := v.(type) {
	case string:
		return g.ctxr.Render(x, ctx)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			expanded, err := g.expandValue(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			expanded, err := g.expandValue(item, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}
