// Package render expands the two template syntaxes used in project
// artifacts: block/expression tags ({{ }}, {% %}) and context-reference
// tags (<% ctx... %>). The syntaxes never mix within one file, so each has
// its own Renderer implementation behind a shared interface.
package render

import (
	"strings"

	"snowcraft/pkg/errors"
)

// EntityRef exposes a resolved sibling entity's identifier to templates
type EntityRef struct {
	Identifier string // Fully qualified identifier (schema.name or name)
	Name       string
	Schema     string
}

// Context is the variable environment for one render pass. It is built per
// top-level render invocation and read-only for the duration of the pass.
type Context struct {
	Env      map[string]string
	Entities map[string]EntityRef
	Params   map[string]interface{} // Caller-supplied parameters
}

// NewContext builds a Context from environment variables and resolved
// entity identifiers.
func NewContext(env map[string]string, entities map[string]EntityRef) *Context {
	if env == nil {
		env = make(map[string]string)
	}
	if entities == nil {
		entities = make(map[string]EntityRef)
	}
	return &Context{
		Env:      env,
		Entities: entities,
		Params:   make(map[string]interface{}),
	}
}

// WithParams returns a copy of the context carrying caller-supplied
// parameters; the receiver is untouched.
func (c *Context) WithParams(params map[string]interface{}) *Context {
	merged := make(map[string]interface{}, len(c.Params)+len(params))
	for k, v := range c.Params {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return &Context{Env: c.Env, Entities: c.Entities, Params: merged}
}

// LookupPath resolves a dotted attribute path ("env.NAME",
// "entities.key.identifier") against the context. Unresolvable paths fail
// with UndefinedVariableError; there is no silent empty-string fallback.
func (c *Context) LookupPath(path []string) (interface{}, error) {
	full := strings.Join(path, ".")
	if len(path) == 0 {
		return nil, errors.UndefinedVariableError(full)
	}

	switch path[0] {
	case "env":
		if len(path) != 2 {
			return nil, errors.UndefinedVariableError(full)
		}
		val, ok := c.Env[path[1]]
		if !ok {
			return nil, errors.UndefinedVariableError(full)
		}
		return val, nil

	case "entities":
		if len(path) != 3 {
			return nil, errors.UndefinedVariableError(full)
		}
		ref, ok := c.Entities[path[1]]
		if !ok {
			return nil, errors.UndefinedVariableError(full)
		}
		switch path[2] {
		case "identifier":
			return ref.Identifier, nil
		case "name":
			return ref.Name, nil
		case "schema":
			return ref.Schema, nil
		}
		return nil, errors.UndefinedVariableError(full)
	}

	// Caller-supplied parameters live at the top level
	if val, ok := c.Params[path[0]]; ok {
		return descend(val, path[1:], full)
	}
	return nil, errors.UndefinedVariableError(full)
}

// descend walks remaining path segments through nested parameter maps
func descend(val interface{}, rest []string, full string) (interface{}, error) {
	for _, seg := range rest {
		m, ok := val.(map[string]interface{})
		if !ok {
			return nil, errors.UndefinedVariableError(full)
		}
		val, ok = m[seg]
		if !ok {
			return nil, errors.UndefinedVariableError(full)
		}
	}
	return val, nil
}

// Renderer expands template expressions in text against a context
type Renderer interface {
	Render(text string, ctx *Context) (string, error)
}
