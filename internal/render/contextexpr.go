package render

import (
	"fmt"
	"strings"

	"snowcraft/pkg/errors"
)

const (
	ctxTagOpen  = "<%"
	ctxTagClose = "%>"
)

// ContextRenderer expands context-reference tags of the form
// <% ctx.env.NAME %> and <% ctx.entities.key.identifier %>. The syntax is
// restricted to attribute-path lookups: no control flow, no loops.
type ContextRenderer struct{}

// NewContextRenderer creates a renderer for the context-reference syntax
func NewContextRenderer() *ContextRenderer {
	return &ContextRenderer{}
}

// Render expands every context-reference tag in text
func (r *ContextRenderer) Render(text string, ctx *Context) (string, error) {
	var out strings.Builder
	rest := text
	offset := 0

	for {
		start := strings.Index(rest, ctxTagOpen)
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:start])

		end := strings.Index(rest[start:], ctxTagClose)
		if end < 0 {
			return "", errors.TemplateSyntaxError("unterminated <% tag", offset+start)
		}
		end += start

		expr := strings.TrimSpace(rest[start+len(ctxTagOpen) : end])
		value, err := r.eval(expr, ctx, offset+start)
		if err != nil {
			return "", err
		}
		out.WriteString(value)

		offset += end + len(ctxTagClose)
		rest = rest[end+len(ctxTagClose):]
	}
}

// eval resolves one ctx.<path> expression to its string value
func (r *ContextRenderer) eval(expr string, ctx *Context, pos int) (string, error) {
	if expr == "" {
		return "", errors.TemplateSyntaxError("empty context reference", pos)
	}

	segments := strings.Split(expr, ".")
	if segments[0] != "ctx" {
		return "", errors.TemplateSyntaxError(
			fmt.Sprintf("context reference must start with 'ctx.', got %q", expr), pos)
	}
	for _, seg := range segments {
		if !isIdentSegment(seg) {
			return "", errors.TemplateSyntaxError(
				fmt.Sprintf("malformed context reference %q", expr), pos)
		}
	}

	value, err := ctx.LookupPath(segments[1:])
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", errors.TemplateSyntaxError(
			fmt.Sprintf("context reference %q does not resolve to text", expr), pos)
	}
	return s, nil
}

func isIdentSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
