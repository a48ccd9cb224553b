package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowcraft/pkg/errors"
)

func testContext() *Context {
	return NewContext(
		map[string]string{
			"APP_OWNER": "deploy_svc",
			"SUFFIX":    "dev",
		},
		map[string]EntityRef{
			"app_pkg": {Identifier: "public.my_pkg", Name: "my_pkg", Schema: "public"},
		},
	)
}

func TestContextRendererEnv(t *testing.T) {
	r := NewContextRenderer()
	out, err := r.Render("GRANT OWNERSHIP TO <% ctx.env.APP_OWNER %>;", testContext())
	require.NoError(t, err)
	assert.Equal(t, "GRANT OWNERSHIP TO deploy_svc;", out)
}

func TestContextRendererEntityIdentifier(t *testing.T) {
	r := NewContextRenderer()
	out, err := r.Render("CREATE APPLICATION a FROM <% ctx.entities.app_pkg.identifier %>;", testContext())
	require.NoError(t, err)
	assert.Equal(t, "CREATE APPLICATION a FROM public.my_pkg;", out)
}

func TestContextRendererMultipleTags(t *testing.T) {
	r := NewContextRenderer()
	out, err := r.Render("<% ctx.env.APP_OWNER %>_<% ctx.env.SUFFIX %>", testContext())
	require.NoError(t, err)
	assert.Equal(t, "deploy_svc_dev", out)
}

func TestContextRendererPlainTextPassthrough(t *testing.T) {
	r := NewContextRenderer()
	out, err := r.Render("SELECT 1;", testContext())
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", out)
}

func TestContextRendererUndefinedVariable(t *testing.T) {
	r := NewContextRenderer()
	out, err := r.Render("<% ctx.env.MISSING %>", testContext())
	require.Error(t, err)
	// Fail closed: no empty-string substitution
	assert.Empty(t, out)
	assert.Equal(t, errors.ErrCodeUndefinedVariable, errors.GetErrorCode(err))
}

func TestContextRendererUnknownEntityAttribute(t *testing.T) {
	r := NewContextRenderer()
	_, err := r.Render("<% ctx.entities.app_pkg.owner %>", testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUndefinedVariable, errors.GetErrorCode(err))
}

func TestContextRendererRequiresCtxPrefix(t *testing.T) {
	r := NewContextRenderer()
	_, err := r.Render("<% env.APP_OWNER %>", testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTemplateSyntax, errors.GetErrorCode(err))
}

func TestContextRendererUnterminatedTag(t *testing.T) {
	r := NewContextRenderer()
	_, err := r.Render("<% ctx.env.APP_OWNER", testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTemplateSyntax, errors.GetErrorCode(err))
}

func TestContextRendererNoControlFlow(t *testing.T) {
	r := NewContextRenderer()
	_, err := r.Render("<% if ctx.env.SUFFIX %>", testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTemplateSyntax, errors.GetErrorCode(err))
}
