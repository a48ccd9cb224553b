package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowcraft/pkg/errors"
)

func TestBlockRendererVariableOutput(t *testing.T) {
	r := NewBlockRenderer("")
	ctx := testContext().WithParams(map[string]interface{}{"warehouse": "DEPLOY_WH"})

	out, err := r.Render("USE WAREHOUSE {{ warehouse }};", ctx)
	require.NoError(t, err)
	assert.Equal(t, "USE WAREHOUSE DEPLOY_WH;", out)
}

func TestBlockRendererEnvAndEntityPaths(t *testing.T) {
	r := NewBlockRenderer("")
	out, err := r.Render("{{ env.SUFFIX }}:{{ entities.app_pkg.identifier }}", testContext())
	require.NoError(t, err)
	assert.Equal(t, "dev:public.my_pkg", out)
}

func TestBlockRendererNestedParamPath(t *testing.T) {
	r := NewBlockRenderer("")
	ctx := testContext().WithParams(map[string]interface{}{
		"meta": map[string]interface{}{"role": "r1"},
	})

	out, err := r.Render("{{ meta.role }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", out)
}

func TestBlockRendererIfElse(t *testing.T) {
	r := NewBlockRenderer("")
	ctx := testContext().WithParams(map[string]interface{}{"debug": true})

	out, err := r.Render("{% if debug %}verbose{% else %}quiet{% endif %}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "verbose", out)

	ctx = testContext().WithParams(map[string]interface{}{"debug": false})
	out, err = r.Render("{% if debug %}verbose{% else %}quiet{% endif %}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "quiet", out)
}

func TestBlockRendererEquality(t *testing.T) {
	r := NewBlockRenderer("")
	ctx := testContext().WithParams(map[string]interface{}{"stage": "prod"})

	out, err := r.Render(`{% if stage == "prod" %}guarded{% endif %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "guarded", out)

	out, err = r.Render(`{% if stage != "prod" %}open{% endif %}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestBlockRendererCommaJoinLoop(t *testing.T) {
	r := NewBlockRenderer("")
	out, err := r.Render(
		`{% for pkg in ["a","b","c"] %}'{{pkg}}'{{"," if not loop.last}}{% endfor %}`,
		testContext())
	require.NoError(t, err)
	// No trailing comma
	assert.Equal(t, `'a','b','c'`, out)
}

func TestBlockRendererLoopOverParam(t *testing.T) {
	r := NewBlockRenderer("")
	ctx := testContext().WithParams(map[string]interface{}{
		"grants": []interface{}{"USAGE", "OPERATE"},
	})

	out, err := r.Render(
		"{% for g in grants %}GRANT {{ g }};\n{% endfor %}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "GRANT USAGE;\nGRANT OPERATE;\n", out)
}

func TestBlockRendererLoopIndex(t *testing.T) {
	r := NewBlockRenderer("")
	out, err := r.Render(
		`{% for x in ["a","b"] %}{{ loop.index }}/{{ loop.length }} {% endfor %}`,
		testContext())
	require.NoError(t, err)
	assert.Equal(t, "1/2 2/2 ", out)
}

func TestBlockRendererInlineIfElse(t *testing.T) {
	r := NewBlockRenderer("")
	ctx := testContext().WithParams(map[string]interface{}{"external": false})

	out, err := r.Render(`{{ "EXTERNAL" if external else "INTERNAL" }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL", out)
}

func TestBlockRendererUndefinedVariableFailsClosed(t *testing.T) {
	r := NewBlockRenderer("")
	out, err := r.Render("{{ missing_variable }}", testContext())
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, errors.ErrCodeUndefinedVariable, errors.GetErrorCode(err))
}

func TestBlockRendererUndefinedInsideLoopFails(t *testing.T) {
	r := NewBlockRenderer("")
	_, err := r.Render(`{% for x in ["a"] %}{{ y }}{% endfor %}`, testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUndefinedVariable, errors.GetErrorCode(err))
}

func TestBlockRendererSyntaxErrors(t *testing.T) {
	r := NewBlockRenderer("")
	cases := []string{
		"{{ unterminated",
		"{% if x %}no endif",
		"{% endfor %}",
		"{% frobnicate %}",
		"{{ }}",
		`{% for in [1] %}x{% endfor %}`,
	}
	for _, tmpl := range cases {
		_, err := r.Render(tmpl, testContext())
		require.Error(t, err, "template %q", tmpl)
		assert.Equal(t, errors.ErrCodeTemplateSyntax, errors.GetErrorCode(err), "template %q", tmpl)
	}
}

func TestBlockRendererInclude(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "grants.sql"),
		[]byte("GRANT USAGE TO {{ env.APP_OWNER }};"), 0600))

	r := NewBlockRenderer(dir)
	out, err := r.Render(`-- setup {% include "grants.sql" %}`, testContext())
	require.NoError(t, err)
	assert.Equal(t, "-- setup GRANT USAGE TO deploy_svc;", out)
}

func TestBlockRendererIncludeNotFound(t *testing.T) {
	r := NewBlockRenderer(t.TempDir())
	_, err := r.Render(`{% include "missing.sql" %}`, testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIncludeNotFound, errors.GetErrorCode(err))
}

func TestBlockRendererIncludeWithoutSearchDir(t *testing.T) {
	r := NewBlockRenderer("")
	_, err := r.Render(`{% include "grants.sql" %}`, testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIncludeNotFound, errors.GetErrorCode(err))
}

func TestBlockRendererIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "a.sql"), []byte(`A {% include "b.sql" %}`), 0600))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "b.sql"), []byte(`B {% include "a.sql" %}`), 0600))

	r := NewBlockRenderer(dir)
	_, err := r.Render(`{% include "a.sql" %}`, testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIncludeCycle, errors.GetErrorCode(err))
	appErr := err.(*errors.AppError)
	assert.Contains(t, appErr.Message, "a.sql -> b.sql -> a.sql")
}

func TestBlockRendererIncludeEscapeBlocked(t *testing.T) {
	r := NewBlockRenderer(t.TempDir())
	_, err := r.Render(`{% include "../outside.sql" %}`, testContext())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIncludeNotFound, errors.GetErrorCode(err))
}

func TestBlockRendererNestedInclude(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "outer.sql"), []byte(`outer({% include "inner.sql" %})`), 0600))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "inner.sql"), []byte(`{{ env.SUFFIX }}`), 0600))

	r := NewBlockRenderer(dir)
	out, err := r.Render(`{% include "outer.sql" %}`, testContext())
	require.NoError(t, err)
	assert.Equal(t, "outer(dev)", out)
}

func TestContextLookupPath(t *testing.T) {
	ctx := testContext()

	val, err := ctx.LookupPath([]string{"env", "APP_OWNER"})
	require.NoError(t, err)
	assert.Equal(t, "deploy_svc", val)

	val, err = ctx.LookupPath([]string{"entities", "app_pkg", "schema"})
	require.NoError(t, err)
	assert.Equal(t, "public", val)

	_, err = ctx.LookupPath([]string{"entities", "nope", "identifier"})
	assert.Error(t, err)
}

func TestContextWithParamsDoesNotMutate(t *testing.T) {
	ctx := testContext()
	derived := ctx.WithParams(map[string]interface{}{"x": "1"})

	assert.Empty(t, ctx.Params)
	assert.Equal(t, "1", derived.Params["x"])
}
