package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"snowcraft/pkg/errors"
)

func decodeManifest(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var manifest map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(raw), &manifest))
	return manifest
}

const sampleManifest = `
env:
  APP_OWNER: deploy_svc
  SUFFIX: dev

mixins:
  defaults:
    identifier:
      schema: default_schema
    meta:
      warehouse: wh1
      role: r1

entities:
  app_pkg:
    type: application package
    identifier:
      name: my_pkg_<% ctx.env.SUFFIX %>
    use_mixins: [defaults]
    artifacts:
      - src: app/*
        dest: ./
  app:
    type: application
    from:
      target: app_pkg
    identifier:
      name: my_app
  pool:
    type: compute pool
    identifier: my_pool
    min_nodes: 1
    max_nodes: 3
`

func TestLoad(t *testing.T) {
	def, err := Load(decodeManifest(t, sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "deploy_svc", def.Env["APP_OWNER"])
	assert.Len(t, def.Mixins, 1)
	assert.Len(t, def.Entities, 3)

	pkg := def.Entities["app_pkg"]
	assert.Equal(t, KindPackage, pkg.Kind)
	assert.Equal(t, []string{"defaults"}, pkg.MixinsUsed)
	assert.Equal(t, "my_pkg_<% ctx.env.SUFFIX %>", pkg.Identifier.GetString("name"))

	// Reserved keys are lifted out of the field mapping
	_, hasType := pkg.Fields.Get("type")
	assert.False(t, hasType)
	_, hasArtifacts := pkg.Fields.Get("artifacts")
	assert.True(t, hasArtifacts)

	// Scalar identifier form normalizes to a mapping
	pool := def.Entities["pool"]
	assert.Equal(t, "my_pool", pool.Identifier.GetString("name"))
}

func TestLoadMissingType(t *testing.T) {
	_, err := Load(decodeManifest(t, `
entities:
  broken:
    identifier: x
`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSchema, errors.GetErrorCode(err))
}

func TestLoadUnknownKind(t *testing.T) {
	_, err := Load(decodeManifest(t, `
entities:
  broken:
    type: spaceship
    identifier: x
`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSchema, errors.GetErrorCode(err))
}

func TestLoadMissingIdentifier(t *testing.T) {
	_, err := Load(decodeManifest(t, `
entities:
  broken:
    type: stage
`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSchema, errors.GetErrorCode(err))
}

func TestLoadIdentifierOptionalWithFrom(t *testing.T) {
	def, err := Load(decodeManifest(t, `
entities:
  base:
    type: application package
    identifier: base_pkg
  derived:
    type: application
    from:
      target: base
`))
	require.NoError(t, err)
	assert.Equal(t, "base", def.Entities["derived"].FromTarget)
}

func TestLoadUnknownMixin(t *testing.T) {
	_, err := Load(decodeManifest(t, `
entities:
  app:
    type: application
    identifier: my_app
    use_mixins: [ghost]
`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownMixin, errors.GetErrorCode(err))
}

func TestResolveTarget(t *testing.T) {
	def, err := Load(decodeManifest(t, sampleManifest))
	require.NoError(t, err)

	app := def.Entities["app"]
	target, err := def.ResolveTarget(app)
	require.NoError(t, err)
	assert.Equal(t, "app_pkg", target.Key)

	// Entities without a source resolve to nil
	pool := def.Entities["pool"]
	target, err = def.ResolveTarget(pool)
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestResolveTargetDangling(t *testing.T) {
	def, err := Load(decodeManifest(t, `
entities:
  app:
    type: application
    identifier: my_app
    from:
      target: missing_pkg
`))
	require.NoError(t, err)

	_, err = def.ResolveTarget(def.Entities["app"])
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDanglingReference, errors.GetErrorCode(err))
}

func TestEntityKeysSorted(t *testing.T) {
	def, err := Load(decodeManifest(t, sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "app_pkg", "pool"}, def.EntityKeys())
}

func TestParseEntityKind(t *testing.T) {
	kind, ok := ParseEntityKind("  Application Package ")
	assert.True(t, ok)
	assert.Equal(t, KindPackage, kind)

	_, ok = ParseEntityKind("spaceship")
	assert.False(t, ok)
}
