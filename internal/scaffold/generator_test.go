package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"snowcraft/internal/project"
)

func TestGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "myapp")
	g := NewGenerator(dir, &Config{
		ProjectName: "myapp",
		Database:    "DEV",
		Schema:      "PUBLIC",
		Warehouse:   "COMPUTE_WH",
	})
	require.NoError(t, g.Generate())

	for _, rel := range []string{
		"snowcraft.yaml",
		"templates/grants.sql",
		"app/manifest.yml",
		"app/setup.sql",
		"app/README.md",
	} {
		_, err := os.Stat(filepath.Join(dir, rel))
		assert.NoError(t, err, rel)
	}

	data, err := os.ReadFile(filepath.Join(dir, "snowcraft.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "myapp_pkg_<% ctx.env.SUFFIX %>")
}

func TestGeneratedManifestLoads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "myapp")
	g := NewGenerator(dir, &Config{ProjectName: "myapp", Schema: "PUBLIC"})
	require.NoError(t, g.Generate())

	data, err := os.ReadFile(filepath.Join(dir, "snowcraft.yaml"))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))

	def, err := project.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "app_pkg", "pool"}, def.EntityKeys())

	app := def.Entities["app"]
	assert.Equal(t, "app_pkg", app.FromTarget)
}

func TestGeneratedGrantsTemplateKeepsTags(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "myapp")
	g := NewGenerator(dir, &Config{ProjectName: "myapp"})
	require.NoError(t, g.Generate())

	data, err := os.ReadFile(filepath.Join(dir, "templates", "grants.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "{% for g in grants %}")
	assert.Contains(t, string(data), "{{ g.privilege }}")
}
