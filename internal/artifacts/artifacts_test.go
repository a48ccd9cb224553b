package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowcraft/internal/render"
	"snowcraft/pkg/errors"
)

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseMappings(t *testing.T) {
	mappings, err := ParseMappings([]interface{}{
		"app/*.py",
		map[string]interface{}{"src": "sql/*.sql", "dest": "scripts"},
	})
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, Mapping{Src: "app/*.py"}, mappings[0])
	assert.Equal(t, Mapping{Src: "sql/*.sql", Dest: "scripts"}, mappings[1])
}

func TestParseMappingsMissingSrc(t *testing.T) {
	_, err := ParseMappings([]interface{}{
		map[string]interface{}{"dest": "scripts"},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSchema, errors.GetErrorCode(err))
}

func TestParseMappingsBadEntry(t *testing.T) {
	_, err := ParseMappings([]interface{}{42})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSchema, errors.GetErrorCode(err))
}

func TestBundleStagesMatches(t *testing.T) {
	root := t.TempDir()
	build := t.TempDir()
	writeProjectFile(t, root, "app/main.py", "print('hi')")
	writeProjectFile(t, root, "app/util.py", "pass")
	writeProjectFile(t, root, "sql/setup.sql", "SELECT 1")

	b := NewBundler(root, nil)
	staged, err := b.Bundle(build, []Mapping{
		{Src: "app/*.py"},
		{Src: "sql/*.sql", Dest: "scripts"},
	}, render.NewContext(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"main.py", "scripts/setup.sql", "util.py"}, staged)

	content, err := os.ReadFile(filepath.Join(build, "scripts", "setup.sql"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", string(content))
}

func TestBundleEmptyGlobFails(t *testing.T) {
	root := t.TempDir()
	b := NewBundler(root, nil)

	_, err := b.Bundle(t.TempDir(), []Mapping{{Src: "missing/*.py"}}, render.NewContext(nil, nil))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetErrorCode(err))
}

func TestBundleRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	b := NewBundler(root, nil)

	_, err := b.Bundle(t.TempDir(), []Mapping{{Src: "../outside/*.py"}}, render.NewContext(nil, nil))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
}

func TestBundleRendersTemplatedPaths(t *testing.T) {
	root := t.TempDir()
	build := t.TempDir()
	writeProjectFile(t, root, "app/v2/main.py", "print('hi')")

	ctx := render.NewContext(map[string]string{"VERSION": "v2"}, nil)
	b := NewBundler(root, render.NewContextRenderer())
	staged, err := b.Bundle(build, []Mapping{
		{Src: "app/<% ctx.env.VERSION %>/*.py", Dest: "code"},
	}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"code/main.py"}, staged)
}

func TestBundleSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	build := t.TempDir()
	writeProjectFile(t, root, "app/pkg/inner.py", "pass")
	writeProjectFile(t, root, "app/main.py", "pass")

	b := NewBundler(root, nil)
	staged, err := b.Bundle(build, []Mapping{{Src: "app/*"}}, render.NewContext(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"main.py"}, staged)
}
