package common

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	_, err := CleanPath("app/../../etc/passwd")
	assert.Error(t, err)

	cleaned, err := CleanPath("/tmp/project/manifest.yml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/project/manifest.yml", cleaned)
}

func TestValidatePath(t *testing.T) {
	base := t.TempDir()

	inside, err := ValidatePath(filepath.Join(base, "setup.sql"), base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "setup.sql"), inside)

	_, err = ValidatePath("/etc/passwd", base)
	assert.Error(t, err)
}

func TestJoinPath(t *testing.T) {
	base := t.TempDir()

	joined, err := JoinPath(base, "templates", "setup.sql")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "templates", "setup.sql"), joined)

	_, err = JoinPath(base, "..", "outside.sql")
	assert.Error(t, err)
}
