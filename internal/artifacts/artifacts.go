// Package artifacts stages native application files into a build directory.
// A bundle is described by glob mappings (src pattern to dest directory)
// taken from an entity's artifacts field; sources resolve relative to the
// project root and must stay inside it.
package artifacts

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"snowcraft/internal/common"
	"snowcraft/internal/render"
	"snowcraft/pkg/errors"
)

// Mapping maps a source glob to a destination directory inside the bundle.
// An empty Dest places matches at the bundle root.
type Mapping struct {
	Src  string `yaml:"src"`
	Dest string `yaml:"dest,omitempty"`
}

// Bundler copies matched artifacts into a staging directory
type Bundler struct {
	projectRoot string
	renderer    render.Renderer
}

// NewBundler creates a bundler rooted at projectRoot. The renderer expands
// context-reference tags in src and dest paths before glob matching.
func NewBundler(projectRoot string, renderer render.Renderer) *Bundler {
	return &Bundler{projectRoot: projectRoot, renderer: renderer}
}

// ParseMappings reads an entity's artifacts field. Each element is either a
// plain string glob (dest defaults to the bundle root) or a src/dest mapping.
func ParseMappings(raw []interface{}) ([]Mapping, error) {
	mappings := make([]Mapping, 0, len(raw))
	for _, item := range raw {
		switch x := item.(type) {
		case string:
			mappings = append(mappings, Mapping{Src: x})
		case map[string]interface{}:
			src, _ := x["src"].(string)
			if src == "" {
				return nil, errors.SchemaError("artifact mapping requires a src glob", "artifacts")
			}
			dest, _ := x["dest"].(string)
			mappings = append(mappings, Mapping{Src: src, Dest: dest})
		default:
			return nil, errors.SchemaError("artifact entries must be globs or src/dest mappings", "artifacts")
		}
	}
	return mappings, nil
}

// Bundle stages every mapping into buildDir and returns the staged file
// paths relative to buildDir, sorted. A glob that matches nothing is an
// error; silent empty bundles hide typos in the manifest.
func (b *Bundler) Bundle(buildDir string, mappings []Mapping, ctx *render.Context) ([]string, error) {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create build directory").
			WithContext("path", buildDir)
	}

	var staged []string
	for _, m := range mappings {
		src, dest, err := b.expandMapping(m, ctx)
		if err != nil {
			return nil, err
		}

		matches, err := filepath.Glob(filepath.Join(b.projectRoot, src))
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "Malformed artifact glob").
				WithContext("glob", src)
		}
		if len(matches) == 0 {
			return nil, errors.New(errors.ErrCodeFileNotFound, "Artifact glob matched no files").
				WithContext("glob", src).
				WithSuggestions(
					"Check the glob pattern against the project directory",
					"Paths are relative to the project root",
				)
		}

		for _, match := range matches {
			rel, err := b.stage(match, dest, buildDir)
			if err != nil {
				return nil, err
			}
			if rel != "" {
				staged = append(staged, rel)
			}
		}
	}
	sort.Strings(staged)
	return staged, nil
}

func (b *Bundler) expandMapping(m Mapping, ctx *render.Context) (string, string, error) {
	src := m.Src
	dest := m.Dest
	if b.renderer != nil {
		var err error
		if src, err = b.renderer.Render(src, ctx); err != nil {
			return "", "", err
		}
		if dest, err = b.renderer.Render(dest, ctx); err != nil {
			return "", "", err
		}
	}
	if strings.Contains(src, "..") || strings.Contains(dest, "..") {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "Artifact paths must not traverse outside the project").
			WithContext("src", m.Src).
			WithContext("dest", m.Dest)
	}
	return src, dest, nil
}

// stage copies one matched file into the bundle. Directories are skipped;
// globs address files. Returns the staged path relative to buildDir.
func (b *Bundler) stage(match, dest, buildDir string) (string, error) {
	if _, err := common.ValidatePath(match, b.projectRoot); err != nil {
		return "", err
	}
	info, err := os.Stat(match)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeFileNotFound, "Failed to stat artifact").
			WithContext("path", match)
	}
	if info.IsDir() {
		return "", nil
	}

	target := filepath.Join(buildDir, dest, filepath.Base(match))
	if _, err := common.ValidatePath(target, buildDir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create bundle directory").
			WithContext("path", filepath.Dir(target))
	}
	if err := copyFile(match, target); err != nil {
		return "", err
	}

	rel, err := filepath.Rel(buildDir, target)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "Failed to relativize staged path")
	}
	return filepath.ToSlash(rel), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to open artifact").
			WithContext("path", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create staged artifact").
			WithContext("path", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to copy artifact").
			WithContext("src", src).
			WithContext("dest", dst)
	}
	return out.Sync()
}
