// Package scaffold generates new project directories, either from the
// built-in starter layout or by cloning a template repository.
package scaffold

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	git "github.com/go-git/go-git/v5"

	"snowcraft/pkg/errors"
)

// Config holds scaffolding configuration
type Config struct {
	ProjectName string
	Database    string
	Schema      string
	Warehouse   string
}

// Generator creates project skeletons
type Generator struct {
	projectDir string
	config     *Config
}

// NewGenerator creates a generator writing into projectDir
func NewGenerator(projectDir string, config *Config) *Generator {
	return &Generator{projectDir: projectDir, config: config}
}

// Generate writes the built-in starter project
func (g *Generator) Generate() error {
	if err := os.MkdirAll(g.projectDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create project directory").
			WithContext("path", g.projectDir)
	}

	templated := map[string]string{
		"snowcraft.yaml": manifestTemplate,
		"app/README.md":  readmeTemplate,
	}
	for rel, tmpl := range templated {
		if err := g.writeTemplated(rel, tmpl); err != nil {
			return err
		}
	}

	// These carry their own template tags, expanded at render time
	raw := map[string]string{
		"templates/grants.sql": grantsTemplate,
		"app/manifest.yml":     appManifestTemplate,
		"app/setup.sql":        setupScriptTemplate,
	}
	for rel, content := range raw {
		if err := g.writeFile(rel, content); err != nil {
			return err
		}
	}
	return nil
}

// FromGitTemplate clones a template repository into the project directory
// and strips its git history.
func (g *Generator) FromGitTemplate(ctx context.Context, gitURL string) error {
	if err := os.MkdirAll(filepath.Dir(g.projectDir), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create parent directory").
			WithContext("path", g.projectDir)
	}

	_, err := git.PlainCloneContext(ctx, g.projectDir, false, &git.CloneOptions{
		URL:   gitURL,
		Depth: 1,
	})
	if err != nil {
		// Clean up partial clone on failure
		os.RemoveAll(g.projectDir)

		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to clone template repository").
			WithContext("url", gitURL).
			WithContext("path", g.projectDir)
	}

	return os.RemoveAll(filepath.Join(g.projectDir, ".git"))
}

func (g *Generator) writeTemplated(rel, tmplText string) error {
	tmpl, err := template.New(filepath.Base(rel)).Parse(tmplText)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Invalid scaffold template").
			WithContext("file", rel)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, g.config); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to render scaffold template").
			WithContext("file", rel)
	}

	return g.writeFile(rel, buf.String())
}

func (g *Generator) writeFile(rel, content string) error {
	path := filepath.Join(g.projectDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to create directory").
			WithContext("path", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to write scaffold file").
			WithContext("path", path)
	}
	return nil
}

const manifestTemplate = `# {{ .ProjectName }} project manifest
env:
  APP_OWNER: {{ .ProjectName }}_admin
  SUFFIX: dev

mixins:
  defaults:
    identifier:
      schema: {{ .Schema }}
    comment: managed by snowcraft

entities:
  app_pkg:
    type: application package
    use_mixins: [defaults]
    identifier:
      name: {{ .ProjectName }}_pkg_<% ctx.env.SUFFIX %>
    artifacts:
      - src: app/*.yml
      - src: app/*.sql
        dest: scripts

  app:
    type: application
    use_mixins: [defaults]
    from:
      target: app_pkg
    identifier:
      name: {{ .ProjectName }}_<% ctx.env.SUFFIX %>

  pool:
    type: compute pool
    use_mixins: [defaults]
    identifier:
      name: {{ .ProjectName }}_pool_<% ctx.env.SUFFIX %>
    max_nodes: 2
`

const grantsTemplate = `{% for g in grants %}GRANT {{ g.privilege }} ON {{ g.object }} TO ROLE {{ g.role }};
{% endfor %}`

const appManifestTemplate = `manifest_version: 1

artifacts:
  setup_script: scripts/setup.sql
  readme: README.md
`

const setupScriptTemplate = `CREATE APPLICATION ROLE IF NOT EXISTS app_public;
CREATE OR ALTER VERSIONED SCHEMA core;
GRANT USAGE ON SCHEMA core TO APPLICATION ROLE app_public;
`

const readmeTemplate = `# {{ .ProjectName }}

Deployed with snowcraft. Edit snowcraft.yaml to add entities, then run:

    snowcraft render
    snowcraft deploy
`
