package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"snowcraft/internal/project"
	"snowcraft/internal/render"
	"snowcraft/internal/resolver"
	"snowcraft/internal/sqlgen"
	"snowcraft/pkg/errors"
)

// loadManifest reads and parses the project manifest
func loadManifest(path string) (*project.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "Project manifest not found").
				WithContext("path", path).
				WithSuggestions(
					"Run 'snowcraft init' to create a new project",
					"Pass --file to point at the manifest",
				)
		}
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to read manifest").
			WithContext("path", path)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.SchemaError(fmt.Sprintf("invalid YAML: %v", err), path)
	}

	return project.Load(raw)
}

// contextEnv merges the manifest env block with the process environment.
// A variable set in the real environment overrides the manifest default.
func contextEnv(def *project.Definition) map[string]string {
	env := make(map[string]string, len(def.Env))
	for name, value := range def.Env {
		env[name] = value
		if actual, ok := os.LookupEnv(name); ok {
			env[name] = actual
		}
	}
	return env
}

// buildEntityRefs renders every resolved identifier so entities can
// reference each other. Identifier templates may only use ctx.env.
func buildEntityRefs(resolved map[string]*resolver.ResolvedEntity, env map[string]string) (map[string]render.EntityRef, error) {
	ctxr := render.NewContextRenderer()
	baseCtx := render.NewContext(env, nil)

	refs := make(map[string]render.EntityRef, len(resolved))
	for key, r := range resolved {
		name, err := ctxr.Render(r.IdentifierName(), baseCtx)
		if err != nil {
			return nil, err
		}
		schema, err := ctxr.Render(r.IdentifierSchema(), baseCtx)
		if err != nil {
			return nil, err
		}

		identifier := name
		if schema != "" {
			identifier = schema + "." + name
		}
		refs[key] = render.EntityRef{Identifier: identifier, Name: name, Schema: schema}
	}
	return refs, nil
}

// pipeline bundles the resolved project ready for rendering
type pipeline struct {
	def      *project.Definition
	resolved map[string]*resolver.ResolvedEntity
	ctx      *render.Context
	gen      *sqlgen.Generator
}

// buildPipeline loads the manifest and prepares the render context
func buildPipeline(manifestPath, templateDir string) (*pipeline, error) {
	def, err := loadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	resolved, err := resolver.ResolveAll(def)
	if err != nil {
		return nil, err
	}

	env := contextEnv(def)
	refs, err := buildEntityRefs(resolved, env)
	if err != nil {
		return nil, err
	}

	if templateDir == "" {
		templateDir = filepath.Join(filepath.Dir(manifestPath), "templates")
	}

	return &pipeline{
		def:      def,
		resolved: resolved,
		ctx:      render.NewContext(env, refs),
		gen:      sqlgen.NewGenerator(templateDir),
	}, nil
}

// orderedKeys returns entity keys with every 'from.target' source ahead of
// its dependents.
func (p *pipeline) orderedKeys() []string {
	placed := make(map[string]bool, len(p.resolved))
	var order []string

	var place func(key string)
	place = func(key string) {
		if placed[key] {
			return
		}
		placed[key] = true
		if src := p.resolved[key].FromTarget; src != "" {
			if _, ok := p.resolved[src]; ok {
				place(src)
			}
		}
		order = append(order, key)
	}

	for _, key := range p.def.EntityKeys() {
		place(key)
	}
	return order
}
