// Package resolver flattens mixin and entity field mappings into the
// effective per-entity configuration consumed by the template renderer.
package resolver

import (
	"snowcraft/internal/project"
	"snowcraft/pkg/errors"
)

// ResolvedEntity is the output of mixin resolution: an entity with its field
// mapping flattened but template expressions still unexpanded. Instances are
// created once per resolution pass and treated as immutable afterwards.
type ResolvedEntity struct {
	Key        string
	Kind       project.EntityKind
	Identifier project.Value // Flattened identifier mapping
	Fields     project.Value // Flattened field mapping
	FromTarget string        // Weak key of the source entity, "" when absent
}

// IdentifierName returns the resolved base name, possibly still a template
// expression.
func (r *ResolvedEntity) IdentifierName() string {
	return r.Identifier.GetString("name")
}

// IdentifierSchema returns the resolved schema, "" when unset
func (r *ResolvedEntity) IdentifierSchema() string {
	return r.Identifier.GetString("schema")
}

// Resolve flattens an entity against the mixin table. Mixins apply in
// declaration order with later mixins overriding earlier ones; the entity's
// own fields win over any mixin value. Nested mappings merge recursively so
// a later mixin overrides colliding child keys individually, never the whole
// sub-mapping. Pure function of its inputs.
func Resolve(entity *project.Entity, mixins map[string]*project.Mixin) (*ResolvedEntity, error) {
	flattened := project.MappingValue(nil)

	for _, name := range entity.MixinsUsed {
		mixin, ok := mixins[name]
		if !ok {
			// Load already validated the list; re-check so a hand-built
			// entity cannot slip an unknown name through.
			return nil, errors.UnknownMixinError(entity.Key, name)
		}
		flattened = project.DeepMerge(flattened, mixin.Fields)
	}

	flattened = project.DeepMerge(flattened, entity.Fields)

	// The identifier follows the same rule: mixin-supplied identifier
	// defaults first, entity-specific identifier fields on top.
	identifier := project.MappingValue(nil)
	if mixinID, ok := flattened.Get("identifier"); ok {
		identifier = project.DeepMerge(identifier, mixinID)
	}
	identifier = project.DeepMerge(identifier, entity.Identifier)

	return &ResolvedEntity{
		Key:        entity.Key,
		Kind:       entity.Kind,
		Identifier: identifier,
		Fields:     withoutKey(flattened, "identifier"),
		FromTarget: entity.FromTarget,
	}, nil
}

// ResolveAll resolves every entity in the definition. An entity declaring
// 'from.target' inherits identifier defaults from its resolved source before
// mixins and its own identifier fields apply. Source chains resolve
// depth-first; a reference cycle is reported as a dangling reference rather
// than recursing forever.
func ResolveAll(def *project.Definition) (map[string]*ResolvedEntity, error) {
	resolved := make(map[string]*ResolvedEntity, len(def.Entities))
	inProgress := make(map[string]bool)

	var resolveKey func(key string) (*ResolvedEntity, error)
	resolveKey = func(key string) (*ResolvedEntity, error) {
		if r, ok := resolved[key]; ok {
			return r, nil
		}
		entity := def.Entities[key]
		if inProgress[key] {
			return nil, errors.DanglingReferenceError(key, entity.FromTarget).
				WithContext("reason", "cyclic from.target chain")
		}
		inProgress[key] = true
		defer delete(inProgress, key)

		r, err := Resolve(entity, def.Mixins)
		if err != nil {
			return nil, err
		}

		source, err := def.ResolveTarget(entity)
		if err != nil {
			return nil, err
		}
		if source != nil {
			sourceResolved, err := resolveKey(source.Key)
			if err != nil {
				return nil, err
			}
			r.Identifier = project.DeepMerge(sourceResolved.Identifier, r.Identifier)
		}

		resolved[key] = r
		return r, nil
	}

	for _, key := range def.EntityKeys() {
		if _, err := resolveKey(key); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// withoutKey returns a copy of a mapping value with one key removed
func withoutKey(v project.Value, key string) project.Value {
	m, ok := v.Map()
	if !ok {
		return v
	}
	out := make(map[string]project.Value, len(m))
	for k, val := range m {
		if k == key {
			continue
		}
		out[k] = val
	}
	return project.MappingValue(out)
}
