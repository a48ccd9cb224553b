package project

import (
	"fmt"
	"sort"
	"strings"

	"snowcraft/pkg/errors"
)

// EntityKind identifies the kind of warehouse object an entity provisions.
// A kind is fixed at load time and never changes afterwards.
type EntityKind string

const (
	KindPackage     EntityKind = "application package"
	KindApplication EntityKind = "application"
	KindComputePool EntityKind = "compute pool"
	KindService     EntityKind = "service"
	KindFunction    EntityKind = "function"
	KindProcedure   EntityKind = "procedure"
	KindStage       EntityKind = "stage"
	KindGeneric     EntityKind = "generic"
)

var knownKinds = map[EntityKind]bool{
	KindPackage:     true,
	KindApplication: true,
	KindComputePool: true,
	KindService:     true,
	KindFunction:    true,
	KindProcedure:   true,
	KindStage:       true,
	KindGeneric:     true,
}

// ParseEntityKind normalizes a manifest 'type' string into an EntityKind
func ParseEntityKind(s string) (EntityKind, bool) {
	kind := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	return kind, knownKinds[kind]
}

// Entity represents one declared resource in the project manifest. Identifier
// and Fields may still carry unresolved template expressions; resolution
// happens downstream.
type Entity struct {
	Key        string     // Manifest key of the entity
	Kind       EntityKind // Immutable after load
	Identifier Value      // Mapping with 'name' and optional 'schema'
	Fields     Value      // Remaining declared fields (mapping)
	MixinsUsed []string   // Mixin names in declaration order, order significant
	FromTarget string     // Weak reference key of the source entity, "" when absent
}

// Mixin is a named partial field mapping merged into entities. Mixins carry
// no identifier of their own and are never instantiated standalone.
type Mixin struct {
	Name   string
	Fields Value
}

// Definition holds all Entity and Mixin records of one loaded manifest for
// the lifetime of a CLI invocation.
type Definition struct {
	Entities map[string]*Entity
	Mixins   map[string]*Mixin
	Env      map[string]string
}

// EntityKeys returns the entity keys in sorted order for deterministic
// iteration.
func (d *Definition) EntityKeys() []string {
	keys := make([]string, 0, len(d.Entities))
	for k := range d.Entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveTarget resolves an entity's 'from.target' back-reference. The
// reference is a lookup key, never an owning pointer. Entities without a
// source return nil.
func (d *Definition) ResolveTarget(e *Entity) (*Entity, error) {
	if e.FromTarget == "" {
		return nil, nil
	}
	target, ok := d.Entities[e.FromTarget]
	if !ok {
		return nil, errors.DanglingReferenceError(e.Key, e.FromTarget)
	}
	return target, nil
}

// Reserved entity keys that are lifted out of the field mapping at load time.
const (
	keyType       = "type"
	keyIdentifier = "identifier"
	keyUseMixins  = "use_mixins"
	keyFrom       = "from"
)

// Load parses an already-decoded project manifest into a Definition.
// Serialization parsing is the caller's job; Load only validates shape.
func Load(manifest map[string]interface{}) (*Definition, error) {
	def := &Definition{
		Entities: make(map[string]*Entity),
		Mixins:   make(map[string]*Mixin),
		Env:      make(map[string]string),
	}

	if err := loadEnv(def, manifest["env"]); err != nil {
		return nil, err
	}
	if err := loadMixins(def, manifest["mixins"]); err != nil {
		return nil, err
	}
	if err := loadEntities(def, manifest["entities"]); err != nil {
		return nil, err
	}

	return def, nil
}

func loadEnv(def *Definition, raw interface{}) error {
	if raw == nil {
		return nil
	}
	env, ok := raw.(map[string]interface{})
	if !ok {
		return errors.SchemaError("'env' block must be a mapping", "env")
	}
	for name, v := range env {
		val, err := FromAny(v)
		if err != nil {
			return errors.SchemaError(fmt.Sprintf("invalid env value: %v", err), "env."+name)
		}
		text, ok := val.Text()
		if !ok {
			return errors.SchemaError("env values must be scalars", "env."+name)
		}
		def.Env[name] = text
	}
	return nil
}

func loadMixins(def *Definition, raw interface{}) error {
	if raw == nil {
		return nil
	}
	mixins, ok := raw.(map[string]interface{})
	if !ok {
		return errors.SchemaError("'mixins' block must be a mapping", "mixins")
	}
	for name, v := range mixins {
		fields, err := FromAny(v)
		if err != nil {
			return errors.SchemaError(fmt.Sprintf("invalid mixin: %v", err), "mixins."+name)
		}
		if _, ok := fields.Map(); !ok {
			return errors.SchemaError("mixin body must be a mapping", "mixins."+name)
		}
		def.Mixins[name] = &Mixin{Name: name, Fields: fields}
	}
	return nil
}

func loadEntities(def *Definition, raw interface{}) error {
	if raw == nil {
		return nil
	}
	entities, ok := raw.(map[string]interface{})
	if !ok {
		return errors.SchemaError("'entities' block must be a mapping", "entities")
	}

	for key, v := range entities {
		body, ok := v.(map[string]interface{})
		if !ok {
			return errors.SchemaError("entity body must be a mapping", "entities."+key)
		}
		entity, err := loadEntity(def, key, body)
		if err != nil {
			return err
		}
		def.Entities[key] = entity
	}
	return nil
}

func loadEntity(def *Definition, key string, body map[string]interface{}) (*Entity, error) {
	path := "entities." + key

	typeRaw, ok := body[keyType].(string)
	if !ok || typeRaw == "" {
		return nil, errors.SchemaError("entity missing required field 'type'", path)
	}
	kind, known := ParseEntityKind(typeRaw)
	if !known {
		return nil, errors.SchemaError(fmt.Sprintf("unknown entity type %q", typeRaw), path+".type")
	}

	identifier, err := loadIdentifier(body[keyIdentifier], path)
	if err != nil {
		return nil, err
	}

	mixinsUsed, err := loadUseMixins(def, key, body[keyUseMixins])
	if err != nil {
		return nil, err
	}

	fromTarget, err := loadFromTarget(body[keyFrom], path)
	if err != nil {
		return nil, err
	}

	// Entities deriving from a source may omit their identifier and inherit
	// the source's defaults at resolution time.
	if identifier.IsNull() && fromTarget == "" {
		return nil, errors.SchemaError("entity missing required field 'identifier'", path)
	}
	if identifier.IsNull() {
		identifier = MappingValue(nil)
	}

	fields := make(map[string]Value)
	for k, raw := range body {
		switch k {
		case keyType, keyIdentifier, keyUseMixins, keyFrom:
			continue
		}
		val, err := FromAny(raw)
		if err != nil {
			return nil, errors.SchemaError(fmt.Sprintf("invalid field: %v", err), path+"."+k)
		}
		fields[k] = val
	}

	return &Entity{
		Key:        key,
		Kind:       kind,
		Identifier: identifier,
		Fields:     MappingValue(fields),
		MixinsUsed: mixinsUsed,
		FromTarget: fromTarget,
	}, nil
}

// loadIdentifier accepts either a scalar name or a mapping with 'name' and
// optional 'schema'; both forms normalize to a mapping.
func loadIdentifier(raw interface{}, path string) (Value, error) {
	if raw == nil {
		return NullValue(), nil
	}
	switch id := raw.(type) {
	case string:
		return MappingValue(map[string]Value{"name": StringValue(id)}), nil
	case map[string]interface{}:
		val, err := FromAny(id)
		if err != nil {
			return Value{}, errors.SchemaError(fmt.Sprintf("invalid identifier: %v", err), path+".identifier")
		}
		return val, nil
	default:
		return Value{}, errors.SchemaError("identifier must be a string or a mapping", path+".identifier")
	}
}

func loadUseMixins(def *Definition, entityKey string, raw interface{}) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.SchemaError("'use_mixins' must be a list", "entities."+entityKey+".use_mixins")
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return nil, errors.SchemaError("'use_mixins' entries must be strings", "entities."+entityKey+".use_mixins")
		}
		if _, declared := def.Mixins[name]; !declared {
			return nil, errors.UnknownMixinError(entityKey, name)
		}
		names = append(names, name)
	}
	return names, nil
}

func loadFromTarget(raw interface{}, path string) (string, error) {
	if raw == nil {
		return "", nil
	}
	from, ok := raw.(map[string]interface{})
	if !ok {
		return "", errors.SchemaError("'from' must be a mapping with a 'target' key", path+".from")
	}
	target, ok := from["target"].(string)
	if !ok || target == "" {
		return "", errors.SchemaError("'from' requires a non-empty 'target'", path+".from.target")
	}
	return target, nil
}
