package project

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind discriminates the variants of a manifest Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMapping
)

// Value is a tagged union over the shapes a manifest field can take.
// Manifests are arbitrarily nested, so field values are strings, numbers,
// booleans, lists, or string-keyed mappings of further values.
type Value struct {
	kind    ValueKind
	str     string
	num     float64
	boolean bool
	list    []Value
	mapping map[string]Value
}

// NullValue returns the null Value
func NullValue() Value {
	return Value{kind: KindNull}
}

// StringValue wraps a string
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue wraps a number
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// BoolValue wraps a boolean
func BoolValue(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

// ListValue wraps a list of values
func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// MappingValue wraps a string-keyed mapping
func MappingValue(m map[string]Value) Value {
	if m == nil {
		m = make(map[string]Value)
	}
	return Value{kind: KindMapping, mapping: m}
}

// FromAny converts a decoded YAML/JSON value into a Value
func FromAny(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case int64:
		return NumberValue(float64(x)), nil
	case float64:
		return NumberValue(x), nil
	case []interface{}:
		items := make([]Value, 0, len(x))
		for i, item := range x {
			val, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("list index %d: %w", i, err)
			}
			items = append(items, val)
		}
		return ListValue(items...), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			val, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = val
		}
		return MappingValue(m), nil
	default:
		return Value{}, fmt.Errorf("unsupported manifest value type %T", v)
	}
}

// Kind returns the variant tag
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsString returns the string payload
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsNumber returns the numeric payload
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the boolean payload
func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// Items returns the list payload
func (v Value) Items() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// Map returns the mapping payload
func (v Value) Map() (map[string]Value, bool) {
	return v.mapping, v.kind == KindMapping
}

// Get looks up a key in a mapping value
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	val, ok := v.mapping[key]
	return val, ok
}

// GetString looks up a key and returns its string payload, or "" when the
// key is absent or not a string.
func (v Value) GetString(key string) string {
	val, ok := v.Get(key)
	if !ok {
		return ""
	}
	s, _ := val.AsString()
	return s
}

// Text renders a scalar value as literal text. Lists and mappings have no
// scalar rendering and report false.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.boolean), true
	default:
		return "", false
	}
}

// String renders the value for diagnostics, with mapping keys sorted so the
// output is deterministic.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMapping:
		keys := make([]string, 0, len(v.mapping))
		for k := range v.mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.mapping[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

// Any converts the value back to plain Go data (string, float64, bool,
// []interface{}, map[string]interface{}), the shape template parameters use.
func (v Value) Any() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.boolean
	case KindList:
		items := make([]interface{}, len(v.list))
		for i, item := range v.list {
			items[i] = item.Any()
		}
		return items
	case KindMapping:
		m := make(map[string]interface{}, len(v.mapping))
		for k, item := range v.mapping {
			m[k] = item.Any()
		}
		return m
	default:
		return nil
	}
}

// Clone returns a deep copy of the value
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return Value{kind: KindList, list: items}
	case KindMapping:
		m := make(map[string]Value, len(v.mapping))
		for k, item := range v.mapping {
			m[k] = item.Clone()
		}
		return Value{kind: KindMapping, mapping: m}
	default:
		return v
	}
}

// DeepMerge merges overlay onto base. When both sides are mappings the merge
// recurses so child keys follow last-wins individually; any other collision
// replaces the base value wholesale. Neither input is mutated.
func DeepMerge(base, overlay Value) Value {
	baseMap, baseOK := base.Map()
	overMap, overOK := overlay.Map()
	if !baseOK || !overOK {
		return overlay.Clone()
	}

	merged := make(map[string]Value, len(baseMap)+len(overMap))
	for k, v := range baseMap {
		merged[k] = v.Clone()
	}
	for k, v := range overMap {
		if existing, ok := merged[k]; ok {
			merged[k] = DeepMerge(existing, v)
		} else {
			merged[k] = v.Clone()
		}
	}
	return MappingValue(merged)
}
