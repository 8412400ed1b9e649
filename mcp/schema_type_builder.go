// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaTypeBuilder synthesizes a Go struct type from a JSON schema at
// runtime, so reflection-based validation can unmarshal a tool call's
// arguments (or a task's stored result) into a concrete typed value instead
// of a bag of map[string]any. Built types are cached by a structural key of
// the schema, since the same tool's input schema is rebuilt on every call in
// a stateless deployment.
type SchemaTypeBuilder struct {
	mu    sync.RWMutex
	cache map[string]reflect.Type
}

// NewSchemaTypeBuilder returns a builder with an empty type cache.
func NewSchemaTypeBuilder() *SchemaTypeBuilder {
	return &SchemaTypeBuilder{
		cache: make(map[string]reflect.Type),
	}
}

// BuildType returns the reflect.Type corresponding to schema, building and
// caching it on first use.
func (b *SchemaTypeBuilder) BuildType(schema *jsonschema.Schema) (reflect.Type, error) {
	if schema == nil {
		return nil, fmt.Errorf("mcp: cannot build a type from a nil schema")
	}

	key := schemaCacheKey(schema)

	b.mu.RLock()
	cached, ok := b.cache[key]
	b.mu.RUnlock()
	if ok {
		return cached, nil
	}

	typ, err := b.reflectType(schema)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.cache[key] = typ
	b.mu.Unlock()

	return typ, nil
}

// reflectType dispatches on the schema's declared type, recursing into
// object properties and array items as needed.
func (b *SchemaTypeBuilder) reflectType(schema *jsonschema.Schema) (reflect.Type, error) {
	switch schema.Type {
	case "string":
		return reflect.TypeOf(""), nil
	case "number":
		return reflect.TypeOf(float64(0)), nil
	case "integer":
		return reflect.TypeOf(int64(0)), nil
	case "boolean":
		return reflect.TypeOf(false), nil
	case "object":
		return b.BuildStructType(schema)
	case "array":
		return b.reflectArrayType(schema)
	default:
		return nil, fmt.Errorf("mcp: unsupported schema type %q", schema.Type)
	}
}

// BuildStructType builds an anonymous struct type from an object schema,
// one exported field per property, using a pointer type for properties not
// listed in the schema's Required slice.
func (b *SchemaTypeBuilder) BuildStructType(schema *jsonschema.Schema) (reflect.Type, error) {
	if schema.Type != "object" {
		return nil, fmt.Errorf("mcp: BuildStructType requires an object schema, got %q", schema.Type)
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	fields := make([]reflect.StructField, 0, len(schema.Properties))
	for propName, propSchema := range schema.Properties {
		fieldType, err := b.reflectType(propSchema)
		if err != nil {
			return nil, fmt.Errorf("mcp: building type for property %q: %w", propName, err)
		}
		isRequired := required[propName]
		if !isRequired {
			fieldType = reflect.PtrTo(fieldType)
		}
		fields = append(fields, reflect.StructField{
			Name: goFieldName(propName),
			Type: fieldType,
			Tag:  jsonFieldTag(propName, isRequired),
		})
	}

	return reflect.StructOf(fields), nil
}

func (b *SchemaTypeBuilder) reflectArrayType(schema *jsonschema.Schema) (reflect.Type, error) {
	if schema.Items == nil {
		return reflect.TypeOf([]any{}), nil
	}
	itemType, err := b.reflectType(schema.Items)
	if err != nil {
		return nil, fmt.Errorf("mcp: building array item type: %w", err)
	}
	return reflect.SliceOf(itemType), nil
}

// goFieldName converts a snake_case (or already-PascalCase) JSON property
// name into an exported Go struct field name.
func goFieldName(propName string) string {
	var out strings.Builder
	for _, part := range strings.Split(propName, "_") {
		if part == "" {
			continue
		}
		out.WriteString(strings.ToUpper(part[:1]))
		out.WriteString(part[1:])
	}
	name := out.String()
	if name == "" || name[0] < 'A' || name[0] > 'Z' {
		name = "Field" + name
	}
	return name
}

func jsonFieldTag(propName string, required bool) reflect.StructTag {
	tag := propName
	if !required {
		tag += ",omitempty"
	}
	return reflect.StructTag(fmt.Sprintf(`json:"%s"`, tag))
}

// schemaCacheKey builds a deterministic string key from a schema's
// structure, used by [SchemaTypeBuilder] to recognize structurally
// identical schemas without relying on pointer identity.
func schemaCacheKey(schema *jsonschema.Schema) string {
	var key strings.Builder
	writeSchemaKey(&key, schema)
	return key.String()
}

func writeSchemaKey(key *strings.Builder, schema *jsonschema.Schema) {
	key.WriteString(schema.Type)

	switch {
	case schema.Type == "object":
		key.WriteByte('{')
		propNames := make([]string, 0, len(schema.Properties))
		for propName := range schema.Properties {
			propNames = append(propNames, propName)
		}
		sort.Strings(propNames)
		for _, propName := range propNames {
			key.WriteString(propName)
			key.WriteByte(':')
			writeSchemaKey(key, schema.Properties[propName])
			key.WriteByte(';')
		}
		key.WriteString("req:")
		for _, req := range schema.Required {
			key.WriteString(req)
			key.WriteByte(',')
		}
		key.WriteByte('}')
	case schema.Type == "array" && schema.Items != nil:
		key.WriteByte('[')
		writeSchemaKey(key, schema.Items)
		key.WriteByte(']')
	}
}
