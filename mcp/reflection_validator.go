// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// ReflectionValidator validates tool call arguments against a resolved JSON
// schema by reflecting a matching Go struct type out of the schema first.
// Unmarshaling into that struct, rather than a bare map, catches type
// mismatches (a string where the schema says integer) with a precise
// encoding/json error instead of a generic schema-validation failure.
type ReflectionValidator struct {
	builder *SchemaTypeBuilder
}

// NewReflectionValidator returns a ReflectionValidator with a fresh
// [SchemaTypeBuilder].
func NewReflectionValidator() *ReflectionValidator {
	return &ReflectionValidator{builder: NewSchemaTypeBuilder()}
}

// SchemaValidationError reports which step of schema validation failed.
// Operation identifies the step (see the op* constants below); Cause is the
// underlying error.
type SchemaValidationError struct {
	Operation string
	Schema    *jsonschema.Schema
	Resolved  *jsonschema.Resolved
	Data      json.RawMessage
	Cause     error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed during %s: %v", e.Operation, e.Cause)
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Cause
}

// Operation values reported in [SchemaValidationError.Operation].
// opSchemaConversion in particular is a recognized sentinel: callers that
// can't afford a reflection-built type (the schema doesn't map cleanly onto
// a Go struct) check for it and fall back to map-based validation instead
// of treating it as fatal.
const (
	opSchemaExtraction    = "schema_extraction"
	opSchemaConversion    = "schema_conversion"
	opUnmarshaling        = "unmarshaling"
	opReflectionValidate  = "reflection_validation"
	opApplyingDefaults    = "applying_defaults"
	opValidation          = "validation"
	opFinalMarshaling     = "final_marshaling"
)

func schemaValidationErr(op string, schema *jsonschema.Schema, resolved *jsonschema.Resolved, data json.RawMessage, cause error) *SchemaValidationError {
	return &SchemaValidationError{Operation: op, Schema: schema, Resolved: resolved, Data: data, Cause: cause}
}

// ValidateAndApply validates data against resolved and returns data with any
// schema defaults applied.
//
// If resolved is nil, data is returned unchanged: there's nothing to
// validate against. Otherwise it reflects a Go struct type out of the
// schema (see [SchemaTypeBuilder]), unmarshals data into a value of that
// type purely to surface precise type errors, then does the actual
// default-application and validation against a generic map so the result
// preserves any fields the reflected struct type couldn't represent.
func (v *ReflectionValidator) ValidateAndApply(data json.RawMessage, resolved *jsonschema.Resolved) (json.RawMessage, error) {
	if resolved == nil {
		return data, nil
	}

	schema := resolved.Schema()
	if schema == nil {
		return nil, schemaValidationErr(opSchemaExtraction, nil, resolved, data,
			fmt.Errorf("resolved schema contains no schema definition"))
	}

	structType, err := v.builder.BuildType(schema)
	if err != nil {
		return nil, schemaValidationErr(opSchemaConversion, schema, resolved, data, err)
	}

	mapData := make(map[string]any)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &mapData); err != nil {
			return nil, schemaValidationErr(opUnmarshaling, schema, resolved, data,
				fmt.Errorf("unmarshaling into map: %w", err))
		}

		typed := reflect.New(structType).Interface()
		if err := json.Unmarshal(data, typed); err != nil {
			return nil, schemaValidationErr(opReflectionValidate, schema, resolved, data,
				fmt.Errorf("reflection-based type validation failed: %w", err))
		}
	}

	if err := resolved.ApplyDefaults(&mapData); err != nil {
		return nil, schemaValidationErr(opApplyingDefaults, schema, resolved, data,
			fmt.Errorf("applying schema defaults: %w", err))
	}
	if err := resolved.Validate(&mapData); err != nil {
		return nil, schemaValidationErr(opValidation, schema, resolved, data, err)
	}

	result, err := json.Marshal(mapData)
	if err != nil {
		return nil, schemaValidationErr(opFinalMarshaling, schema, resolved, data,
			fmt.Errorf("marshaling final result: %w", err))
	}
	return result, nil
}
