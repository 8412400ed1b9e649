// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// StrictUnmarshal decodes data into v the way [encoding/json.Unmarshal] does,
// but rejects inputs that a case-insensitive decoder would normally let
// through silently:
//
//   - two keys in the same object that differ only in case (e.g. "id" and "Id")
//   - an object key that matches a struct field's JSON tag only up to case
//   - any key with no corresponding struct field at all
//
// JSON-RPC 2.0 field names are case-sensitive; without these checks a peer
// could smuggle a value past validation logic that only ever looks at the
// canonically-cased field.
func StrictUnmarshal(data []byte, v any) error {
	if err := checkObjectCasing(data, fieldNamesOf(v)); err != nil {
		return fmt.Errorf("strict unmarshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("strict unmarshal: %w", err)
	}
	return nil
}

// fieldNamesOf returns the set of JSON field names that a struct (or pointer
// to struct) declares via its `json` tags. Non-struct values yield an empty
// set, since casing conflicts only apply to object keys.
func fieldNamesOf(v any) map[string]bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	names := make(map[string]bool)
	if t == nil || t.Kind() != reflect.Struct {
		return names
	}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			names[name] = true
		}
	}
	return names
}

// checkObjectCasing walks data looking for objects whose keys collide
// case-insensitively with each other, or with the names in topLevel (which
// applies only at the outermost object; nested objects are checked only for
// key collisions among themselves, since their expected field sets aren't
// known to the caller).
func checkObjectCasing(data []byte, topLevel map[string]bool) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		// Not an object: arrays and scalars can't have casing collisions.
		return nil
	}

	byLower := make(map[string]string, len(obj))
	for key := range obj {
		lower := strings.ToLower(key)
		if other, dup := byLower[lower]; dup && other != key {
			return fmt.Errorf("duplicate key with different case: %q and %q", other, key)
		}
		byLower[lower] = key
	}
	if len(topLevel) > 0 {
		for key := range obj {
			if topLevel[key] {
				continue
			}
			for want := range topLevel {
				if strings.EqualFold(want, key) {
					return fmt.Errorf("field name case mismatch: got %q, expected %q", key, want)
				}
			}
			// Keys matching no field at all are left to DisallowUnknownFields.
		}
	}

	for key, val := range obj {
		if err := checkNestedCasing(val); err != nil {
			return fmt.Errorf("in field %q: %w", key, err)
		}
	}
	return nil
}

// checkNestedCasing recurses into arrays and objects below the top level,
// where only key-to-key collisions (not collisions against a known field
// set) can be checked.
func checkNestedCasing(data json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		return checkObjectCasing(data, nil)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		for i, elem := range arr {
			if err := checkNestedCasing(elem); err != nil {
				return fmt.Errorf("in array index %d: %w", i, err)
			}
		}
	}
	return nil
}
