// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
)

// assert panics with msg if cond is false. It guards invariants that a bug in
// this package, not caller input, would violate.
func assert(cond bool, msg string, args ...any) {
	if !cond {
		if len(args) > 0 {
			msg = fmt.Sprintf(msg, args...)
		}
		panic(msg)
	}
}

// randText returns a cryptographically random, URL-safe identifier, used
// wherever this package needs to mint a session or event ID.
func randText() string {
	return rand.Text()
}

// remarshal round-trips from through JSON into to, which must be a pointer.
// It's used to convert between two Go representations of the same wire
// shape (for example, a caller-supplied struct and a generic map) without
// hand-writing a field-by-field copy.
func remarshal(from, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return fmt.Errorf("remarshal: %w", err)
	}
	if err := json.Unmarshal(data, to); err != nil {
		return fmt.Errorf("remarshal: %w", err)
	}
	return nil
}
