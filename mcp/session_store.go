// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ServerSessionStateStore persists [ServerSessionState] across process
// restarts, so a Streamable HTTP server can resume a session after a
// redeploy instead of forcing every client to re-initialize.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type ServerSessionStateStore interface {
	// Load fetches the state previously saved for sessionID. A nil, nil
	// return means nothing is stored for that ID.
	Load(ctx context.Context, sessionID string) (*ServerSessionState, error)

	// Save records state under sessionID, overwriting anything stored there
	// before. Passing a nil state is equivalent to calling Delete. Callers
	// must not mutate state after Save returns.
	Save(ctx context.Context, sessionID string, state *ServerSessionState) error

	// Delete removes any state recorded under sessionID. Deleting an ID with
	// no recorded state is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// MemoryServerSessionStateStore is a [ServerSessionStateStore] backed by a
// process-local map. It does not survive a restart; use it for tests and for
// single-process deployments that don't need resumption across redeploys.
type MemoryServerSessionStateStore struct {
	mu   sync.RWMutex
	byID map[string][]byte
}

// NewMemoryServerSessionStateStore returns an empty
// MemoryServerSessionStateStore.
func NewMemoryServerSessionStateStore() *MemoryServerSessionStateStore {
	return &MemoryServerSessionStateStore{byID: make(map[string][]byte)}
}

// Load implements [ServerSessionStateStore].
func (m *MemoryServerSessionStateStore) Load(ctx context.Context, sessionID string) (*ServerSessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	encoded, ok := m.byID[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var state ServerSessionState
	if err := json.Unmarshal(encoded, &state); err != nil {
		return nil, fmt.Errorf("decoding stored session state: %w", err)
	}
	return &state, nil
}

// Save implements [ServerSessionStateStore].
func (m *MemoryServerSessionStateStore) Save(ctx context.Context, sessionID string, state *ServerSessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		return m.Delete(ctx, sessionID)
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	m.mu.Lock()
	m.byID[sessionID] = encoded
	m.mu.Unlock()
	return nil
}

// Delete implements [ServerSessionStateStore].
func (m *MemoryServerSessionStateStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.byID, sessionID)
	m.mu.Unlock()
	return nil
}
