// internal/store/memory.go
//
// In-memory stores used for ephemeral play state.
//   - Rounds: live *round.Round machines keyed by round ID.
//   - MemoryKV: a session.KV for guests and tests.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Missing keys on Get return ErrNotFound (Rounds) or ok=false (KV).

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/grasdvirus/double-words-sub000/internal/round"
)

// ErrNotFound is returned for unknown round IDs.
var ErrNotFound = errors.New("not found")

// Rounds defines the registry of live rounds.
// Implementations may be backed by memory (this package), Redis, etc.
type Rounds interface {
	// Save registers or replaces a round under owner.
	Save(ctx context.Context, owner string, r *round.Round) error

	// Get retrieves a round by ID for owner.
	// Returns ErrNotFound if the round is missing or belongs to someone else.
	Get(ctx context.Context, owner, id string) (*round.Round, error)
}

type entry struct {
	owner string
	round *round.Round
}

// memoryRounds is an in-memory map-based Rounds implementation.
type memoryRounds struct {
	mu     sync.RWMutex
	rounds map[string]entry  // keyed by round ID
	latest map[string]string // owner|mode -> round ID; a new round replaces the old one
}

// NewMemoryRounds constructs a new in-memory Rounds registry.
func NewMemoryRounds() Rounds {
	return &memoryRounds{rounds: make(map[string]entry), latest: make(map[string]string)}
}

// Save adds the round and evicts the owner's previous round of the same mode.
func (m *memoryRounds) Save(ctx context.Context, owner string, r *round.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := owner + "|" + string(r.Policy().Mode)
	if prev, ok := m.latest[slot]; ok && prev != r.ID() {
		delete(m.rounds, prev)
	}
	m.latest[slot] = r.ID()
	m.rounds[r.ID()] = entry{owner: owner, round: r}
	return nil
}

// Get looks up a round by ID.
func (m *memoryRounds) Get(ctx context.Context, owner, id string) (*round.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.rounds[id]; ok && e.owner == owner {
		return e.round, nil
	}
	return nil, ErrNotFound
}

// MemoryKV is a map-backed session.KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV constructs an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return append([]byte(nil), v...), ok, nil
}

// Set stores a copy of value under key.
func (m *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Clear removes key.
func (m *MemoryKV) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
