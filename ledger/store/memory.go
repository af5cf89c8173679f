// Package store provides Backend implementations.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/warp/metering-engine/ledger"
)

// =============================================================================
// MEMORY BACKEND - In-memory world state (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state map[string]ledger.Versioned
	keys  []string // sorted, for ordered prefix scans
}

func NewMemory() *Memory {
	return &Memory{state: make(map[string]ledger.Versioned)}
}

func (m *Memory) GetState(key string) (ledger.Versioned, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.state[key]
	return v, ok, nil
}

func (m *Memory) ScanState(prefix string, fn func(key string, v ledger.Versioned) error) error {
	m.mu.RLock()
	// Copy the matching range so fn runs without holding the lock.
	start := sort.SearchStrings(m.keys, prefix)
	var matched []string
	for i := start; i < len(m.keys) && strings.HasPrefix(m.keys[i], prefix); i++ {
		matched = append(matched, m.keys[i])
	}
	values := make([]ledger.Versioned, len(matched))
	for i, key := range matched {
		values[i] = m.state[key]
	}
	m.mu.RUnlock()

	for i, key := range matched {
		if err := fn(key, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyBatch commits a write-set atomically, bumping each key's version.
func (m *Memory) ApplyBatch(writes map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range writes {
		prev, ok := m.state[key]
		var version uint64 = 1
		if ok {
			version = prev.Version + 1
		} else {
			m.insertKeyLocked(key)
		}
		m.state[key] = ledger.Versioned{Value: value, Version: version}
	}
	return nil
}

// insertKeyLocked keeps m.keys sorted: O(log n) search + O(n) copy.
func (m *Memory) insertKeyLocked(key string) {
	i := sort.SearchStrings(m.keys, key)
	m.keys = append(m.keys, "")
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = key
}
