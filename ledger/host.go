/*
host.go - Invocation transactions over a Backend

PURPOSE:
  Host reproduces the execution model the engine is written against:

  1. An invocation reads a stable snapshot of world state.
  2. Every Put is buffered in a write-set local to the invocation.
  3. If the invocation returns nil, the write-set commits atomically.
  4. If it returns any error, the entire write-set is discarded - including
     writes made before the failing step. Partial application is never an
     observable state.

SNAPSHOT READS:
  The first Get of a key caches the committed value and its version; later
  reads of the same key are served from the cache, so an invocation never
  observes two different committed values for one key.

CONFLICT DETECTION:
  Commit re-checks the version of every key the invocation read. If another
  transaction committed in between, commit fails with ErrWriteConflict and
  the write-set is dropped - the losing invocation simply never applies.
  The engine itself performs no compare-and-swap, retry, or backoff.

SEE ALSO:
  - store.go:        RecordStore and Backend contracts
  - store/memory.go: in-memory Backend
*/
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Host runs invocations against a Backend with buffered-write semantics.
type Host struct {
	backend  Backend
	commitMu sync.Mutex
}

func NewHost(backend Backend) *Host {
	return &Host{backend: backend}
}

// Backend exposes the committed state underneath this host. Read-only use.
func (h *Host) Backend() Backend { return h.backend }

// Invoke executes fn inside a fresh transaction. The write-set commits
// atomically iff fn returns nil; fn's error (or ErrWriteConflict) otherwise
// propagates and nothing is applied.
func (h *Host) Invoke(ctx context.Context, fn func(tx RecordStore) error) error {
	tx := &txn{
		host:   h,
		reads:  make(map[string]uint64),
		cache:  make(map[string][]byte),
		writes: make(map[string][]byte),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return h.commit(tx)
}

func (h *Host) commit(tx *txn) error {
	if len(tx.writes) == 0 {
		return nil
	}
	h.commitMu.Lock()
	defer h.commitMu.Unlock()

	// Validate the read-set: every key must still be at the version this
	// transaction observed (version 0 = observed absent).
	for key, seen := range tx.reads {
		cur, ok, err := h.backend.GetState(key)
		if err != nil {
			return err
		}
		var now uint64
		if ok {
			now = cur.Version
		}
		if now != seen {
			return fmt.Errorf("%w: key %q", ErrWriteConflict, key)
		}
	}
	return h.backend.ApplyBatch(tx.writes)
}

// =============================================================================
// TXN - RecordStore implementation for one invocation
// =============================================================================

type txn struct {
	host   *Host
	reads  map[string]uint64 // key -> version observed at first read
	cache  map[string][]byte // key -> committed value at first read (nil = absent)
	writes map[string][]byte // buffered write-set
}

var _ RecordStore = (*txn)(nil)

func (t *txn) Get(_ context.Context, key string, out any) error {
	// Read-your-writes: the buffer shadows committed state.
	if raw, ok := t.writes[key]; ok {
		return json.Unmarshal(raw, out)
	}
	raw, ok, err := t.snapshot(key)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Kind: recordKind(key), Key: key}
	}
	return json.Unmarshal(raw, out)
}

func (t *txn) Put(_ context.Context, key string, rec any) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %q: %w", key, err)
	}
	t.writes[key] = raw
	return nil
}

func (t *txn) Scan(_ context.Context, prefix string, fn func(key string, value []byte) error) error {
	// Committed keys under the prefix, overlaid with this txn's own writes.
	merged := make(map[string][]byte)
	err := t.host.backend.ScanState(prefix, func(key string, v Versioned) error {
		t.observe(key, v.Version, v.Value)
		merged[key] = v.Value
		return nil
	})
	if err != nil {
		return err
	}
	for key, raw := range t.writes {
		if strings.HasPrefix(key, prefix) {
			merged[key] = raw
		}
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := fn(key, merged[key]); err != nil {
			return err
		}
	}
	return nil
}

// snapshot returns the value of key as of this transaction's first read.
func (t *txn) snapshot(key string) ([]byte, bool, error) {
	if _, seen := t.reads[key]; seen {
		raw := t.cache[key]
		return raw, raw != nil, nil
	}
	v, ok, err := t.host.backend.GetState(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		t.observe(key, 0, nil)
		return nil, false, nil
	}
	t.observe(key, v.Version, v.Value)
	return v.Value, true, nil
}

func (t *txn) observe(key string, version uint64, value []byte) {
	if _, seen := t.reads[key]; seen {
		return
	}
	t.reads[key] = version
	t.cache[key] = value
}

func recordKind(key string) string {
	if index, _ := SplitCompositeKey(key); index != "" {
		return index
	}
	return "record"
}
