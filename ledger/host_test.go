package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/metering-engine/ledger"
	"github.com/warp/metering-engine/ledger/store"
)

type record struct {
	Name  string
	Count int
}

func newHost() *ledger.Host {
	return ledger.NewHost(store.NewMemory())
}

// =============================================================================
// COMMIT / DISCARD SEMANTICS
// =============================================================================

func TestInvoke_CommitsWholeWriteSet(t *testing.T) {
	host := newHost()
	ctx := context.Background()

	err := host.Invoke(ctx, func(tx ledger.RecordStore) error {
		if err := tx.Put(ctx, "a", record{Name: "a", Count: 1}); err != nil {
			return err
		}
		return tx.Put(ctx, "b", record{Name: "b", Count: 2})
	})
	require.NoError(t, err)

	err = host.Invoke(ctx, func(tx ledger.RecordStore) error {
		var a, b record
		if err := tx.Get(ctx, "a", &a); err != nil {
			return err
		}
		if err := tx.Get(ctx, "b", &b); err != nil {
			return err
		}
		assert.Equal(t, 1, a.Count)
		assert.Equal(t, 2, b.Count)
		return nil
	})
	require.NoError(t, err)
}

func TestInvoke_ErrorDiscardsEveryBufferedWrite(t *testing.T) {
	// GIVEN: An invocation that writes, then fails
	// THEN: None of its writes are observable afterward

	host := newHost()
	ctx := context.Background()
	boom := errors.New("boom")

	err := host.Invoke(ctx, func(tx ledger.RecordStore) error {
		if err := tx.Put(ctx, "a", record{Name: "a"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = host.Invoke(ctx, func(tx ledger.RecordStore) error {
		var a record
		getErr := tx.Get(ctx, "a", &a)
		assert.True(t, ledger.IsNotFound(getErr), "discarded write must not be visible")
		return nil
	})
	require.NoError(t, err)
}

func TestInvoke_ReadYourWrites(t *testing.T) {
	host := newHost()
	ctx := context.Background()

	err := host.Invoke(ctx, func(tx ledger.RecordStore) error {
		if err := tx.Put(ctx, "a", record{Count: 7}); err != nil {
			return err
		}
		var a record
		if err := tx.Get(ctx, "a", &a); err != nil {
			return err
		}
		assert.Equal(t, 7, a.Count)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// NOT-FOUND TAXONOMY
// =============================================================================

func TestGet_Missing_ReturnsTypedNotFound(t *testing.T) {
	host := newHost()
	ctx := context.Background()

	err := host.Invoke(ctx, func(tx ledger.RecordStore) error {
		var out record
		getErr := tx.Get(ctx, ledger.CompositeKey("fee-exemption", "nobody"), &out)
		require.Error(t, getErr)
		assert.True(t, ledger.IsNotFound(getErr))

		var nf *ledger.NotFoundError
		require.ErrorAs(t, getErr, &nf)
		assert.Equal(t, "fee-exemption", nf.Kind)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// SCANS
// =============================================================================

func TestScan_OrderedAndOverlaidWithBuffer(t *testing.T) {
	host := newHost()
	ctx := context.Background()

	require.NoError(t, host.Invoke(ctx, func(tx ledger.RecordStore) error {
		if err := tx.Put(ctx, ledger.CompositeKey("idx", "b"), record{Name: "b"}); err != nil {
			return err
		}
		return tx.Put(ctx, ledger.CompositeKey("idx", "c"), record{Name: "c"})
	}))

	err := host.Invoke(ctx, func(tx ledger.RecordStore) error {
		// A buffered write lands in the scan alongside committed keys.
		if err := tx.Put(ctx, ledger.CompositeKey("idx", "a"), record{Name: "a"}); err != nil {
			return err
		}
		var names []string
		scanErr := tx.Scan(ctx, ledger.CompositePrefix("idx"), func(_ string, value []byte) error {
			var r record
			if err := json.Unmarshal(value, &r); err != nil {
				return err
			}
			names = append(names, r.Name)
			return nil
		})
		require.NoError(t, scanErr)
		assert.Equal(t, []string{"a", "b", "c"}, names, "ascending byte order")
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// SNAPSHOT + CONFLICT DETECTION
// =============================================================================

func TestInvoke_SnapshotReads_StableWithinInvocation(t *testing.T) {
	host := newHost()
	ctx := context.Background()

	require.NoError(t, host.Invoke(ctx, func(tx ledger.RecordStore) error {
		return tx.Put(ctx, "k", record{Count: 1})
	}))

	err := host.Invoke(ctx, func(tx ledger.RecordStore) error {
		var first record
		if err := tx.Get(ctx, "k", &first); err != nil {
			return err
		}

		// Another transaction commits in between.
		commitDirect(t, host, "k", record{Count: 99})

		var second record
		if err := tx.Get(ctx, "k", &second); err != nil {
			return err
		}
		assert.Equal(t, first.Count, second.Count, "snapshot must not move mid-invocation")
		return nil
	})
	// The invocation wrote nothing, so it commits without conflict.
	require.NoError(t, err)
}

func TestInvoke_ConflictingCommit_Invalidated(t *testing.T) {
	// GIVEN: An invocation that read a key another transaction then updated
	// WHEN: The invocation tries to commit its own write
	// THEN: It loses - ErrWriteConflict, nothing applied

	host := newHost()
	ctx := context.Background()

	require.NoError(t, host.Invoke(ctx, func(tx ledger.RecordStore) error {
		return tx.Put(ctx, "k", record{Count: 1})
	}))

	err := host.Invoke(ctx, func(tx ledger.RecordStore) error {
		var r record
		if err := tx.Get(ctx, "k", &r); err != nil {
			return err
		}
		commitDirect(t, host, "k", record{Count: 50})
		return tx.Put(ctx, "k", record{Count: r.Count + 1})
	})
	require.ErrorIs(t, err, ledger.ErrWriteConflict)

	// The winner's value stands.
	require.NoError(t, host.Invoke(ctx, func(tx ledger.RecordStore) error {
		var r record
		if err := tx.Get(ctx, "k", &r); err != nil {
			return err
		}
		assert.Equal(t, 50, r.Count)
		return nil
	}))
}

// commitDirect commits a single write through a separate invocation.
func commitDirect(t *testing.T, host *ledger.Host, key string, r record) {
	t.Helper()
	require.NoError(t, host.Invoke(context.Background(), func(tx ledger.RecordStore) error {
		return tx.Put(context.Background(), key, r)
	}))
}
