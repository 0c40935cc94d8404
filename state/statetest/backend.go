// Package statetest holds conformance checks shared by every state.Backend.
package statetest

import (
	"bytes"
	"testing"

	"xdao.co/diamond/state"
)

// NewBackend constructs a fresh, empty backend for one subtest.
type NewBackend func(t *testing.T) state.Backend

func RunBackendConformance(t *testing.T, newBackend NewBackend) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		b := newBackend(t)
		v, ok, err := b.Get([]byte("absent"))
		if err != nil || ok || v != nil {
			t.Fatalf("Get(absent) = %v, %v, %v", v, ok, err)
		}
	})

	t.Run("ApplyPutOverwriteDelete", func(t *testing.T) {
		b := newBackend(t)
		mustApply(t, b, state.Write{Key: []byte("a"), Value: []byte("1")}, state.Write{Key: []byte("b"), Value: []byte("2")})
		mustApply(t, b, state.Write{Key: []byte("a"), Value: []byte("3")}, state.Write{Key: []byte("b"), Delete: true})

		expect(t, b, "a", "3")
		if _, ok, _ := b.Get([]byte("b")); ok {
			t.Fatalf("b should be deleted")
		}
	})

	t.Run("EmptyValueIsPresent", func(t *testing.T) {
		b := newBackend(t)
		mustApply(t, b, state.Write{Key: []byte("k"), Value: []byte{}})
		v, ok, err := b.Get([]byte("k"))
		if err != nil || !ok || len(v) != 0 {
			t.Fatalf("Get(k) = %v, %v, %v", v, ok, err)
		}
	})

	t.Run("IteratePrefixOrdered", func(t *testing.T) {
		b := newBackend(t)
		mustApply(t, b,
			state.Write{Key: []byte("ledger/bal/2"), Value: []byte("x")},
			state.Write{Key: []byte("ledger/bal/1"), Value: []byte("y")},
			state.Write{Key: []byte("ledger/meta"), Value: []byte("m")},
			state.Write{Key: []byte("ledger/bal\xff"), Value: []byte("z")},
		)
		var keys []string
		err := b.Iterate([]byte("ledger/bal/"), func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
		if err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		if len(keys) != 2 || keys[0] != "ledger/bal/1" || keys[1] != "ledger/bal/2" {
			t.Fatalf("unexpected keys: %q", keys)
		}
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		b := newBackend(t)
		mustApply(t, b, state.Write{Key: []byte("k"), Value: []byte("abc")})
		v, _, _ := b.Get([]byte("k"))
		v[0] = 'z'
		expect(t, b, "k", "abc")
	})

	t.Run("TxCommitAndDiscard", func(t *testing.T) {
		b := newBackend(t)
		mustApply(t, b, state.Write{Key: []byte("k"), Value: []byte("base")})

		tx := state.Begin(b)
		if err := tx.Put([]byte("k"), []byte("tx")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		expect(t, b, "k", "base")
		tx.Discard()
		expect(t, b, "k", "base")

		tx = state.Begin(b)
		_ = tx.Put([]byte("k"), []byte("committed"))
		_ = tx.Put([]byte("n"), []byte("new"))
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		expect(t, b, "k", "committed")
		expect(t, b, "n", "new")
	})
}

func mustApply(t *testing.T, b state.Backend, ws ...state.Write) {
	t.Helper()
	if err := b.Apply(ws); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func expect(t *testing.T, r state.Reader, key, want string) {
	t.Helper()
	v, ok, err := r.Get([]byte(key))
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	if !ok || !bytes.Equal(v, []byte(want)) {
		t.Fatalf("Get(%s) = %q (present=%v), want %q", key, v, ok, want)
	}
}
