package state

import (
	"bytes"
	"errors"
	"sort"

	"xdao.co/diamond/model"
)

type entry struct {
	value   []byte
	deleted bool
}

// Tx is a write-buffering overlay over a Backend.
//
// Reads see the overlay first, then the parent. Nothing reaches the parent
// until Commit, which hands the buffered writes to the parent as one batch.
// A Tx is itself a Backend, so overlays nest: committing a child folds its
// writes into the enclosing Tx, and discarding it leaves the parent untouched.
type Tx struct {
	parent   Backend
	writes   map[string]entry
	readOnly bool
	done     bool
}

var _ Backend = (*Tx)(nil)
var _ Layer = (*Tx)(nil)

// Begin opens an overlay on parent. The overlay is read-only when parent is.
func Begin(parent Backend) *Tx {
	tx := &Tx{parent: parent, writes: make(map[string]entry)}
	if ro, ok := parent.(interface{ ReadOnly() bool }); ok && ro.ReadOnly() {
		tx.readOnly = true
	}
	return tx
}

// BeginReadOnly opens an overlay whose writes fail with model.ErrWriteProtection.
func BeginReadOnly(parent Backend) *Tx {
	tx := Begin(parent)
	tx.readOnly = true
	return tx
}

// ReadOnly reports whether writes are rejected.
func (t *Tx) ReadOnly() bool { return t.readOnly }

func (t *Tx) Get(key []byte) ([]byte, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	if e, ok := t.writes[string(key)]; ok {
		if e.deleted {
			return nil, false, nil
		}
		return bytes.Clone(e.value), true, nil
	}
	return t.parent.Get(key)
}

func (t *Tx) Put(key, value []byte) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.writes[string(key)] = entry{value: bytes.Clone(value)}
	return nil
}

func (t *Tx) Delete(key []byte) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.writes[string(key)] = entry{deleted: true}
	return nil
}

// Iterate merges the parent's keys with the overlay in ascending order.
func (t *Tx) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if t.done {
		return ErrTxDone
	}
	merged := make(map[string][]byte)
	err := t.parent.Iterate(prefix, func(k, v []byte) error {
		merged[string(k)] = v
		return nil
	})
	if err != nil {
		return err
	}
	for k, e := range t.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if e.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = e.value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), bytes.Clone(merged[k])); err != nil {
			return err
		}
	}
	return nil
}

// Apply folds a child batch into the overlay.
func (t *Tx) Apply(batch []Write) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, w := range batch {
		if w.Delete {
			t.writes[string(w.Key)] = entry{deleted: true}
			continue
		}
		t.writes[string(w.Key)] = entry{value: bytes.Clone(w.Value)}
	}
	return nil
}

// Writes returns the buffered writes sorted by key.
func (t *Tx) Writes() []Write {
	keys := make([]string, 0, len(t.writes))
	for k := range t.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Write, 0, len(keys))
	for _, k := range keys {
		e := t.writes[k]
		out = append(out, Write{Key: []byte(k), Value: bytes.Clone(e.value), Delete: e.deleted})
	}
	return out
}

// Commit hands the buffered writes to the parent as one batch.
// The Tx is unusable afterwards.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if len(t.writes) == 0 {
		return nil
	}
	batch := t.Writes()
	t.writes = nil
	return t.parent.Apply(batch)
}

// Discard drops every buffered write. Discarding a finished Tx is a no-op.
func (t *Tx) Discard() {
	t.done = true
	t.writes = nil
}

func (t *Tx) writable() error {
	if t.done {
		return ErrTxDone
	}
	if t.readOnly {
		return model.NewError(model.ErrWriteProtection, "state write during static call")
	}
	return nil
}

// IsTxDone reports whether err signals use of a finished Tx.
func IsTxDone(err error) bool { return errors.Is(err, ErrTxDone) }
