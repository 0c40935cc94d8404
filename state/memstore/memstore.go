// Package memstore is an in-memory state.Backend.
package memstore

import (
	"bytes"
	"sort"
	"sync"

	"xdao.co/diamond/state"
)

func init() {
	state.MustRegister(state.Driver{
		Name:        "memory",
		Description: "Volatile in-process key/value store",
		Usage:       state.UsageCLI | state.UsageDaemon,
		Open: func(string) (state.Backend, func() error, error) {
			return New(), nil, nil
		},
	})
}

// Store is a map guarded by a RWMutex. Apply holds the write lock for the
// whole batch, so readers never observe a partial batch.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ state.Backend = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Iterate copies the matching range before calling fn, so fn may write back
// into the store.
func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	type kv struct {
		k string
		v []byte
	}
	s.mu.RLock()
	var items []kv
	for k, v := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			items = append(items, kv{k, bytes.Clone(v)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].k < items[j].k })
	for _, it := range items {
		if err := fn([]byte(it.k), it.v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Apply(batch []state.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range batch {
		if w.Delete {
			delete(s.data, string(w.Key))
			continue
		}
		s.data[string(w.Key)] = bytes.Clone(w.Value)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
