package state

import "errors"

var (
	ErrClosed   = errors.New("state: backend closed")
	ErrTxDone   = errors.New("state: transaction already committed or discarded")
	ErrNotEmpty = errors.New("state: backend is not empty")
)

// Write is one entry of an atomic batch.
type Write struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Reader is read access to a key/value space.
//
// Contract:
// - Get returns (nil, false, nil) for absent keys.
// - Iterate visits keys with the given prefix in ascending byte order.
// - Values passed to callers are copies; callers may retain them.
type Reader interface {
	Get(key []byte) ([]byte, bool, error)
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Backend is durable router storage.
// Apply MUST be atomic: either every write in the batch lands or none does.
type Backend interface {
	Reader
	Apply(batch []Write) error
}

// Store is the mutable view handed to facet code during a call.
type Store interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Layer is a Store that can also host a nested overlay (state.Begin).
type Layer interface {
	Store
	Apply(batch []Write) error
}

// Key joins namespace parts into a storage key.
func Key(namespace string, parts ...[]byte) []byte {
	n := len(namespace)
	for _, p := range parts {
		n += 1 + len(p)
	}
	k := make([]byte, 0, n)
	k = append(k, namespace...)
	for _, p := range parts {
		k = append(k, '/')
		k = append(k, p...)
	}
	return k
}

// IsEmpty reports whether r holds no keys.
func IsEmpty(r Reader) (bool, error) {
	empty := true
	err := r.Iterate(nil, func(_, _ []byte) error {
		empty = false
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return false, err
	}
	return empty, nil
}

var errStop = errors.New("state: stop iteration")
