package state

import "bytes"

// Prefixed is a view of a Layer confined to keys under a fixed prefix.
// Keys passed in and out are relative to the prefix.
type Prefixed struct {
	inner  Layer
	prefix []byte
}

var _ Layer = (*Prefixed)(nil)

// Prefix returns the view of l under prefix.
func Prefix(l Layer, prefix []byte) *Prefixed {
	return &Prefixed{inner: l, prefix: bytes.Clone(prefix)}
}

func (p *Prefixed) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	return append(append(out, p.prefix...), k...)
}

func (p *Prefixed) Get(key []byte) ([]byte, bool, error) { return p.inner.Get(p.key(key)) }

func (p *Prefixed) Put(key, value []byte) error { return p.inner.Put(p.key(key), value) }

func (p *Prefixed) Delete(key []byte) error { return p.inner.Delete(p.key(key)) }

func (p *Prefixed) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.Iterate(p.key(prefix), func(k, v []byte) error {
		return fn(k[n:], v)
	})
}

func (p *Prefixed) Apply(batch []Write) error {
	out := make([]Write, len(batch))
	for i, w := range batch {
		out[i] = Write{Key: p.key(w.Key), Value: w.Value, Delete: w.Delete}
	}
	return p.inner.Apply(out)
}

// ReadOnly reports whether the underlying layer rejects writes.
func (p *Prefixed) ReadOnly() bool {
	ro, ok := p.inner.(interface{ ReadOnly() bool })
	return ok && ro.ReadOnly()
}
