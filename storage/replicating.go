package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/diamond/cidutil"
)

// NamedCAS associates a CAS with a stable name used in logs and errors.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS mirrors snapshots across several stores.
//
// Writes go to every store and every store must return the canonical CID.
// Reads try stores in slice order and return the first hit.
type ReplicatingCAS struct {
	Stores []NamedCAS
}

var _ CAS = ReplicatingCAS{}

// PutAll writes b to every store and returns the CID each one reported.
func (r ReplicatingCAS) PutAll(b []byte) (cid.Cid, map[string]cid.Cid, error) {
	if len(r.Stores) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: ReplicatingCAS has no stores")
	}
	want, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, nil, err
	}

	out := make(map[string]cid.Cid, len(r.Stores))
	for _, s := range r.Stores {
		if s.CAS == nil {
			return cid.Undef, out, fmt.Errorf("storage: nil CAS for store %q", s.Name)
		}
		got, err := s.CAS.Put(b)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: store %q: %w", s.Name, err)
		}
		out[s.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingCAS) Put(b []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(b)
	return id, err
}

func (r ReplicatingCAS) Get(id cid.Cid) ([]byte, error) {
	for _, s := range r.Stores {
		if s.CAS == nil {
			continue
		}
		b, err := s.CAS.Get(id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r ReplicatingCAS) Has(id cid.Cid) bool {
	for _, s := range r.Stores {
		if s.CAS != nil && s.CAS.Has(id) {
			return true
		}
	}
	return false
}
