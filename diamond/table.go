package diamond

import (
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

// Router storage layout owned by this package.
var (
	selectorPrefix = []byte("diamond/sel/")
	lockPrefix     = []byte("diamond/lock/")
	ownerKey       = []byte("diamond/owner")
)

func selectorKey(sel model.Selector) []byte {
	return append(append([]byte{}, selectorPrefix...), sel[:]...)
}

func lockKey(sel model.Selector) []byte { return append(append([]byte{}, lockPrefix...), sel[:]...) }

// Lookup returns the implementation sel routes to.
func Lookup(r state.Reader, sel model.Selector) (model.Address, bool, error) {
	raw, ok, err := r.Get(selectorKey(sel))
	if err != nil || !ok {
		return model.Address{}, false, err
	}
	if len(raw) != len(model.Address{}) {
		return model.Address{}, false, model.Errorf(model.ErrInternal, "corrupt dispatch entry for %s", sel)
	}
	var a model.Address
	copy(a[:], raw)
	return a, true, nil
}

func setEntry(s state.Store, sel model.Selector, impl model.Address) error {
	return s.Put(selectorKey(sel), impl[:])
}

func deleteEntry(s state.Store, sel model.Selector) error {
	return s.Delete(selectorKey(sel))
}

// Entry is one row of the dispatch table.
type Entry struct {
	Selector model.Selector
	Facet    model.Address
}

// Entries returns the whole table ordered by selector bytes.
func Entries(r state.Reader) ([]Entry, error) {
	var out []Entry
	err := r.Iterate(selectorPrefix, func(k, v []byte) error {
		if len(k) != len(selectorPrefix)+4 || len(v) != 20 {
			return model.Errorf(model.ErrInternal, "corrupt dispatch entry %x", k)
		}
		var e Entry
		copy(e.Selector[:], k[len(selectorPrefix):])
		copy(e.Facet[:], v)
		out = append(out, e)
		return nil
	})
	return out, err
}

// Facets groups the table by implementation, in order of each
// implementation's lowest selector.
func Facets(r state.Reader) ([]model.Facet, error) {
	entries, err := Entries(r)
	if err != nil {
		return nil, err
	}
	var out []model.Facet
	index := make(map[model.Address]int)
	for _, e := range entries {
		i, ok := index[e.Facet]
		if !ok {
			i = len(out)
			index[e.Facet] = i
			out = append(out, model.Facet{Address: e.Facet})
		}
		out[i].Selectors = append(out[i].Selectors, e.Selector)
	}
	return out, nil
}

// FacetAddresses returns every routed implementation, ordered as in Facets.
func FacetAddresses(r state.Reader) ([]model.Address, error) {
	fs, err := Facets(r)
	if err != nil {
		return nil, err
	}
	out := make([]model.Address, len(fs))
	for i, f := range fs {
		out[i] = f.Address
	}
	return out, nil
}

// FacetSelectors returns the selectors routed to impl, ordered by bytes.
func FacetSelectors(r state.Reader, impl model.Address) ([]model.Selector, error) {
	entries, err := Entries(r)
	if err != nil {
		return nil, err
	}
	var out []model.Selector
	for _, e := range entries {
		if e.Facet == impl {
			out = append(out, e.Selector)
		}
	}
	return out, nil
}

// LockSelectors binds sels to module id. Bound selectors can only be
// replaced or removed by cuts issued with ForModule(id).
func LockSelectors(s state.Store, id model.ModuleID, sels []model.Selector) error {
	for _, sel := range sels {
		if err := s.Put(lockKey(sel), id[:]); err != nil {
			return err
		}
	}
	return nil
}

// LockedBy returns the module a selector is bound to.
func LockedBy(r state.Reader, sel model.Selector) (model.ModuleID, bool, error) {
	raw, ok, err := r.Get(lockKey(sel))
	if err != nil || !ok {
		return model.ModuleID{}, false, err
	}
	var id model.ModuleID
	copy(id[:], raw)
	return id, true, nil
}
