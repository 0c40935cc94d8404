package diamond

import (
	"xdao.co/diamond/model"
)

// Route forwards calldata to the facet registered for its first four bytes.
// The facet runs with env unchanged: the caller, value and storage are the
// router's. Return data and errors pass through untouched.
func Route(env *Env, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, model.Errorf(model.ErrUnknownSelector, "calldata too short (%d bytes)", len(data))
	}
	var sel model.Selector
	copy(sel[:], data[:4])
	impl, ok, err := Lookup(env.Store, sel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Errorf(model.ErrUnknownSelector, "function %s is not routed", sel)
	}
	f, err := env.facetAt(impl)
	if err != nil {
		return nil, err
	}
	return f.Call(env, sel, data[4:])
}
