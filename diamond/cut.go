package diamond

import (
	"github.com/holiman/uint256"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/model"
)

var (
	// CutsType is the ABI type of a cut batch: (address,uint8,bytes4[])[].
	CutsType = abi.SliceOf(abi.TupleOf(abi.Address, abi.Uint8, abi.SliceOf(abi.Bytes4)))

	DiamondCutMethod = abi.Method{Name: "diamondCut", Inputs: []abi.Type{CutsType, abi.Address, abi.Bytes}}
	DiamondCutEvent  = abi.Event{Name: "DiamondCut", Inputs: []abi.Type{CutsType, abi.Address, abi.Bytes}}
)

// CutsToABI converts cuts into the value shape CutsType encodes.
func CutsToABI(cuts []model.FacetCut) []any {
	out := make([]any, len(cuts))
	for i, c := range cuts {
		out[i] = []any{c.FacetAddress, c.Action, c.Selectors}
	}
	return out
}

// CutsFromABI converts a decoded CutsType value back into cuts.
func CutsFromABI(v any) ([]model.FacetCut, error) {
	rows, ok := v.([]any)
	if !ok {
		return nil, model.Errorf(model.ErrInvalidCall, "cuts: unexpected value %T", v)
	}
	out := make([]model.FacetCut, len(rows))
	for i, r := range rows {
		fields, ok := r.([]any)
		if !ok || len(fields) != 3 {
			return nil, model.Errorf(model.ErrInvalidCall, "cut %d: malformed tuple", i)
		}
		addr, okAddr := fields[0].(model.Address)
		action, okAction := fields[1].(*uint256.Int)
		sels, okSels := fields[2].([]any)
		if !okAddr || !okAction || !okSels {
			return nil, model.Errorf(model.ErrInvalidCall, "cut %d: malformed tuple", i)
		}
		c := model.FacetCut{FacetAddress: addr, Action: model.FacetCutAction(action.Uint64())}
		for _, s := range sels {
			sel, ok := s.(model.Selector)
			if !ok {
				return nil, model.Errorf(model.ErrInvalidCall, "cut %d: malformed selector", i)
			}
			c.Selectors = append(c.Selectors, sel)
		}
		out[i] = c
	}
	return out, nil
}

type cutConfig struct {
	module   *model.ModuleID
	init     model.Address
	calldata []byte
}

// CutOption adjusts a single Apply.
type CutOption func(*cutConfig)

// WithInit delegate-calls init with calldata after the cuts are applied, in
// the same atomic scope.
func WithInit(init model.Address, calldata []byte) CutOption {
	return func(c *cutConfig) {
		c.init = init
		c.calldata = calldata
	}
}

// ForModule lets the batch replace or remove selectors bound to module id.
func ForModule(id model.ModuleID) CutOption {
	return func(c *cutConfig) { c.module = &id }
}

// Apply validates and applies a batch of cuts to the router's dispatch table.
//
// Only the owner may call it. The batch is atomic: it runs on a child overlay
// that is committed into the caller's transaction only if every cut, the
// DiamondCut event and the optional initializer succeed.
func Apply(env *Env, cuts []model.FacetCut, opts ...CutOption) error {
	var cfg cutConfig
	for _, o := range opts {
		o(&cfg)
	}
	if err := RequireOwner(env); err != nil {
		return err
	}
	if cfg.init.IsZero() && len(cfg.calldata) > 0 {
		return model.NewError(model.ErrInvalidCut, "initializer is zero but calldata is not empty")
	}
	if !cfg.init.IsZero() && len(cfg.calldata) == 0 {
		return model.NewError(model.ErrInvalidCut, "calldata is empty but initializer is set")
	}

	return env.Atomic(func(ce *Env) error {
		for i, c := range cuts {
			if err := applyCut(ce, i, c, &cfg); err != nil {
				return err
			}
		}
		calldata := cfg.calldata
		if calldata == nil {
			calldata = []byte{}
		}
		if err := ce.Emit(DiamondCutEvent, CutsToABI(cuts), cfg.init, calldata); err != nil {
			return err
		}
		if cfg.init.IsZero() {
			return nil
		}
		_, err := ce.DelegateCall(cfg.init, cfg.calldata)
		return err
	})
}

func applyCut(env *Env, i int, c model.FacetCut, cfg *cutConfig) error {
	if len(c.Selectors) == 0 {
		return model.Errorf(model.ErrInvalidCut, "cut %d: no selectors", i)
	}
	switch c.Action {
	case model.CutAdd:
		if err := requireTarget(env, i, c.FacetAddress); err != nil {
			return err
		}
		for _, sel := range c.Selectors {
			cur, ok, err := Lookup(env.Store, sel)
			if err != nil {
				return err
			}
			if ok {
				return model.Errorf(model.ErrDuplicateRegistration, "selector %s already routed to %s", sel, cur)
			}
			if err := setEntry(env.Store, sel, c.FacetAddress); err != nil {
				return err
			}
		}
	case model.CutReplace:
		if err := requireTarget(env, i, c.FacetAddress); err != nil {
			return err
		}
		for _, sel := range c.Selectors {
			cur, ok, err := Lookup(env.Store, sel)
			if err != nil {
				return err
			}
			if !ok {
				return model.Errorf(model.ErrUnknownSelector, "selector %s is not routed", sel)
			}
			if cur == c.FacetAddress {
				return model.Errorf(model.ErrNoOpReplace, "selector %s already routed to %s", sel, cur)
			}
			if err := checkLock(env, sel, cfg); err != nil {
				return err
			}
			if err := setEntry(env.Store, sel, c.FacetAddress); err != nil {
				return err
			}
		}
	case model.CutRemove:
		if !c.FacetAddress.IsZero() {
			return model.Errorf(model.ErrInvalidCut, "cut %d: remove facet address must be zero", i)
		}
		for _, sel := range c.Selectors {
			_, ok, err := Lookup(env.Store, sel)
			if err != nil {
				return err
			}
			if !ok {
				return model.Errorf(model.ErrUnknownSelector, "selector %s is not routed", sel)
			}
			if err := checkLock(env, sel, cfg); err != nil {
				return err
			}
			if err := deleteEntry(env.Store, sel); err != nil {
				return err
			}
		}
	default:
		return model.Errorf(model.ErrInvalidCut, "cut %d: unknown action %s", i, c.Action)
	}
	return nil
}

func requireTarget(env *Env, i int, addr model.Address) error {
	if addr.IsZero() {
		return model.Errorf(model.ErrInvalidCut, "cut %d: facet address is zero", i)
	}
	ok, err := env.HasCode(addr)
	if err != nil {
		return err
	}
	if !ok {
		return model.Errorf(model.ErrNoCode, "cut %d: no code at %s", i, addr)
	}
	return nil
}

func checkLock(env *Env, sel model.Selector, cfg *cutConfig) error {
	id, locked, err := LockedBy(env.Store, sel)
	if err != nil || !locked {
		return err
	}
	if cfg.module != nil && *cfg.module == id {
		return nil
	}
	return model.Errorf(model.ErrModuleSelectorLocked, "selector %s is bound to module %s", sel, id)
}
