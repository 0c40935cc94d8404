// Package modules binds named features to a pair of competing facets and
// toggles the dispatch table between them.
package modules

import (
	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

var cfgPrefix = []byte("modules/cfg/")

var configTypes = []abi.Type{abi.Address, abi.Address, abi.SliceOf(abi.Bytes4), abi.Bool}

var (
	ModuleConfiguredEvent = abi.Event{
		Name:    "ModuleConfigured",
		Inputs:  []abi.Type{abi.Bytes32, abi.Address, abi.Address, abi.SliceOf(abi.Bytes4)},
		Indexed: []bool{true},
	}
	ModuleStateChangedEvent = abi.Event{
		Name:    "ModuleStateChanged",
		Inputs:  []abi.Type{abi.Bytes32, abi.Bool},
		Indexed: []bool{true},
	}
)

func cfgKey(id model.ModuleID) []byte {
	return append(append([]byte{}, cfgPrefix...), id[:]...)
}

// Get returns the configuration of module id.
func Get(r state.Reader, id model.ModuleID) (model.ModuleConfig, bool, error) {
	raw, ok, err := r.Get(cfgKey(id))
	if err != nil || !ok {
		return model.ModuleConfig{}, false, err
	}
	v, err := abi.Decode(configTypes, raw)
	if err != nil {
		return model.ModuleConfig{}, false, model.WrapError(model.ErrInternal, "corrupt module config "+id.String(), err)
	}
	cfg := model.ModuleConfig{
		ID:       id,
		Active:   v[0].(model.Address),
		Inactive: v[1].(model.Address),
		Enabled:  v[3].(bool),
	}
	for _, s := range v[2].([]any) {
		cfg.Selectors = append(cfg.Selectors, s.(model.Selector))
	}
	return cfg, true, nil
}

func put(s state.Store, cfg model.ModuleConfig) error {
	raw, err := abi.Encode(configTypes, []any{cfg.Active, cfg.Inactive, cfg.Selectors, cfg.Enabled})
	if err != nil {
		return err
	}
	return s.Put(cfgKey(cfg.ID), raw)
}

// IDs returns every registered module id in byte order.
func IDs(r state.Reader) ([]model.ModuleID, error) {
	var out []model.ModuleID
	err := r.Iterate(cfgPrefix, func(k, _ []byte) error {
		var id model.ModuleID
		copy(id[:], k[len(cfgPrefix):])
		out = append(out, id)
		return nil
	})
	return out, err
}

// Register records a module. Owner only.
//
// The module starts disabled, so every selector must already route to
// inactive; registering never touches the dispatch table. From then on the
// selectors are bound to the module and only SetState may re-route them.
func Register(env *diamond.Env, cfg model.ModuleConfig) error {
	if err := diamond.RequireOwner(env); err != nil {
		return err
	}
	if _, exists, err := Get(env.Store, cfg.ID); err != nil {
		return err
	} else if exists {
		return model.Errorf(model.ErrModuleAlreadyRegistered, "module %s already registered", cfg.ID)
	}
	if err := validate(env, cfg); err != nil {
		return err
	}

	cfg.Enabled = false
	if err := put(env.Store, cfg); err != nil {
		return err
	}
	if err := diamond.LockSelectors(env.Store, cfg.ID, cfg.Selectors); err != nil {
		return err
	}
	return env.Emit(ModuleConfiguredEvent, cfg.ID, cfg.Active, cfg.Inactive, cfg.Selectors)
}

func validate(env *diamond.Env, cfg model.ModuleConfig) error {
	if len(cfg.Selectors) == 0 {
		return model.NewError(model.ErrInvalidModuleConfig, "module has no selectors")
	}
	if cfg.Active.IsZero() || cfg.Inactive.IsZero() {
		return model.NewError(model.ErrInvalidModuleConfig, "module implementations must be non-zero")
	}
	if cfg.Active == cfg.Inactive {
		return model.NewError(model.ErrInvalidModuleConfig, "active and inactive implementations are the same")
	}
	for _, impl := range []model.Address{cfg.Active, cfg.Inactive} {
		ok, err := env.HasCode(impl)
		if err != nil {
			return err
		}
		if !ok {
			return model.Errorf(model.ErrNoCode, "no code at %s", impl)
		}
	}
	seen := make(map[model.Selector]bool, len(cfg.Selectors))
	for _, sel := range cfg.Selectors {
		if seen[sel] {
			return model.Errorf(model.ErrInvalidModuleConfig, "selector %s listed twice", sel)
		}
		seen[sel] = true

		cur, ok, err := diamond.Lookup(env.Store, sel)
		if err != nil {
			return err
		}
		if !ok || cur != cfg.Inactive {
			return model.Errorf(model.ErrInvalidModuleConfig, "selector %s must route to inactive implementation %s", sel, cfg.Inactive)
		}
		if owner, locked, err := diamond.LockedBy(env.Store, sel); err != nil {
			return err
		} else if locked {
			return model.Errorf(model.ErrInvalidModuleConfig, "selector %s already bound to module %s", sel, owner)
		}
	}
	return nil
}

// ConfigToABI returns cfg in the shape getModuleConfiguration encodes:
// (address active, address inactive, bytes4[] selectors, bool enabled).
func ConfigToABI(cfg model.ModuleConfig) []any {
	return []any{cfg.Active, cfg.Inactive, cfg.Selectors, cfg.Enabled}
}

// ConfigFromABI is the inverse of ConfigToABI.
func ConfigFromABI(id model.ModuleID, v []any) (model.ModuleConfig, error) {
	if len(v) != 4 {
		return model.ModuleConfig{}, model.Errorf(model.ErrInvalidCall, "module config: expected 4 values, got %d", len(v))
	}
	cfg := model.ModuleConfig{ID: id}
	var ok bool
	if cfg.Active, ok = v[0].(model.Address); !ok {
		return model.ModuleConfig{}, model.NewError(model.ErrInvalidCall, "module config: active")
	}
	if cfg.Inactive, ok = v[1].(model.Address); !ok {
		return model.ModuleConfig{}, model.NewError(model.ErrInvalidCall, "module config: inactive")
	}
	sels, ok := v[2].([]any)
	if !ok {
		return model.ModuleConfig{}, model.NewError(model.ErrInvalidCall, "module config: selectors")
	}
	for _, s := range sels {
		sel, ok := s.(model.Selector)
		if !ok {
			return model.ModuleConfig{}, model.NewError(model.ErrInvalidCall, "module config: selector")
		}
		cfg.Selectors = append(cfg.Selectors, sel)
	}
	if cfg.Enabled, ok = v[3].(bool); !ok {
		return model.ModuleConfig{}, model.NewError(model.ErrInvalidCall, "module config: enabled")
	}
	return cfg, nil
}
