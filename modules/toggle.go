package modules

import (
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

// IsEnabled reports whether module id is enabled. Unknown modules are disabled.
func IsEnabled(r state.Reader, id model.ModuleID) (bool, error) {
	cfg, _, err := Get(r, id)
	return cfg.Enabled, err
}

// SetState switches module id on or off. Owner only.
//
// Switching re-routes every module selector to cfg.Target(enabled) through
// the cut engine and then flips the flag, both on one child overlay: either
// the whole switch lands or nothing does. Setting the current state again
// changes nothing but still emits ModuleStateChanged.
func SetState(env *diamond.Env, id model.ModuleID, enabled bool) error {
	if err := diamond.RequireOwner(env); err != nil {
		return err
	}
	cfg, ok, err := Get(env.Store, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.Errorf(model.ErrUnknownModule, "module %s is not registered", id)
	}
	if cfg.Enabled == enabled {
		return env.Emit(ModuleStateChangedEvent, id, enabled)
	}

	return env.Atomic(func(ce *diamond.Env) error {
		cut := model.FacetCut{
			FacetAddress: cfg.Target(enabled),
			Action:       model.CutReplace,
			Selectors:    cfg.Selectors,
		}
		if err := diamond.Apply(ce, []model.FacetCut{cut}, diamond.ForModule(id)); err != nil {
			return err
		}
		cfg.Enabled = enabled
		if err := put(ce.Store, cfg); err != nil {
			return err
		}
		return ce.Emit(ModuleStateChangedEvent, id, enabled)
	})
}
