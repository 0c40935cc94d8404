// Package moduletoggle exposes the module registry and toggle.
package moduletoggle

import (
	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
	"xdao.co/diamond/modules"
)

const Name = "diamond.ModuleToggleFacet"

var (
	SetModuleConfiguration = abi.Method{
		Name:   "setModuleConfiguration",
		Inputs: []abi.Type{abi.Bytes32, abi.Address, abi.Address, abi.SliceOf(abi.Bytes4)},
	}
	SetModuleState  = abi.Method{Name: "setModuleState", Inputs: []abi.Type{abi.Bytes32, abi.Bool}}
	IsModuleEnabled = abi.Method{
		Name:    "isModuleEnabled",
		Inputs:  []abi.Type{abi.Bytes32},
		Outputs: []abi.Type{abi.Bool},
	}
	GetModuleConfiguration = abi.Method{
		Name:    "getModuleConfiguration",
		Inputs:  []abi.Type{abi.Bytes32},
		Outputs: []abi.Type{abi.Address, abi.Address, abi.SliceOf(abi.Bytes4), abi.Bool},
	}
	ModuleIDs = abi.Method{Name: "moduleIds", Outputs: []abi.Type{abi.SliceOf(abi.Bytes32)}}
)

func New() *diamond.MethodSet {
	return diamond.NewMethodSet(Name).
		Handle(SetModuleConfiguration, func(env *diamond.Env, args []any) ([]any, error) {
			cfg, err := modules.ConfigFromABI(moduleID(args[0]), []any{args[1], args[2], args[3], false})
			if err != nil {
				return nil, err
			}
			return nil, modules.Register(env, cfg)
		}).
		Handle(SetModuleState, func(env *diamond.Env, args []any) ([]any, error) {
			return nil, modules.SetState(env, moduleID(args[0]), args[1].(bool))
		}).
		Handle(IsModuleEnabled, func(env *diamond.Env, args []any) ([]any, error) {
			on, err := modules.IsEnabled(env.Store, moduleID(args[0]))
			if err != nil {
				return nil, err
			}
			return []any{on}, nil
		}).
		Handle(GetModuleConfiguration, func(env *diamond.Env, args []any) ([]any, error) {
			id := moduleID(args[0])
			cfg, ok, err := modules.Get(env.Store, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, model.Errorf(model.ErrUnknownModule, "module %s is not registered", id)
			}
			return modules.ConfigToABI(cfg), nil
		}).
		Handle(ModuleIDs, func(env *diamond.Env, _ []any) ([]any, error) {
			ids, err := modules.IDs(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{ids}, nil
		})
}

func moduleID(v any) model.ModuleID { return model.ModuleID(v.(model.Hash)) }
