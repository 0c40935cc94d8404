// Package ownership exposes the router owner.
package ownership

import (
	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
)

const Name = "diamond.OwnershipFacet"

var (
	Owner             = abi.Method{Name: "owner", Outputs: []abi.Type{abi.Address}}
	TransferOwnership = abi.Method{Name: "transferOwnership", Inputs: []abi.Type{abi.Address}}
)

func New() *diamond.MethodSet {
	return diamond.NewMethodSet(Name).
		Handle(Owner, func(env *diamond.Env, _ []any) ([]any, error) {
			o, err := diamond.Owner(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{o}, nil
		}).
		Handle(TransferOwnership, func(env *diamond.Env, args []any) ([]any, error) {
			return nil, diamond.TransferOwnership(env, args[0].(model.Address))
		})
}
