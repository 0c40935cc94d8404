// Package cutfacet exposes the cut engine as diamondCut.
package cutfacet

import (
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
)

const Name = "diamond.DiamondCutFacet"

// DiamondCut is diamondCut((address,uint8,bytes4[])[],address,bytes).
var DiamondCut = diamond.DiamondCutMethod

func New() *diamond.MethodSet {
	return diamond.NewMethodSet(Name).Handle(DiamondCut, diamondCut)
}

func diamondCut(env *diamond.Env, args []any) ([]any, error) {
	cuts, err := diamond.CutsFromABI(args[0])
	if err != nil {
		return nil, err
	}
	return nil, diamond.Apply(env, cuts, diamond.WithInit(args[1].(model.Address), args[2].([]byte)))
}
