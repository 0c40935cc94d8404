// Package erc20 is the base token implementation over the shared ledger.
package erc20

import (
	"github.com/holiman/uint256"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/ledger"
	"xdao.co/diamond/model"
)

const Name = "diamond.ERC20Facet"

var (
	TokenName    = abi.Method{Name: "name", Outputs: []abi.Type{abi.String}}
	Symbol       = abi.Method{Name: "symbol", Outputs: []abi.Type{abi.String}}
	Decimals     = abi.Method{Name: "decimals", Outputs: []abi.Type{abi.Uint8}}
	TotalSupply  = abi.Method{Name: "totalSupply", Outputs: []abi.Type{abi.Uint256}}
	BalanceOf    = abi.Method{Name: "balanceOf", Inputs: []abi.Type{abi.Address}, Outputs: []abi.Type{abi.Uint256}}
	Allowance    = abi.Method{Name: "allowance", Inputs: []abi.Type{abi.Address, abi.Address}, Outputs: []abi.Type{abi.Uint256}}
	Approve      = abi.Method{Name: "approve", Inputs: []abi.Type{abi.Address, abi.Uint256}, Outputs: []abi.Type{abi.Bool}}
	Transfer     = abi.Method{Name: "transfer", Inputs: []abi.Type{abi.Address, abi.Uint256}, Outputs: []abi.Type{abi.Bool}}
	TransferFrom = abi.Method{Name: "transferFrom", Inputs: []abi.Type{abi.Address, abi.Address, abi.Uint256}, Outputs: []abi.Type{abi.Bool}}
	Initialize   = abi.Method{Name: "initializeERC20", Inputs: []abi.Type{abi.String, abi.String, abi.Uint256, abi.Address}}
)

func New() *diamond.MethodSet {
	return diamond.NewMethodSet(Name).
		Handle(TokenName, func(env *diamond.Env, _ []any) ([]any, error) {
			m, err := ledger.ReadMeta(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{m.Name}, nil
		}).
		Handle(Symbol, func(env *diamond.Env, _ []any) ([]any, error) {
			m, err := ledger.ReadMeta(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{m.Symbol}, nil
		}).
		Handle(Decimals, func(env *diamond.Env, _ []any) ([]any, error) {
			m, err := ledger.ReadMeta(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{m.Decimals}, nil
		}).
		Handle(TotalSupply, func(env *diamond.Env, _ []any) ([]any, error) {
			v, err := ledger.TotalSupply(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}).
		Handle(BalanceOf, func(env *diamond.Env, args []any) ([]any, error) {
			v, err := ledger.BalanceOf(env.Store, args[0].(model.Address))
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}).
		Handle(Allowance, func(env *diamond.Env, args []any) ([]any, error) {
			v, err := ledger.Allowance(env.Store, args[0].(model.Address), args[1].(model.Address))
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}).
		Handle(Approve, func(env *diamond.Env, args []any) ([]any, error) {
			if err := ledger.Approve(env, env.Caller, args[0].(model.Address), args[1].(*uint256.Int)); err != nil {
				return nil, err
			}
			return []any{true}, nil
		}).
		Handle(Transfer, func(env *diamond.Env, args []any) ([]any, error) {
			if err := ledger.Transfer(env, env.Caller, args[0].(model.Address), args[1].(*uint256.Int)); err != nil {
				return nil, err
			}
			return []any{true}, nil
		}).
		Handle(TransferFrom, transferFrom).
		Handle(Initialize, func(env *diamond.Env, args []any) ([]any, error) {
			return nil, ledger.Init(env, args[0].(string), args[1].(string), args[2].(*uint256.Int), args[3].(model.Address))
		})
}

func transferFrom(env *diamond.Env, args []any) ([]any, error) {
	from, to, amount := args[0].(model.Address), args[1].(model.Address), args[2].(*uint256.Int)
	if to.IsZero() {
		return nil, model.NewError(model.ErrZeroAddressRecipient, "transfer to the zero address")
	}
	if err := ledger.SpendAllowance(env, from, env.Caller, amount); err != nil {
		return nil, err
	}
	if err := ledger.Transfer(env, from, to, amount); err != nil {
		return nil, err
	}
	return []any{true}, nil
}
