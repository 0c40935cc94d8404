package bind

import (
	"context"

	"github.com/holiman/uint256"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/facets/burn"
	"xdao.co/diamond/facets/erc20"
	"xdao.co/diamond/facets/loupe"
	"xdao.co/diamond/facets/moduletoggle"
	"xdao.co/diamond/facets/ownership"
	"xdao.co/diamond/model"
	"xdao.co/diamond/modules"
)

// Router is a typed client for a router assembled from the standard facets.
type Router struct {
	Address model.Address
	backend Backend
}

func NewRouter(addr model.Address, b Backend) *Router {
	return &Router{Address: addr, backend: b}
}

// WithBackend returns a client for the same router using b.
func (r *Router) WithBackend(b Backend) *Router {
	return &Router{Address: r.Address, backend: b}
}

func (r *Router) transact(ctx context.Context, m abi.Method, args ...any) (*model.Receipt, error) {
	data, err := m.EncodeCall(args...)
	if err != nil {
		return nil, model.WrapError(model.ErrInvalidCall, m.Name, err)
	}
	return r.backend.Transact(ctx, r.Address, data)
}

func (r *Router) call(ctx context.Context, m abi.Method, args ...any) ([]any, error) {
	data, err := m.EncodeCall(args...)
	if err != nil {
		return nil, model.WrapError(model.ErrInvalidCall, m.Name, err)
	}
	out, err := r.backend.StaticCall(ctx, r.Address, data)
	if err != nil {
		return nil, err
	}
	v, err := m.DecodeOutput(out)
	if err != nil {
		return nil, model.WrapError(model.ErrInvalidCall, m.Name+" output", err)
	}
	return v, nil
}

func (r *Router) callUint(ctx context.Context, m abi.Method, args ...any) (*uint256.Int, error) {
	v, err := r.call(ctx, m, args...)
	if err != nil {
		return nil, err
	}
	return v[0].(*uint256.Int), nil
}

// Calldata encodes a call to m, for use as a cut initializer payload.
func Calldata(m abi.Method, args ...any) ([]byte, error) {
	return m.EncodeCall(args...)
}

// DiamondCut applies cuts and, when init is non-zero, delegate-calls init
// with calldata in the same call.
func (r *Router) DiamondCut(ctx context.Context, cuts []model.FacetCut, init model.Address, calldata []byte) (*model.Receipt, error) {
	if calldata == nil {
		calldata = []byte{}
	}
	return r.transact(ctx, diamond.DiamondCutMethod, diamond.CutsToABI(cuts), init, calldata)
}

func (r *Router) Facets(ctx context.Context) ([]model.Facet, error) {
	v, err := r.call(ctx, loupe.Facets)
	if err != nil {
		return nil, err
	}
	return loupe.FacetsFromABI(v[0])
}

func (r *Router) FacetAddresses(ctx context.Context) ([]model.Address, error) {
	v, err := r.call(ctx, loupe.FacetAddresses)
	if err != nil {
		return nil, err
	}
	var out []model.Address
	for _, a := range v[0].([]any) {
		out = append(out, a.(model.Address))
	}
	return out, nil
}

func (r *Router) FacetFunctionSelectors(ctx context.Context, facet model.Address) ([]model.Selector, error) {
	v, err := r.call(ctx, loupe.FacetFunctionSelectors, facet)
	if err != nil {
		return nil, err
	}
	var out []model.Selector
	for _, s := range v[0].([]any) {
		out = append(out, s.(model.Selector))
	}
	return out, nil
}

// FacetAddress returns the implementation sel routes to, or the zero address.
func (r *Router) FacetAddress(ctx context.Context, sel model.Selector) (model.Address, error) {
	v, err := r.call(ctx, loupe.FacetAddress, sel)
	if err != nil {
		return model.Address{}, err
	}
	return v[0].(model.Address), nil
}

func (r *Router) Owner(ctx context.Context) (model.Address, error) {
	v, err := r.call(ctx, ownership.Owner)
	if err != nil {
		return model.Address{}, err
	}
	return v[0].(model.Address), nil
}

func (r *Router) TransferOwnership(ctx context.Context, next model.Address) (*model.Receipt, error) {
	return r.transact(ctx, ownership.TransferOwnership, next)
}

func (r *Router) SetModuleConfiguration(ctx context.Context, cfg model.ModuleConfig) (*model.Receipt, error) {
	return r.transact(ctx, moduletoggle.SetModuleConfiguration, cfg.ID, cfg.Active, cfg.Inactive, cfg.Selectors)
}

func (r *Router) SetModuleState(ctx context.Context, id model.ModuleID, enabled bool) (*model.Receipt, error) {
	return r.transact(ctx, moduletoggle.SetModuleState, id, enabled)
}

func (r *Router) IsModuleEnabled(ctx context.Context, id model.ModuleID) (bool, error) {
	v, err := r.call(ctx, moduletoggle.IsModuleEnabled, id)
	if err != nil {
		return false, err
	}
	return v[0].(bool), nil
}

func (r *Router) ModuleConfiguration(ctx context.Context, id model.ModuleID) (model.ModuleConfig, error) {
	v, err := r.call(ctx, moduletoggle.GetModuleConfiguration, id)
	if err != nil {
		return model.ModuleConfig{}, err
	}
	return modules.ConfigFromABI(id, v)
}

func (r *Router) ModuleIDs(ctx context.Context) ([]model.ModuleID, error) {
	v, err := r.call(ctx, moduletoggle.ModuleIDs)
	if err != nil {
		return nil, err
	}
	var out []model.ModuleID
	for _, h := range v[0].([]any) {
		out = append(out, model.ModuleID(h.(model.Hash)))
	}
	return out, nil
}

func (r *Router) Name(ctx context.Context) (string, error) {
	v, err := r.call(ctx, erc20.TokenName)
	if err != nil {
		return "", err
	}
	return v[0].(string), nil
}

func (r *Router) Symbol(ctx context.Context) (string, error) {
	v, err := r.call(ctx, erc20.Symbol)
	if err != nil {
		return "", err
	}
	return v[0].(string), nil
}

func (r *Router) Decimals(ctx context.Context) (uint8, error) {
	v, err := r.callUint(ctx, erc20.Decimals)
	if err != nil {
		return 0, err
	}
	return uint8(v.Uint64()), nil
}

func (r *Router) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	return r.callUint(ctx, erc20.TotalSupply)
}

func (r *Router) BalanceOf(ctx context.Context, a model.Address) (*uint256.Int, error) {
	return r.callUint(ctx, erc20.BalanceOf, a)
}

func (r *Router) Allowance(ctx context.Context, owner, spender model.Address) (*uint256.Int, error) {
	return r.callUint(ctx, erc20.Allowance, owner, spender)
}

func (r *Router) Approve(ctx context.Context, spender model.Address, amount *uint256.Int) (*model.Receipt, error) {
	return r.transact(ctx, erc20.Approve, spender, amount)
}

// Transfer calls transfer(address,uint256) on whichever implementation the
// selector currently routes to.
func (r *Router) Transfer(ctx context.Context, to model.Address, amount *uint256.Int) (*model.Receipt, error) {
	return r.transact(ctx, erc20.Transfer, to, amount)
}

func (r *Router) TransferFrom(ctx context.Context, from, to model.Address, amount *uint256.Int) (*model.Receipt, error) {
	return r.transact(ctx, erc20.TransferFrom, from, to, amount)
}

func (r *Router) InitializeERC20(ctx context.Context, name, symbol string, supply *uint256.Int, recipient model.Address) (*model.Receipt, error) {
	return r.transact(ctx, erc20.Initialize, name, symbol, supply, recipient)
}

func (r *Router) InitializeBurnModule(ctx context.Context, rate uint64) (*model.Receipt, error) {
	return r.transact(ctx, burn.Initialize, rate)
}

func (r *Router) UpdateBurnModule(ctx context.Context, rate uint64) (*model.Receipt, error) {
	return r.transact(ctx, burn.Update, rate)
}

func (r *Router) BurnConfiguration(ctx context.Context) (model.BurnConfig, error) {
	v, err := r.call(ctx, burn.BurnConfiguration)
	if err != nil {
		return model.BurnConfig{}, err
	}
	return model.BurnConfig{RateBasisPoints: v[0].(*uint256.Int).Uint64(), Initialized: v[1].(bool)}, nil
}
