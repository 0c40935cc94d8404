// Package burn is a transfer implementation that destroys a configurable
// share of every transfer. It is meant to be toggled in as the active
// implementation of a module sharing the transfer selector with erc20.
package burn

import (
	"github.com/holiman/uint256"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/ledger"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

const Name = "diamond.BurnOnTransactionFacet"

// ModuleName is the human-readable module name; its keccak256 is ModuleID.
const ModuleName = "BurnOnTransaction"

var ModuleID = abi.ModuleIDOf(ModuleName)

var (
	Transfer          = abi.Method{Name: "transfer", Inputs: []abi.Type{abi.Address, abi.Uint256}, Outputs: []abi.Type{abi.Bool}}
	Initialize        = abi.Method{Name: "initializeBurnModule", Inputs: []abi.Type{abi.Uint256}}
	Update            = abi.Method{Name: "updateBurnModule", Inputs: []abi.Type{abi.Uint256}}
	BurnConfiguration = abi.Method{Name: "burnConfiguration", Outputs: []abi.Type{abi.Uint256, abi.Bool}}

	TransferWithBurnEvent = abi.Event{
		Name:    "TransferWithBurn",
		Inputs:  []abi.Type{abi.Address, abi.Address, abi.Uint256, abi.Uint256},
		Indexed: []bool{true, true},
	}
	BurnRateUpdatedEvent = abi.Event{
		Name:   "BurnRateUpdated",
		Inputs: []abi.Type{abi.Uint256, abi.Uint256},
	}
)

var configKey = []byte("burn/config")

var configTypes = []abi.Type{abi.Uint64, abi.Bool}

func New() *diamond.MethodSet {
	return diamond.NewMethodSet(Name).
		Handle(Transfer, transfer).
		Handle(Initialize, func(env *diamond.Env, args []any) ([]any, error) {
			return nil, Init(env, args[0].(*uint256.Int))
		}).
		Handle(Update, func(env *diamond.Env, args []any) ([]any, error) {
			return nil, UpdateRate(env, args[0].(*uint256.Int))
		}).
		Handle(BurnConfiguration, func(env *diamond.Env, _ []any) ([]any, error) {
			cfg, err := Config(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{cfg.RateBasisPoints, cfg.Initialized}, nil
		})
}

// Config returns the burn configuration. An uninitialized config has rate 0.
func Config(r state.Reader) (model.BurnConfig, error) {
	raw, ok, err := r.Get(configKey)
	if err != nil || !ok {
		return model.BurnConfig{}, err
	}
	v, err := abi.Decode(configTypes, raw)
	if err != nil {
		return model.BurnConfig{}, model.WrapError(model.ErrInternal, "corrupt burn config", err)
	}
	return model.BurnConfig{RateBasisPoints: v[0].(*uint256.Int).Uint64(), Initialized: v[1].(bool)}, nil
}

func putConfig(s state.Store, cfg model.BurnConfig) error {
	raw, err := abi.Encode(configTypes, []any{cfg.RateBasisPoints, cfg.Initialized})
	if err != nil {
		return err
	}
	return s.Put(configKey, raw)
}

func checkRate(rate *uint256.Int) (uint64, error) {
	if !rate.IsUint64() || rate.Uint64() > model.MaxBurnRate {
		return 0, model.Errorf(model.ErrInvalidBurnRate, "burn rate %s outside [0, %d]", rate.Dec(), model.MaxBurnRate)
	}
	return rate.Uint64(), nil
}

// Init sets the burn rate once. Any caller may initialize.
func Init(env *diamond.Env, rate *uint256.Int) error {
	cfg, err := Config(env.Store)
	if err != nil {
		return err
	}
	if cfg.Initialized {
		return model.NewError(model.ErrAlreadyInitialized, "burn module already initialized")
	}
	bps, err := checkRate(rate)
	if err != nil {
		return err
	}
	return putConfig(env.Store, model.BurnConfig{RateBasisPoints: bps, Initialized: true})
}

// UpdateRate changes the burn rate of an initialized config. Owner only.
func UpdateRate(env *diamond.Env, rate *uint256.Int) error {
	if err := diamond.RequireOwner(env); err != nil {
		return err
	}
	bps, err := checkRate(rate)
	if err != nil {
		return err
	}
	cfg, err := Config(env.Store)
	if err != nil {
		return err
	}
	if !cfg.Initialized {
		return model.NewError(model.ErrNotInitialized, "burn module not initialized")
	}
	prev := cfg.RateBasisPoints
	cfg.RateBasisPoints = bps
	if err := putConfig(env.Store, cfg); err != nil {
		return err
	}
	return env.Emit(BurnRateUpdatedEvent, prev, bps)
}

// Split returns floor(amount*rate/10000) and the remainder. The product is
// computed at 512 bits, so it never overflows.
func Split(amount *uint256.Int, rate uint64) (burned, net *uint256.Int) {
	burned, _ = new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(rate), uint256.NewInt(model.MaxBurnRate))
	net = new(uint256.Int).Sub(amount, burned)
	return burned, net
}

func transfer(env *diamond.Env, args []any) ([]any, error) {
	to, amount := args[0].(model.Address), args[1].(*uint256.Int)
	if to.IsZero() {
		return nil, model.NewError(model.ErrZeroAddressRecipient, "transfer to the zero address")
	}
	if amount.IsZero() {
		return []any{true}, nil
	}
	if err := ledger.RequireBalance(env.Store, env.Caller, amount); err != nil {
		return nil, err
	}
	cfg, err := Config(env.Store)
	if err != nil {
		return nil, err
	}

	burned, net := Split(amount, cfg.RateBasisPoints)
	if !net.IsZero() {
		if err := ledger.Transfer(env, env.Caller, to, net); err != nil {
			return nil, err
		}
	}
	if !burned.IsZero() {
		if err := ledger.Burn(env, env.Caller, burned); err != nil {
			return nil, err
		}
	}
	if err := env.Emit(TransferWithBurnEvent, env.Caller, to, net, burned); err != nil {
		return nil, err
	}
	return []any{true}, nil
}
