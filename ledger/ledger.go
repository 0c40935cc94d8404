// Package ledger is the fungible-token state shared by every transfer
// implementation: metadata, total supply, balances and allowances, all kept
// in the router's storage.
//
// Every mutation preserves sum(balances) == totalSupply.
package ledger

import (
	"github.com/holiman/uint256"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

// Decimals is fixed for every ledger.
const Decimals = 18

var (
	metaKey     = []byte("ledger/meta")
	supplyKey   = []byte("ledger/supply")
	balPrefix   = []byte("ledger/bal/")
	allowPrefix = []byte("ledger/allow/")
)

var metaTypes = []abi.Type{abi.String, abi.String, abi.Uint8, abi.Bool}

var (
	TransferEvent = abi.Event{
		Name:    "Transfer",
		Inputs:  []abi.Type{abi.Address, abi.Address, abi.Uint256},
		Indexed: []bool{true, true},
	}
	ApprovalEvent = abi.Event{
		Name:    "Approval",
		Inputs:  []abi.Type{abi.Address, abi.Address, abi.Uint256},
		Indexed: []bool{true, true},
	}
)

// Meta is the token description set by Init.
type Meta struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	Initialized bool   `json:"initialized"`
}

func balKey(a model.Address) []byte { return append(append([]byte{}, balPrefix...), a[:]...) }

func allowKey(owner, spender model.Address) []byte {
	k := append(append([]byte{}, allowPrefix...), owner[:]...)
	return append(k, spender[:]...)
}

// ReadMeta returns the token metadata. An uninitialized ledger has the zero Meta.
func ReadMeta(r state.Reader) (Meta, error) {
	raw, ok, err := r.Get(metaKey)
	if err != nil || !ok {
		return Meta{}, err
	}
	v, err := abi.Decode(metaTypes, raw)
	if err != nil {
		return Meta{}, model.WrapError(model.ErrInternal, "corrupt ledger metadata", err)
	}
	return Meta{
		Name:        v[0].(string),
		Symbol:      v[1].(string),
		Decimals:    uint8(v[2].(*uint256.Int).Uint64()),
		Initialized: v[3].(bool),
	}, nil
}

// Init sets the metadata and mints supply to recipient. It succeeds once.
func Init(env *diamond.Env, name, symbol string, supply *uint256.Int, recipient model.Address) error {
	meta, err := ReadMeta(env.Store)
	if err != nil {
		return err
	}
	if meta.Initialized {
		return model.NewError(model.ErrAlreadyInitialized, "ledger already initialized")
	}
	if recipient.IsZero() {
		return model.NewError(model.ErrZeroAddressRecipient, "mint to the zero address")
	}

	raw, err := abi.Encode(metaTypes, []any{name, symbol, uint8(Decimals), true})
	if err != nil {
		return err
	}
	if err := env.Store.Put(metaKey, raw); err != nil {
		return err
	}
	if err := putAmount(env.Store, supplyKey, supply); err != nil {
		return err
	}
	if err := putAmount(env.Store, balKey(recipient), supply); err != nil {
		return err
	}
	return env.Emit(TransferEvent, model.ZeroAddress, recipient, supply)
}

func TotalSupply(r state.Reader) (*uint256.Int, error) { return getAmount(r, supplyKey) }

func BalanceOf(r state.Reader, a model.Address) (*uint256.Int, error) {
	return getAmount(r, balKey(a))
}

func Allowance(r state.Reader, owner, spender model.Address) (*uint256.Int, error) {
	return getAmount(r, allowKey(owner, spender))
}

// Balances returns every non-zero balance.
func Balances(r state.Reader) (map[model.Address]*uint256.Int, error) {
	out := make(map[model.Address]*uint256.Int)
	err := r.Iterate(balPrefix, func(k, v []byte) error {
		var a model.Address
		copy(a[:], k[len(balPrefix):])
		out[a] = new(uint256.Int).SetBytes(v)
		return nil
	})
	return out, err
}

// Transfer moves amount from from to to and emits Transfer.
func Transfer(env *diamond.Env, from, to model.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return model.NewError(model.ErrZeroAddressRecipient, "transfer to the zero address")
	}
	if err := debit(env.Store, from, amount); err != nil {
		return err
	}
	if err := credit(env.Store, to, amount); err != nil {
		return err
	}
	return env.Emit(TransferEvent, from, to, amount)
}

// Burn destroys amount of from's balance and emits Transfer(from, 0, amount).
func Burn(env *diamond.Env, from model.Address, amount *uint256.Int) error {
	if err := debit(env.Store, from, amount); err != nil {
		return err
	}
	supply, err := TotalSupply(env.Store)
	if err != nil {
		return err
	}
	if supply.Lt(amount) {
		return model.Errorf(model.ErrInternal, "burn of %s exceeds supply %s", amount.Dec(), supply.Dec())
	}
	if err := putAmount(env.Store, supplyKey, new(uint256.Int).Sub(supply, amount)); err != nil {
		return err
	}
	return env.Emit(TransferEvent, from, model.ZeroAddress, amount)
}

// Approve sets spender's allowance over owner's balance.
func Approve(env *diamond.Env, owner, spender model.Address, amount *uint256.Int) error {
	if spender.IsZero() {
		return model.NewError(model.ErrZeroAddressRecipient, "approve to the zero address")
	}
	if err := putAmount(env.Store, allowKey(owner, spender), amount); err != nil {
		return err
	}
	return env.Emit(ApprovalEvent, owner, spender, amount)
}

// SpendAllowance consumes amount of spender's allowance over owner's balance.
// An allowance of max uint256 is never decremented.
func SpendAllowance(env *diamond.Env, owner, spender model.Address, amount *uint256.Int) error {
	cur, err := Allowance(env.Store, owner, spender)
	if err != nil {
		return err
	}
	if cur.Eq(maxUint256) {
		return nil
	}
	if cur.Lt(amount) {
		return model.Errorf(model.ErrInsufficientAllowance, "allowance %s below %s", cur.Dec(), amount.Dec())
	}
	return putAmount(env.Store, allowKey(owner, spender), new(uint256.Int).Sub(cur, amount))
}

var maxUint256 = new(uint256.Int).SetAllOne()

// RequireBalance fails with InsufficientBalance unless a holds at least amount.
func RequireBalance(r state.Reader, a model.Address, amount *uint256.Int) error {
	bal, err := BalanceOf(r, a)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return model.Errorf(model.ErrInsufficientBalance, "balance %s below %s", bal.Dec(), amount.Dec())
	}
	return nil
}

func debit(s state.Store, a model.Address, amount *uint256.Int) error {
	bal, err := BalanceOf(s, a)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return model.Errorf(model.ErrInsufficientBalance, "balance %s below %s", bal.Dec(), amount.Dec())
	}
	return putAmount(s, balKey(a), new(uint256.Int).Sub(bal, amount))
}

func credit(s state.Store, a model.Address, amount *uint256.Int) error {
	bal, err := BalanceOf(s, a)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return model.Errorf(model.ErrInternal, "balance overflow for %s", a)
	}
	return putAmount(s, balKey(a), next)
}

func getAmount(r state.Reader, key []byte) (*uint256.Int, error) {
	raw, ok, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	if len(raw) != 32 {
		return nil, model.Errorf(model.ErrInternal, "corrupt amount at %q", key)
	}
	return new(uint256.Int).SetBytes(raw), nil
}

// putAmount stores v, deleting the key when v is zero.
func putAmount(s state.Store, key []byte, v *uint256.Int) error {
	if v.IsZero() {
		return s.Delete(key)
	}
	b := v.Bytes32()
	return s.Put(key, b[:])
}
