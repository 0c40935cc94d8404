package diamond

import (
	"xdao.co/diamond/abi"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

var OwnershipTransferredEvent = abi.Event{
	Name:    "OwnershipTransferred",
	Inputs:  []abi.Type{abi.Address, abi.Address},
	Indexed: []bool{true, true},
}

// Owner returns the router owner, or the zero address if none is set.
func Owner(r state.Reader) (model.Address, error) {
	raw, ok, err := r.Get(ownerKey)
	if err != nil || !ok {
		return model.Address{}, err
	}
	var a model.Address
	copy(a[:], raw)
	return a, nil
}

func setOwner(s state.Store, a model.Address) error { return s.Put(ownerKey, a[:]) }

// RequireOwner fails with Unauthorized unless the caller owns Self.
func RequireOwner(env *Env) error {
	owner, err := Owner(env.Store)
	if err != nil {
		return err
	}
	if owner.IsZero() || env.Caller != owner {
		return model.Errorf(model.ErrUnauthorized, "%s is not the owner", env.Caller)
	}
	return nil
}

// TransferOwnership hands the router to next. Owner only.
func TransferOwnership(env *Env, next model.Address) error {
	if err := RequireOwner(env); err != nil {
		return err
	}
	prev, err := Owner(env.Store)
	if err != nil {
		return err
	}
	if err := setOwner(env.Store, next); err != nil {
		return err
	}
	return env.Emit(OwnershipTransferredEvent, prev, next)
}
