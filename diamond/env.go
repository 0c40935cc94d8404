package diamond

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

// Env is the context of one facet invocation.
//
// Store is the storage of Self (the router being called, or the facet itself
// when it is called directly). Writes to it are buffered in the call's
// transaction and discarded if the call fails.
type Env struct {
	Ctx    context.Context
	Caller model.Address
	Self   model.Address
	Value  *uint256.Int
	Store  state.Layer

	host *Host
	root state.Layer
	logs *[]model.Log
}

// Static reports whether the call is read-only.
func (e *Env) Static() bool {
	ro, ok := e.Store.(interface{ ReadOnly() bool })
	return ok && ro.ReadOnly()
}

// Logger returns the host logger.
func (e *Env) Logger() zerolog.Logger {
	if e.host == nil {
		return zerolog.Nop()
	}
	return e.host.log
}

// Emit appends a log attributed to Self.
func (e *Env) Emit(ev abi.Event, values ...any) error {
	if e.Static() {
		return model.Errorf(model.ErrWriteProtection, "event %s during static call", ev.Name)
	}
	l, err := ev.Encode(e.Self, values...)
	if err != nil {
		return model.WrapError(model.ErrInternal, "encode event "+ev.Name, err)
	}
	*e.logs = append(*e.logs, l)
	return nil
}

// Atomic runs fn on a child overlay of Store. The child's writes and logs
// are kept only when fn returns nil.
func (e *Env) Atomic(fn func(*Env) error) error {
	child := state.Begin(e.Store)
	mark := len(*e.logs)
	ce := *e
	ce.Store = child
	if err := fn(&ce); err != nil {
		child.Discard()
		*e.logs = (*e.logs)[:mark]
		return err
	}
	if err := child.Commit(); err != nil {
		*e.logs = (*e.logs)[:mark]
		return err
	}
	return nil
}

// HasCode reports whether any code is deployed at addr.
func (e *Env) HasCode(addr model.Address) (bool, error) {
	_, ok, err := readCode(e.root, addr)
	return ok, err
}

// DelegateCall runs the facet at target with this Env: same caller, same
// storage.
func (e *Env) DelegateCall(target model.Address, data []byte) ([]byte, error) {
	f, err := e.facetAt(target)
	if err != nil {
		return nil, err
	}
	return invoke(f, e, data)
}

func (e *Env) facetAt(addr model.Address) (Facet, error) {
	info, ok, err := readCode(e.root, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Errorf(model.ErrNoCode, "no code at %s", addr)
	}
	return e.host.facet(info)
}
