// Package bind provides typed Go clients for a router. A Router encodes
// method calls with the facet ABIs and sends them through a Backend: the
// in-process Host directly, or any Chain (Host or rpc.Client) with signed
// transactions.
package bind

import (
	"context"
	"fmt"

	"xdao.co/diamond/diamond"
	"xdao.co/diamond/keys"
	"xdao.co/diamond/model"
	"xdao.co/diamond/txn"
)

// Backend executes calls against a router.
type Backend interface {
	Transact(ctx context.Context, to model.Address, data []byte) (*model.Receipt, error)
	StaticCall(ctx context.Context, to model.Address, data []byte) ([]byte, error)
}

// Chain is the surface shared by diamond.Host and rpc.Client.
type Chain interface {
	Submit(ctx context.Context, t *txn.Transaction) (*model.Receipt, error)
	StaticCall(ctx context.Context, msg model.Msg) ([]byte, error)
	Nonce(ctx context.Context, addr model.Address) (uint64, error)
}

var _ Chain = (*diamond.Host)(nil)

// Direct sends unsigned calls from a fixed address to an in-process host.
func Direct(h *diamond.Host, from model.Address) Backend {
	return directBackend{host: h, from: from}
}

type directBackend struct {
	host *diamond.Host
	from model.Address
}

func (b directBackend) Transact(ctx context.Context, to model.Address, data []byte) (*model.Receipt, error) {
	return b.host.Call(ctx, model.Msg{From: b.from, To: to, Data: data})
}

func (b directBackend) StaticCall(ctx context.Context, to model.Address, data []byte) ([]byte, error) {
	return b.host.StaticCall(ctx, model.Msg{From: b.from, To: to, Data: data})
}

// Signed signs every transaction with s, using the chain's current nonce
// for the signer's address.
func Signed(c Chain, s keys.Signer) Backend {
	return signedBackend{chain: c, signer: s}
}

type signedBackend struct {
	chain  Chain
	signer keys.Signer
}

func (b signedBackend) Transact(ctx context.Context, to model.Address, data []byte) (*model.Receipt, error) {
	nonce, err := b.chain.Nonce(ctx, b.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("bind: nonce: %w", err)
	}
	t, err := txn.New(b.signer, to, nonce, data)
	if err != nil {
		return nil, err
	}
	return b.chain.Submit(ctx, t)
}

func (b signedBackend) StaticCall(ctx context.Context, to model.Address, data []byte) ([]byte, error) {
	return b.chain.StaticCall(ctx, model.Msg{From: b.signer.Address(), To: to, Data: data})
}

// ReadOnly serves static calls through c as from and refuses transactions.
func ReadOnly(c Chain, from model.Address) Backend {
	return readOnlyBackend{chain: c, from: from}
}

type readOnlyBackend struct {
	chain Chain
	from  model.Address
}

func (b readOnlyBackend) Transact(context.Context, model.Address, []byte) (*model.Receipt, error) {
	return nil, model.NewError(model.ErrUnauthorized, "read-only backend cannot transact")
}

func (b readOnlyBackend) StaticCall(ctx context.Context, to model.Address, data []byte) ([]byte, error) {
	return b.chain.StaticCall(ctx, model.Msg{From: b.from, To: to, Data: data})
}
