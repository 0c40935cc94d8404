// Package txn defines the signed transaction envelope accepted by a Host.
package txn

import (
	"fmt"

	"github.com/holiman/uint256"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/keys"
	"xdao.co/diamond/model"
)

const domain = "xdao-diamond-tx/v1"

var (
	signingTypes = []abi.Type{abi.String, abi.String, abi.Bytes, abi.Address, abi.Uint64, abi.Bytes}
	wireTypes    = []abi.Type{abi.String, abi.Bytes, abi.Address, abi.Uint64, abi.Bytes, abi.Bytes}
)

// Transaction is one signed call into a router.
// The sender is derived from PublicKey; it is never carried separately.
type Transaction struct {
	Scheme    keys.Scheme
	PublicKey []byte
	To        model.Address
	Nonce     uint64
	Data      []byte
	Signature []byte
}

// SigningBytes returns the canonical bytes covered by the signature.
func (t *Transaction) SigningBytes() []byte {
	b, err := abi.Encode(signingTypes, []any{domain, string(t.Scheme), t.PublicKey, t.To, t.Nonce, t.Data})
	if err != nil {
		// every field has a fixed Go type that the codec accepts
		panic(fmt.Sprintf("txn: signing bytes: %v", err))
	}
	return b
}

// Hash identifies the transaction.
func (t *Transaction) Hash() model.Hash { return abi.Keccak256(t.SigningBytes()) }

// Sender returns the address derived from the public key.
func (t *Transaction) Sender() model.Address { return keys.AddressFromPublicKey(t.PublicKey) }

// Msg returns the call the transaction carries.
func (t *Transaction) Msg() model.Msg {
	return model.Msg{From: t.Sender(), To: t.To, Value: new(uint256.Int), Data: t.Data}
}

// Verify checks the signature and returns the sender.
func (t *Transaction) Verify() (model.Address, error) {
	if len(t.Signature) == 0 {
		return model.Address{}, model.NewError(model.ErrInvalidSignature, "transaction is unsigned")
	}
	if err := keys.Verify(t.Scheme, t.PublicKey, t.SigningBytes(), t.Signature); err != nil {
		return model.Address{}, err
	}
	return t.Sender(), nil
}

// New builds and signs a transaction.
func New(signer keys.Signer, to model.Address, nonce uint64, data []byte) (*Transaction, error) {
	t := &Transaction{
		Scheme:    signer.Scheme(),
		PublicKey: signer.PublicKey(),
		To:        to,
		Nonce:     nonce,
		Data:      data,
	}
	sig, err := signer.Sign(t.SigningBytes())
	if err != nil {
		return nil, err
	}
	t.Signature = sig
	return t, nil
}

// Marshal encodes the transaction for transport.
func (t *Transaction) Marshal() ([]byte, error) {
	return abi.Encode(wireTypes, []any{string(t.Scheme), t.PublicKey, t.To, t.Nonce, t.Data, t.Signature})
}

// Unmarshal decodes bytes produced by Marshal.
func Unmarshal(b []byte) (*Transaction, error) {
	v, err := abi.Decode(wireTypes, b)
	if err != nil {
		return nil, err
	}
	nonce := v[3].(*uint256.Int)
	return &Transaction{
		Scheme:    keys.Scheme(v[0].(string)),
		PublicKey: v[1].([]byte),
		To:        v[2].(model.Address),
		Nonce:     nonce.Uint64(),
		Data:      v[4].([]byte),
		Signature: v[5].([]byte),
	}, nil
}
