package abi

import (
	"golang.org/x/crypto/sha3"

	"xdao.co/diamond/model"
)

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) model.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, _ = h.Write(b)
	}
	var out model.Hash
	h.Sum(out[:0])
	return out
}

// SelectorOf derives the four-byte selector of a canonical function signature
// such as "transfer(address,uint256)".
func SelectorOf(signature string) model.Selector {
	h := Keccak256([]byte(signature))
	var sel model.Selector
	copy(sel[:], h[:4])
	return sel
}

// ModuleIDOf derives a module id from its human-readable name.
func ModuleIDOf(name string) model.ModuleID {
	return model.ModuleID(Keccak256([]byte(name)))
}

// AddressFromHash takes the low 20 bytes of h.
func AddressFromHash(h model.Hash) model.Address {
	var a model.Address
	copy(a[:], h[12:])
	return a
}
