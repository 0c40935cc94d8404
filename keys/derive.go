package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/model"
)

// AddressFromPublicKey returns the account address for a public key of any scheme.
func AddressFromPublicKey(pub []byte) model.Address {
	return abi.AddressFromHash(abi.Keccak256(pub))
}

// AddressFromSeed returns the address of the Ed25519 account for seed.
func AddressFromSeed(seed []byte) (model.Address, error) {
	if len(seed) != ed25519.SeedSize {
		return model.Address{}, fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return AddressFromPublicKey(pub), nil
}

// DeriveRoleSeed deterministically derives a role-specific seed from a root seed.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("xdao-diamond-keys-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	return sum[:ed25519.SeedSize], nil
}
