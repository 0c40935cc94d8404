package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xdao.co/diamond/model"
)

// Scheme names a signature algorithm.
type Scheme string

const (
	SchemeEd25519    Scheme = "ed25519"
	SchemeDilithium3 Scheme = "dilithium3"
)

// ParseScheme accepts the scheme names used in config files and CLI flags.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeEd25519, SchemeDilithium3:
		return Scheme(s), nil
	case "":
		return SchemeEd25519, nil
	default:
		return "", fmt.Errorf("unsupported signature scheme %q", s)
	}
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	case "keccak256":
		h := sha3.NewLegacyKeccak256()
		_, _ = h.Write(message)
		return h.Sum(nil), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Signer signs messages for one account. Both schemes sign keccak256(message).
type Signer interface {
	Scheme() Scheme
	PublicKey() []byte
	Address() model.Address
	Sign(message []byte) ([]byte, error)
}

// NewSigner builds a signer for scheme from a 32-byte seed.
func NewSigner(scheme Scheme, seed []byte) (Signer, error) {
	switch scheme {
	case SchemeEd25519:
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("ed25519 seed must be %d bytes", ed25519.SeedSize)
		}
		return ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
	case SchemeDilithium3:
		if len(seed) != mode3.SeedSize {
			return nil, fmt.Errorf("dilithium3 seed must be %d bytes", mode3.SeedSize)
		}
		var s [mode3.SeedSize]byte
		copy(s[:], seed)
		pub, priv := mode3.NewKeyFromSeed(&s)
		return dilithiumSigner{pub: pub, priv: priv}, nil
	default:
		return nil, fmt.Errorf("unsupported signature scheme %q", scheme)
	}
}

type ed25519Signer struct{ priv ed25519.PrivateKey }

func (s ed25519Signer) Scheme() Scheme { return SchemeEd25519 }

func (s ed25519Signer) PublicKey() []byte {
	return []byte(s.priv.Public().(ed25519.PublicKey))
}

func (s ed25519Signer) Address() model.Address { return AddressFromPublicKey(s.PublicKey()) }

func (s ed25519Signer) Sign(message []byte) ([]byte, error) {
	digest, err := digestFor("keccak256", message)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(s.priv, digest), nil
}

type dilithiumSigner struct {
	pub  *mode3.PublicKey
	priv *mode3.PrivateKey
}

func (s dilithiumSigner) Scheme() Scheme { return SchemeDilithium3 }

func (s dilithiumSigner) PublicKey() []byte { return s.pub.Bytes() }

func (s dilithiumSigner) Address() model.Address { return AddressFromPublicKey(s.PublicKey()) }

func (s dilithiumSigner) Sign(message []byte) ([]byte, error) {
	digest, err := digestFor("keccak256", message)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return sig, nil
}

// Verify checks sig over message for the given scheme and public key.
// Failures are reported as model.ErrInvalidSignature.
func Verify(scheme Scheme, pub, message, sig []byte) error {
	digest, err := digestFor("keccak256", message)
	if err != nil {
		return err
	}
	switch scheme {
	case SchemeEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return model.Errorf(model.ErrInvalidSignature, "ed25519 public key must be %d bytes", ed25519.PublicKeySize)
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return model.NewError(model.ErrInvalidSignature, "ed25519 signature does not verify")
		}
		return nil
	case SchemeDilithium3:
		var pk mode3.PublicKey
		if len(pub) != mode3.PublicKeySize {
			return model.Errorf(model.ErrInvalidSignature, "dilithium3 public key must be %d bytes", mode3.PublicKeySize)
		}
		if err := pk.UnmarshalBinary(pub); err != nil {
			return model.WrapError(model.ErrInvalidSignature, "dilithium3 public key", err)
		}
		if len(sig) != mode3.SignatureSize || !mode3.Verify(&pk, digest, sig) {
			return model.NewError(model.ErrInvalidSignature, "dilithium3 signature does not verify")
		}
		return nil
	default:
		return model.Errorf(model.ErrInvalidSignature, "unsupported signature scheme %q", scheme)
	}
}
