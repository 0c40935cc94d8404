package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address names an account, a deployed facet, or a router.
type Address [20]byte

// Selector is the four-byte identifier of one callable function.
type Selector [4]byte

// ModuleID names a toggleable module (keccak256 of its human-readable name).
type ModuleID [32]byte

// Hash is a 32-byte keccak digest (event topics, transaction hashes).
type Hash [32]byte

// ZeroAddress is the null address. It never holds code.
var ZeroAddress Address

func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAddress parses a 0x-prefixed (or bare) 40-hex-digit address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixedHex(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("address: %w", err)
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (s Selector) String() string { return "0x" + hex.EncodeToString(s[:]) }

func (s Selector) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Selector) UnmarshalText(b []byte) error {
	v, err := ParseSelector(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSelector parses a 0x-prefixed (or bare) 8-hex-digit selector.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	if err := decodeFixedHex(s, sel[:]); err != nil {
		return Selector{}, fmt.Errorf("selector: %w", err)
	}
	return sel, nil
}

func (id ModuleID) String() string { return "0x" + hex.EncodeToString(id[:]) }

func (id ModuleID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ModuleID) UnmarshalText(b []byte) error {
	var v ModuleID
	if err := decodeFixedHex(string(b), v[:]); err != nil {
		return fmt.Errorf("module id: %w", err)
	}
	*id = v
	return nil
}

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	var v Hash
	if err := decodeFixedHex(string(b), v[:]); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	*h = v
	return nil
}

func decodeFixedHex(s string, dst []byte) error {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*len(dst) {
		return fmt.Errorf("expected %d hex chars, got %d", 2*len(dst), len(s))
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

// FacetCutAction is the kind of mutation a FacetCut applies to the dispatch table.
type FacetCutAction uint8

const (
	CutAdd FacetCutAction = iota
	CutReplace
	CutRemove
)

func (a FacetCutAction) String() string {
	switch a {
	case CutAdd:
		return "Add"
	case CutReplace:
		return "Replace"
	case CutRemove:
		return "Remove"
	default:
		return fmt.Sprintf("FacetCutAction(%d)", uint8(a))
	}
}

// FacetCut is one entry of a cut batch.
// For CutRemove, FacetAddress must be the zero address.
type FacetCut struct {
	FacetAddress Address        `json:"facetAddress"`
	Action       FacetCutAction `json:"action"`
	Selectors    []Selector     `json:"functionSelectors"`
}

// Facet groups the selectors currently routed to one implementation.
type Facet struct {
	Address   Address    `json:"facetAddress"`
	Selectors []Selector `json:"functionSelectors"`
}

// ModuleConfig binds a module to its two competing implementations.
//
// Every selector in Selectors routes to Active when Enabled is true and to
// Inactive otherwise.
type ModuleConfig struct {
	ID        ModuleID   `json:"id"`
	Active    Address    `json:"active"`
	Inactive  Address    `json:"inactive"`
	Selectors []Selector `json:"selectors"`
	Enabled   bool       `json:"enabled"`
}

// Target returns the implementation the shared selectors route to when the
// module is in the given state.
func (c ModuleConfig) Target(enabled bool) Address {
	if enabled {
		return c.Active
	}
	return c.Inactive
}

// MaxBurnRate is 100% expressed in basis points.
const MaxBurnRate = 10_000

// BurnConfig is the persistent burn-on-transfer configuration.
type BurnConfig struct {
	RateBasisPoints uint64 `json:"rateBasisPoints"`
	Initialized     bool   `json:"initialized"`
}
