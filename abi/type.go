package abi

import (
	"fmt"
	"strings"
)

// Kind is the shape of an ABI type.
type Kind uint8

const (
	KindUint Kind = iota + 1
	KindAddress
	KindBool
	KindFixedBytes
	KindBytes
	KindString
	KindSlice
	KindTuple
)

// Type describes one ABI type.
// Size is the bit width for KindUint and the byte length for KindFixedBytes.
type Type struct {
	Kind   Kind
	Size   int
	Elem   *Type
	Fields []Type
}

var (
	Uint8   = Type{Kind: KindUint, Size: 8}
	Uint64  = Type{Kind: KindUint, Size: 64}
	Uint256 = Type{Kind: KindUint, Size: 256}
	Address = Type{Kind: KindAddress}
	Bool    = Type{Kind: KindBool}
	Bytes4  = Type{Kind: KindFixedBytes, Size: 4}
	Bytes32 = Type{Kind: KindFixedBytes, Size: 32}
	Bytes   = Type{Kind: KindBytes}
	String  = Type{Kind: KindString}
)

// SliceOf returns the dynamic array type elem[].
func SliceOf(elem Type) Type {
	e := elem
	return Type{Kind: KindSlice, Elem: &e}
}

// TupleOf returns the tuple type (fields...).
func TupleOf(fields ...Type) Type {
	return Type{Kind: KindTuple, Fields: append([]Type(nil), fields...)}
}

// String returns the canonical type name used in signatures.
func (t Type) String() string {
	switch t.Kind {
	case KindUint:
		return fmt.Sprintf("uint%d", t.Size)
	case KindAddress:
		return "address"
	case KindBool:
		return "bool"
	case KindFixedBytes:
		return fmt.Sprintf("bytes%d", t.Size)
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindSlice:
		return t.Elem.String() + "[]"
	case KindTuple:
		return "(" + joinTypes(t.Fields) + ")"
	default:
		return "invalid"
	}
}

// IsDynamic reports whether values of t are encoded out of line.
func (t Type) IsDynamic() bool {
	switch t.Kind {
	case KindBytes, KindString, KindSlice:
		return true
	case KindTuple:
		for _, f := range t.Fields {
			if f.IsDynamic() {
				return true
			}
		}
	}
	return false
}

// headSize is the number of bytes t occupies in the head of an enclosing sequence.
func (t Type) headSize() int {
	if t.Kind == KindTuple && !t.IsDynamic() {
		n := 0
		for _, f := range t.Fields {
			n += f.headSize()
		}
		return n
	}
	return wordSize
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}
