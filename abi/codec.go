package abi

import (
	"reflect"

	"github.com/holiman/uint256"

	"xdao.co/diamond/model"
)

const wordSize = 32

// Encode encodes values as the ABI sequence described by types.
//
// Accepted Go values: uints as *uint256.Int, uint256.Int or unsigned/non-negative
// native integers; model.Address; bool; model.Selector, model.Hash,
// model.ModuleID or a byte slice of the exact width for fixed bytes; []byte;
// string; any slice for arrays; []any for tuples.
func Encode(types []Type, values []any) ([]byte, error) {
	if len(types) != len(values) {
		return nil, invalidf("expected %d values, got %d", len(types), len(values))
	}
	return encodeSequence(types, values)
}

// Decode decodes an ABI sequence described by types.
//
// Decoded Go values: uints as *uint256.Int, model.Address, bool, model.Selector
// for bytes4, model.Hash for bytes32, []byte for other fixed widths and bytes,
// string, []any for arrays and tuples.
func Decode(types []Type, data []byte) ([]any, error) {
	d := decoder{budget: len(data) / wordSize}
	return d.sequence(types, data)
}

func encodeSequence(types []Type, values []any) ([]byte, error) {
	headLen := 0
	for _, t := range types {
		headLen += t.headSize()
	}
	head := make([]byte, 0, headLen)
	var tail []byte
	for i, t := range types {
		enc, err := encodeValue(t, values[i])
		if err != nil {
			return nil, err
		}
		if t.IsDynamic() {
			head = append(head, uintWord(uint64(headLen+len(tail)))...)
			tail = append(tail, enc...)
			continue
		}
		head = append(head, enc...)
	}
	return append(head, tail...), nil
}

func encodeValue(t Type, v any) ([]byte, error) {
	switch t.Kind {
	case KindUint:
		n, err := toUint(v)
		if err != nil {
			return nil, err
		}
		if n.BitLen() > t.Size {
			return nil, invalidf("value %s overflows %s", n.Dec(), t)
		}
		w := n.Bytes32()
		return w[:], nil
	case KindAddress:
		a, ok := v.(model.Address)
		if !ok {
			return nil, invalidf("address: unsupported value %T", v)
		}
		w := make([]byte, wordSize)
		copy(w[12:], a[:])
		return w, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, invalidf("bool: unsupported value %T", v)
		}
		w := make([]byte, wordSize)
		if b {
			w[31] = 1
		}
		return w, nil
	case KindFixedBytes:
		b, err := toFixed(v, t.Size)
		if err != nil {
			return nil, err
		}
		w := make([]byte, wordSize)
		copy(w, b)
		return w, nil
	case KindBytes, KindString:
		var b []byte
		switch x := v.(type) {
		case []byte:
			b = x
		case string:
			b = []byte(x)
		default:
			return nil, invalidf("%s: unsupported value %T", t, v)
		}
		out := uintWord(uint64(len(b)))
		out = append(out, b...)
		if pad := len(b) % wordSize; pad != 0 {
			out = append(out, make([]byte, wordSize-pad)...)
		}
		return out, nil
	case KindSlice:
		elems, err := toSlice(v)
		if err != nil {
			return nil, err
		}
		types := make([]Type, len(elems))
		for i := range types {
			types[i] = *t.Elem
		}
		body, err := encodeSequence(types, elems)
		if err != nil {
			return nil, err
		}
		return append(uintWord(uint64(len(elems))), body...), nil
	case KindTuple:
		fields, ok := v.([]any)
		if !ok {
			return nil, invalidf("tuple: unsupported value %T", v)
		}
		if len(fields) != len(t.Fields) {
			return nil, invalidf("tuple %s: expected %d fields, got %d", t, len(t.Fields), len(fields))
		}
		return encodeSequence(t.Fields, fields)
	default:
		return nil, invalidf("unsupported type kind %d", t.Kind)
	}
}

// decoder bounds the work of one Decode call. Every decoded word is charged
// against budget, which starts at the number of input words, so offsets that
// alias the same data cannot expand a small input into a large value.
type decoder struct {
	budget int
}

func (d *decoder) charge(words int) error {
	if words > d.budget {
		return invalidf("decoded data exceeds input size")
	}
	d.budget -= words
	return nil
}

func (d *decoder) sequence(types []Type, buf []byte) ([]any, error) {
	out := make([]any, len(types))
	pos := 0
	for i, t := range types {
		if t.IsDynamic() {
			off, err := readSize(buf, pos)
			if err != nil {
				return nil, err
			}
			if off > len(buf) {
				return nil, invalidf("offset %d out of range", off)
			}
			v, err := d.dynamic(t, buf[off:])
			if err != nil {
				return nil, err
			}
			out[i] = v
			pos += wordSize
			continue
		}
		n := t.headSize()
		if pos+n > len(buf) {
			return nil, invalidf("%s: short data", t)
		}
		v, err := d.static(t, buf[pos:pos+n])
		if err != nil {
			return nil, err
		}
		out[i] = v
		pos += n
	}
	return out, nil
}

func (d *decoder) dynamic(t Type, buf []byte) (any, error) {
	switch t.Kind {
	case KindBytes, KindString:
		n, err := readSize(buf, 0)
		if err != nil {
			return nil, err
		}
		if wordSize+n > len(buf) {
			return nil, invalidf("%s: length %d exceeds data", t, n)
		}
		if err := d.charge(1 + (n+wordSize-1)/wordSize); err != nil {
			return nil, err
		}
		if t.Kind == KindString {
			return string(buf[wordSize : wordSize+n]), nil
		}
		return append([]byte(nil), buf[wordSize:wordSize+n]...), nil
	case KindSlice:
		n, err := readSize(buf, 0)
		if err != nil {
			return nil, err
		}
		body := buf[wordSize:]
		if n > len(body)/t.Elem.headSize() {
			return nil, invalidf("%s: length %d exceeds data", t, n)
		}
		if err := d.charge(1); err != nil {
			return nil, err
		}
		types := make([]Type, n)
		for i := range types {
			types[i] = *t.Elem
		}
		return d.sequence(types, body)
	case KindTuple:
		return d.sequence(t.Fields, buf)
	default:
		return nil, invalidf("%s is not dynamic", t)
	}
}

func (d *decoder) static(t Type, w []byte) (any, error) {
	if t.Kind != KindTuple {
		if err := d.charge(1); err != nil {
			return nil, err
		}
	}
	switch t.Kind {
	case KindUint:
		n := new(uint256.Int).SetBytes32(w[:wordSize])
		if n.BitLen() > t.Size {
			return nil, invalidf("value overflows %s", t)
		}
		return n, nil
	case KindAddress:
		if !allZero(w[:12]) {
			return nil, invalidf("address: dirty high bytes")
		}
		var a model.Address
		copy(a[:], w[12:wordSize])
		return a, nil
	case KindBool:
		if !allZero(w[:31]) || w[31] > 1 {
			return nil, invalidf("bool: invalid word")
		}
		return w[31] == 1, nil
	case KindFixedBytes:
		if !allZero(w[t.Size:wordSize]) {
			return nil, invalidf("%s: dirty padding", t)
		}
		switch t.Size {
		case 4:
			var s model.Selector
			copy(s[:], w)
			return s, nil
		case 32:
			var h model.Hash
			copy(h[:], w)
			return h, nil
		default:
			return append([]byte(nil), w[:t.Size]...), nil
		}
	case KindTuple:
		return d.sequence(t.Fields, w)
	default:
		return nil, invalidf("%s is not static", t)
	}
}

func readSize(buf []byte, pos int) (int, error) {
	if pos+wordSize > len(buf) {
		return 0, invalidf("short data reading word at %d", pos)
	}
	n := new(uint256.Int).SetBytes32(buf[pos : pos+wordSize])
	if !n.IsUint64() || n.Uint64() > uint64(len(buf)) {
		return 0, invalidf("size %s out of range", n.Dec())
	}
	return int(n.Uint64()), nil
}

func uintWord(n uint64) []byte {
	w := uint256.NewInt(n).Bytes32()
	return w[:]
}

func toUint(v any) (*uint256.Int, error) {
	switch x := v.(type) {
	case *uint256.Int:
		if x == nil {
			return nil, invalidf("uint: nil value")
		}
		return x, nil
	case uint256.Int:
		return &x, nil
	case uint64:
		return uint256.NewInt(x), nil
	case uint32:
		return uint256.NewInt(uint64(x)), nil
	case uint16:
		return uint256.NewInt(uint64(x)), nil
	case uint8:
		return uint256.NewInt(uint64(x)), nil
	case int:
		if x < 0 {
			return nil, invalidf("uint: negative value %d", x)
		}
		return uint256.NewInt(uint64(x)), nil
	case model.FacetCutAction:
		return uint256.NewInt(uint64(x)), nil
	default:
		return nil, invalidf("uint: unsupported value %T", v)
	}
}

func toFixed(v any, size int) ([]byte, error) {
	var b []byte
	switch x := v.(type) {
	case model.Selector:
		b = x[:]
	case model.Hash:
		b = x[:]
	case model.ModuleID:
		b = x[:]
	case [32]byte:
		b = x[:]
	case [4]byte:
		b = x[:]
	case []byte:
		b = x
	default:
		return nil, invalidf("bytes%d: unsupported value %T", size, v)
	}
	if len(b) != size {
		return nil, invalidf("bytes%d: got %d bytes", size, len(b))
	}
	return b, nil
}

func toSlice(v any) ([]any, error) {
	if xs, ok := v.([]any); ok {
		return xs, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, invalidf("array: unsupported value %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func invalidf(format string, args ...any) error {
	return model.Errorf(model.ErrInvalidCall, "abi: "+format, args...)
}
