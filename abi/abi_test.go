package abi

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/holiman/uint256"

	"xdao.co/diamond/model"
)

func TestKnownIdentifiers(t *testing.T) {
	empty := Keccak256()
	if got := hex.EncodeToString(empty[:]); got != "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470" {
		t.Fatalf("keccak256(\"\"): got %s", got)
	}

	cases := []struct {
		sig  string
		want string
	}{
		{"transfer(address,uint256)", "0xa9059cbb"},
		{"balanceOf(address)", "0x70a08231"},
		{"approve(address,uint256)", "0x095ea7b3"},
		{"totalSupply()", "0x18160ddd"},
		{"diamondCut((address,uint8,bytes4[])[],address,bytes)", "0x1f931c1c"},
		{"facetAddress(bytes4)", "0xcdffacc6"},
	}
	for _, tc := range cases {
		if got := SelectorOf(tc.sig).String(); got != tc.want {
			t.Fatalf("SelectorOf(%q): got %s want %s", tc.sig, got, tc.want)
		}
	}

	transfer := Event{Name: "Transfer", Inputs: []Type{Address, Address, Uint256}}
	if got := transfer.ID().String(); got != "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef" {
		t.Fatalf("Transfer topic: got %s", got)
	}
}

func TestMethodSignature(t *testing.T) {
	cut := TupleOf(Address, Uint8, SliceOf(Bytes4))
	m := Method{Name: "diamondCut", Inputs: []Type{SliceOf(cut), Address, Bytes}}
	if got := m.Signature(); got != "diamondCut((address,uint8,bytes4[])[],address,bytes)" {
		t.Fatalf("Signature: got %s", got)
	}
}

func TestEncodeTransferCall(t *testing.T) {
	m := Method{Name: "transfer", Inputs: []Type{Address, Uint256}, Outputs: []Type{Bool}}
	to := model.Address{19: 0x01}
	data, err := m.EncodeCall(to, uint256.NewInt(1000))
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	want := "a9059cbb" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"00000000000000000000000000000000000000000000000000000000000003e8"
	if got := hex.EncodeToString(data); got != want {
		t.Fatalf("EncodeCall:\n got %s\nwant %s", got, want)
	}

	args, err := m.DecodeInput(data[4:])
	if err != nil {
		t.Fatalf("DecodeInput: %v", err)
	}
	if args[0].(model.Address) != to || args[1].(*uint256.Int).Uint64() != 1000 {
		t.Fatalf("DecodeInput mismatch: %v", args)
	}
}

func TestCutTupleRoundTrip(t *testing.T) {
	cutType := SliceOf(TupleOf(Address, Uint8, SliceOf(Bytes4)))
	types := []Type{cutType, Address, Bytes}

	facetA := model.Address{1}
	facetB := model.Address{2}
	cuts := []any{
		[]any{facetA, model.CutAdd, []model.Selector{{1, 2, 3, 4}, {5, 6, 7, 8}}},
		[]any{facetB, model.CutReplace, []model.Selector{{9, 9, 9, 9}}},
	}
	data, err := Encode(types, []any{cuts, model.ZeroAddress, []byte{}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(types, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := out[0].([]any)
	if len(got) != 2 {
		t.Fatalf("expected 2 cuts, got %d", len(got))
	}
	first := got[0].([]any)
	if first[0].(model.Address) != facetA || first[1].(*uint256.Int).Uint64() != uint64(model.CutAdd) {
		t.Fatalf("first cut mismatch: %v", first)
	}
	sels := first[2].([]any)
	if len(sels) != 2 || sels[1].(model.Selector) != (model.Selector{5, 6, 7, 8}) {
		t.Fatalf("selectors mismatch: %v", sels)
	}
	if out[1].(model.Address) != model.ZeroAddress || len(out[2].([]byte)) != 0 {
		t.Fatalf("trailing args mismatch: %v", out[1:])
	}
}

func TestStringAndStaticTuple(t *testing.T) {
	types := []Type{String, TupleOf(Uint256, Bool), String}
	data, err := Encode(types, []any{"Managed Democracy", []any{uint64(7), true}, "MDEM"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(types, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out[0].(string) != "Managed Democracy" || out[2].(string) != "MDEM" {
		t.Fatalf("strings mismatch: %v", out)
	}
	tuple := out[1].([]any)
	if tuple[0].(*uint256.Int).Uint64() != 7 || tuple[1].(bool) != true {
		t.Fatalf("tuple mismatch: %v", tuple)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name  string
		types []Type
		data  []byte
	}{
		{"short", []Type{Uint256}, make([]byte, 31)},
		{"dirty address", []Type{Address}, bytes.Repeat([]byte{0xff}, 32)},
		{"bad bool", []Type{Bool}, append(make([]byte, 31), 2)},
		{"uint8 overflow", []Type{Uint8}, append(make([]byte, 30), 1, 0)},
		{"offset out of range", []Type{String}, append(make([]byte, 31), 0x40)},
		{"huge array", []Type{SliceOf(Bytes4)}, append(append(make([]byte, 31), 0x20), append(make([]byte, 31), 0x10)...)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.types, tc.data)
			if !model.IsCode(err, model.ErrInvalidCall) {
				t.Fatalf("expected InvalidCall, got %v", err)
			}
		})
	}
}

// aliasedCuts builds a cut array whose n element offsets all point at one
// tuple holding m selectors.
func aliasedCuts(n, m int) []byte {
	var b []byte
	b = append(b, uintWord(32)...)
	b = append(b, uintWord(uint64(n))...)
	for i := 0; i < n; i++ {
		b = append(b, uintWord(uint64(n*wordSize))...)
	}
	b = append(b, make([]byte, wordSize)...) // facet address
	b = append(b, make([]byte, wordSize)...) // action
	b = append(b, uintWord(3*wordSize)...)
	b = append(b, uintWord(uint64(m))...)
	for i := 0; i < m; i++ {
		w := make([]byte, wordSize)
		w[0], w[3] = 0xaa, byte(i)
		b = append(b, w...)
	}
	return b
}

func TestDecodeRejectsAliasedOffsets(t *testing.T) {
	cut := TupleOf(Address, Uint8, SliceOf(Bytes4))
	types := []Type{SliceOf(cut)}

	data := aliasedCuts(200, 200)
	if _, err := Decode(types, data); !model.IsCode(err, model.ErrInvalidCall) {
		t.Fatalf("aliased offsets: expected InvalidCall, got %v", err)
	}

	// A single element pointing at its own tuple is an honest encoding.
	v, err := Decode(types, aliasedCuts(1, 200))
	if err != nil {
		t.Fatalf("Decode(single cut): %v", err)
	}
	if got := len(v[0].([]any)[0].([]any)[2].([]any)); got != 200 {
		t.Fatalf("decoded %d selectors, want 200", got)
	}
}

func TestDecodeManyCutsWithinBudget(t *testing.T) {
	cut := TupleOf(Address, Uint8, SliceOf(Bytes4))
	cuts := make([]any, 50)
	for i := range cuts {
		sels := make([]model.Selector, 20)
		for j := range sels {
			sels[j] = model.Selector{byte(i), byte(j), 1, 2}
		}
		cuts[i] = []any{model.Address{19: byte(i)}, uint8(i % 3), sels}
	}
	types := []Type{SliceOf(cut), Address, Bytes}
	data, err := Encode(types, []any{cuts, model.Address{}, []byte("init")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	v, err := Decode(types, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := len(v[0].([]any)); got != 50 {
		t.Fatalf("decoded %d cuts, want 50", got)
	}
	if !bytes.Equal(v[2].([]byte), []byte("init")) {
		t.Fatalf("trailing bytes = %q", v[2])
	}
}

func TestEncodeRejectsOverflowAndWrongTypes(t *testing.T) {
	if _, err := Encode([]Type{Uint8}, []any{300}); !model.IsCode(err, model.ErrInvalidCall) {
		t.Fatalf("expected uint8 overflow to fail, got %v", err)
	}
	if _, err := Encode([]Type{Address}, []any{"0x00"}); !model.IsCode(err, model.ErrInvalidCall) {
		t.Fatalf("expected string address to fail, got %v", err)
	}
	if _, err := Encode([]Type{Uint256, Bool}, []any{1}); !model.IsCode(err, model.ErrInvalidCall) {
		t.Fatalf("expected arity mismatch to fail, got %v", err)
	}
}

func TestEventIndexedTopics(t *testing.T) {
	ev := Event{Name: "Transfer", Inputs: []Type{Address, Address, Uint256}, Indexed: []bool{true, true, false}}
	from := model.Address{0xaa}
	to := model.Address{0xbb}
	log, err := ev.Encode(model.Address{0x01}, from, to, uint64(42))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(log.Topics) != 3 || log.Topics[0] != ev.ID() {
		t.Fatalf("unexpected topics: %v", log.Topics)
	}
	if TopicAddress(log.Topics[1]) != from || TopicAddress(log.Topics[2]) != to {
		t.Fatalf("indexed addresses mismatch")
	}
	vals, err := ev.DecodeData(log)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if vals[0].(*uint256.Int).Uint64() != 42 {
		t.Fatalf("data mismatch: %v", vals)
	}
}
