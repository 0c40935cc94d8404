// Package loupe answers which implementation serves which selector.
package loupe

import (
	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
)

const Name = "diamond.DiamondLoupeFacet"

// FacetsType is (address,bytes4[])[].
var FacetsType = abi.SliceOf(abi.TupleOf(abi.Address, abi.SliceOf(abi.Bytes4)))

var (
	Facets                 = abi.Method{Name: "facets", Outputs: []abi.Type{FacetsType}}
	FacetFunctionSelectors = abi.Method{Name: "facetFunctionSelectors", Inputs: []abi.Type{abi.Address}, Outputs: []abi.Type{abi.SliceOf(abi.Bytes4)}}
	FacetAddresses         = abi.Method{Name: "facetAddresses", Outputs: []abi.Type{abi.SliceOf(abi.Address)}}
	FacetAddress           = abi.Method{Name: "facetAddress", Inputs: []abi.Type{abi.Bytes4}, Outputs: []abi.Type{abi.Address}}
)

func New() *diamond.MethodSet {
	return diamond.NewMethodSet(Name).
		Handle(Facets, func(env *diamond.Env, _ []any) ([]any, error) {
			fs, err := diamond.Facets(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{FacetsToABI(fs)}, nil
		}).
		Handle(FacetFunctionSelectors, func(env *diamond.Env, args []any) ([]any, error) {
			sels, err := diamond.FacetSelectors(env.Store, args[0].(model.Address))
			if err != nil {
				return nil, err
			}
			return []any{sels}, nil
		}).
		Handle(FacetAddresses, func(env *diamond.Env, _ []any) ([]any, error) {
			addrs, err := diamond.FacetAddresses(env.Store)
			if err != nil {
				return nil, err
			}
			return []any{addrs}, nil
		}).
		Handle(FacetAddress, func(env *diamond.Env, args []any) ([]any, error) {
			// Unrouted selectors report the zero address.
			addr, _, err := diamond.Lookup(env.Store, args[0].(model.Selector))
			if err != nil {
				return nil, err
			}
			return []any{addr}, nil
		})
}

// FacetsToABI converts facets into the value shape FacetsType encodes.
func FacetsToABI(fs []model.Facet) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = []any{f.Address, f.Selectors}
	}
	return out
}

// FacetsFromABI is the inverse of FacetsToABI.
func FacetsFromABI(v any) ([]model.Facet, error) {
	rows, ok := v.([]any)
	if !ok {
		return nil, model.Errorf(model.ErrInvalidCall, "facets: unexpected value %T", v)
	}
	out := make([]model.Facet, len(rows))
	for i, r := range rows {
		fields, ok := r.([]any)
		if !ok || len(fields) != 2 {
			return nil, model.Errorf(model.ErrInvalidCall, "facet %d: malformed tuple", i)
		}
		addr, okAddr := fields[0].(model.Address)
		sels, okSels := fields[1].([]any)
		if !okAddr || !okSels {
			return nil, model.Errorf(model.ErrInvalidCall, "facet %d: malformed tuple", i)
		}
		f := model.Facet{Address: addr}
		for _, s := range sels {
			sel, ok := s.(model.Selector)
			if !ok {
				return nil, model.Errorf(model.ErrInvalidCall, "facet %d: malformed selector", i)
			}
			f.Selectors = append(f.Selectors, sel)
		}
		out[i] = f
	}
	return out, nil
}
