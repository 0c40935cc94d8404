// Package abi implements the call encoding spoken by the router: Keccak-256
// identifiers and the head/tail word encoding of arguments, return values and
// event data.
//
// Only the types the facets use are supported: uintN, address, bool, bytesN,
// bytes, string, dynamic arrays and tuples. Decoding is strict: dirty padding,
// out-of-range offsets and oversized lengths are rejected with
// model.ErrInvalidCall.
package abi
