// Package model defines the boundary types shared by the router, its facets,
// and the API layers: addresses, selectors, module ids, cuts, messages,
// receipts, and the coded error taxonomy every revert is reported with.
//
// These structs are the only types intended for direct JSON serialization by
// consumers.
package model
