// Package facets holds the deployable implementations a standard router is
// assembled from. Each subpackage exposes its ABI as package-level
// abi.Method values and a New constructor returning the facet code.
package facets
