// Package diamond implements the facet router: a dispatch table mapping
// selectors to implementation addresses, the cut engine that mutates it, the
// router that forwards calls, and the Host that deploys code and executes
// calls against durable state.
//
// Facets are Go values deployed at derived addresses. They keep no state of
// their own: every invocation receives an Env whose Store is the calling
// router's storage, so a facet behaves like code run via delegatecall.
package diamond
