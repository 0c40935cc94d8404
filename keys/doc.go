// Package keys provides account key helpers for router callers.
//
// An account is an Ed25519 or Dilithium3 keypair. Its address is the last
// 20 bytes of keccak256(public key bytes).
//
// Stable:
//   - Address derivation, role-seed derivation and the Signer/Verify primitives.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local-first operator
//     convenience and may change in minor releases.
package keys
