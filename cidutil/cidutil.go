package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
// This is the content id used by every storage.CAS in this module.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// CIDv1RawKeccak256CID returns a CIDv1 (raw + keccak-256) derived from data.
// Facet code ids use it so the digest matches the keccak hashing used for
// selectors and addresses.
func CIDv1RawKeccak256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.KECCAK_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Digest returns the raw digest bytes carried by id's multihash.
func Digest(id cid.Cid) ([]byte, error) {
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return nil, err
	}
	return dec.Digest, nil
}
