package diamond

import (
	"encoding/binary"

	"github.com/ipfs/go-cid"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/cidutil"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
)

// RouterCodeName names the router's own code in code records.
const RouterCodeName = "diamond.Router"

// CodeInfo describes code deployed at an address.
type CodeInfo struct {
	Address model.Address `json:"address"`
	Name    string        `json:"name"`
	CID     cid.Cid       `json:"cid"`
}

var codeRecordTypes = []abi.Type{abi.String, abi.Bytes}

func codeKey(addr model.Address) []byte { return state.Key("host/code", addr[:]) }

func nonceKey(addr model.Address) []byte { return state.Key("host/nonce", addr[:]) }

func accountPrefix(addr model.Address) []byte {
	return append(state.Key("acct", addr[:]), '/')
}

// accountStore returns the storage of addr inside root.
func accountStore(root state.Layer, addr model.Address) state.Layer {
	return state.Prefix(root, accountPrefix(addr))
}

func readCode(r state.Reader, addr model.Address) (CodeInfo, bool, error) {
	raw, ok, err := r.Get(codeKey(addr))
	if err != nil || !ok {
		return CodeInfo{}, false, err
	}
	v, err := abi.Decode(codeRecordTypes, raw)
	if err != nil {
		return CodeInfo{}, false, model.WrapError(model.ErrInternal, "corrupt code record for "+addr.String(), err)
	}
	id, err := cid.Cast(v[1].([]byte))
	if err != nil {
		return CodeInfo{}, false, model.WrapError(model.ErrInternal, "corrupt code cid for "+addr.String(), err)
	}
	return CodeInfo{Address: addr, Name: v[0].(string), CID: id}, true, nil
}

func writeCode(s state.Store, info CodeInfo) error {
	raw, err := abi.Encode(codeRecordTypes, []any{info.Name, info.CID.Bytes()})
	if err != nil {
		return err
	}
	return s.Put(codeKey(info.Address), raw)
}

func readNonce(r state.Reader, addr model.Address) (uint64, error) {
	raw, ok, err := r.Get(nonceKey(addr))
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, model.Errorf(model.ErrInternal, "corrupt nonce for %s", addr)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func writeNonce(s state.Store, addr model.Address, n uint64) error {
	return s.Put(nonceKey(addr), binary.BigEndian.AppendUint64(nil, n))
}

// CreateAddress derives the address of the contract deployed by deployer at nonce.
func CreateAddress(deployer model.Address, nonce uint64) model.Address {
	return abi.AddressFromHash(abi.Keccak256(deployer[:], binary.BigEndian.AppendUint64(nil, nonce)))
}

func routerCID() (cid.Cid, error) {
	return cidutil.CIDv1RawKeccak256CID([]byte(RouterCodeName))
}
