package state

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"

	"xdao.co/diamond/storage"
)

// Snapshot wire format (protobuf wire encoding, no schema compilation):
//
//	field 1 (varint): format version
//	field 2 (bytes, repeated): entry { field 1: key, field 2: value }
//
// Entries are written in ascending key order, so equal states encode to
// equal bytes and therefore to equal CIDs.
const snapshotVersion = 1

const (
	fieldVersion = 1
	fieldEntry   = 2
	fieldKey     = 1
	fieldValue   = 2
)

// EncodeSnapshot serializes every key in r.
func EncodeSnapshot(r Reader) ([]byte, error) {
	var out []byte
	out = protowire.AppendTag(out, fieldVersion, protowire.VarintType)
	out = protowire.AppendVarint(out, snapshotVersion)
	err := r.Iterate(nil, func(k, v []byte) error {
		var e []byte
		e = protowire.AppendTag(e, fieldKey, protowire.BytesType)
		e = protowire.AppendBytes(e, k)
		e = protowire.AppendTag(e, fieldValue, protowire.BytesType)
		e = protowire.AppendBytes(e, v)
		out = protowire.AppendTag(out, fieldEntry, protowire.BytesType)
		out = protowire.AppendBytes(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeSnapshot parses bytes produced by EncodeSnapshot into a write batch.
func DecodeSnapshot(b []byte) ([]Write, error) {
	var (
		out        []Write
		sawVersion bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("state: snapshot: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("state: snapshot: %w", protowire.ParseError(n))
			}
			if v != snapshotVersion {
				return nil, fmt.Errorf("state: snapshot: unsupported version %d", v)
			}
			sawVersion = true
			b = b[n:]
		case num == fieldEntry && typ == protowire.BytesType:
			e, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("state: snapshot: %w", protowire.ParseError(n))
			}
			w, err := decodeEntry(e)
			if err != nil {
				return nil, err
			}
			out = append(out, w)
			b = b[n:]
		default:
			return nil, fmt.Errorf("state: snapshot: unexpected field %d", num)
		}
	}
	if !sawVersion {
		return nil, fmt.Errorf("state: snapshot: missing version")
	}
	return out, nil
}

func decodeEntry(b []byte) (Write, error) {
	var w Write
	var haveKey bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 || typ != protowire.BytesType {
			return Write{}, fmt.Errorf("state: snapshot: malformed entry")
		}
		b = b[n:]
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return Write{}, fmt.Errorf("state: snapshot: malformed entry")
		}
		b = b[n:]
		switch num {
		case fieldKey:
			w.Key = append([]byte(nil), v...)
			haveKey = true
		case fieldValue:
			w.Value = append([]byte{}, v...)
		default:
			return Write{}, fmt.Errorf("state: snapshot: unexpected entry field %d", num)
		}
	}
	if !haveKey {
		return Write{}, fmt.Errorf("state: snapshot: entry without key")
	}
	return w, nil
}

// SaveSnapshot encodes r and stores the bytes in cas.
func SaveSnapshot(cas storage.CAS, r Reader) (cid.Cid, error) {
	b, err := EncodeSnapshot(r)
	if err != nil {
		return cid.Undef, err
	}
	return cas.Put(b)
}

// RestoreSnapshot loads snapshot id from cas into b, which must be empty.
func RestoreSnapshot(cas storage.CAS, id cid.Cid, b Backend) error {
	empty, err := IsEmpty(b)
	if err != nil {
		return err
	}
	if !empty {
		return ErrNotEmpty
	}
	raw, err := cas.Get(id)
	if err != nil {
		return err
	}
	batch, err := DecodeSnapshot(raw)
	if err != nil {
		return err
	}
	return b.Apply(batch)
}
