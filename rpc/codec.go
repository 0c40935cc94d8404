package rpc

import (
	"xdao.co/diamond/abi"
	"xdao.co/diamond/model"
)

var (
	msgTypes    = []abi.Type{abi.Address, abi.Address, abi.Bytes}
	lookupTypes = []abi.Type{abi.Address, abi.Bytes4}
)

func encodeMsg(m model.Msg) ([]byte, error) {
	data := m.Data
	if data == nil {
		data = []byte{}
	}
	return abi.Encode(msgTypes, []any{m.From, m.To, data})
}

func decodeMsg(b []byte) (model.Msg, error) {
	v, err := abi.Decode(msgTypes, b)
	if err != nil {
		return model.Msg{}, err
	}
	return model.Msg{From: v[0].(model.Address), To: v[1].(model.Address), Data: v[2].([]byte)}, nil
}

func encodeLookup(router model.Address, sel model.Selector) ([]byte, error) {
	return abi.Encode(lookupTypes, []any{router, sel})
}

func decodeLookup(b []byte) (model.Address, model.Selector, error) {
	v, err := abi.Decode(lookupTypes, b)
	if err != nil {
		return model.Address{}, model.Selector{}, err
	}
	return v[0].(model.Address), v[1].(model.Selector), nil
}
