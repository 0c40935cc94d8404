package abi

import (
	"fmt"

	"xdao.co/diamond/model"
)

// Method describes one callable function.
type Method struct {
	Name    string
	Inputs  []Type
	Outputs []Type
}

// Signature returns the canonical signature, e.g. "transfer(address,uint256)".
func (m Method) Signature() string {
	return m.Name + "(" + joinTypes(m.Inputs) + ")"
}

// ID returns the method's selector.
func (m Method) ID() model.Selector { return SelectorOf(m.Signature()) }

// EncodeCall returns selector ‖ encoded args.
func (m Method) EncodeCall(args ...any) ([]byte, error) {
	body, err := Encode(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	id := m.ID()
	return append(id[:], body...), nil
}

// DecodeInput decodes call arguments (without the selector).
func (m Method) DecodeInput(data []byte) ([]any, error) {
	return Decode(m.Inputs, data)
}

// EncodeOutput encodes return values.
func (m Method) EncodeOutput(values ...any) ([]byte, error) {
	return Encode(m.Outputs, values)
}

// DecodeOutput decodes return data.
func (m Method) DecodeOutput(data []byte) ([]any, error) {
	return Decode(m.Outputs, data)
}

// Event describes one log type. Indexed inputs must be static and become topics.
type Event struct {
	Name    string
	Inputs  []Type
	Indexed []bool
}

func (e Event) Signature() string {
	return e.Name + "(" + joinTypes(e.Inputs) + ")"
}

// ID returns topic[0] of the event.
func (e Event) ID() model.Hash { return Keccak256([]byte(e.Signature())) }

func (e Event) indexed(i int) bool { return i < len(e.Indexed) && e.Indexed[i] }

// Encode builds a log for the event emitted by address.
func (e Event) Encode(address model.Address, values ...any) (model.Log, error) {
	if len(values) != len(e.Inputs) {
		return model.Log{}, invalidf("event %s: expected %d values, got %d", e.Name, len(e.Inputs), len(values))
	}
	topics := []model.Hash{e.ID()}
	var dataTypes []Type
	var dataValues []any
	for i, t := range e.Inputs {
		if !e.indexed(i) {
			dataTypes = append(dataTypes, t)
			dataValues = append(dataValues, values[i])
			continue
		}
		if t.IsDynamic() {
			return model.Log{}, invalidf("event %s: indexed %s must be static", e.Name, t)
		}
		w, err := encodeValue(t, values[i])
		if err != nil {
			return model.Log{}, err
		}
		var topic model.Hash
		copy(topic[:], w)
		topics = append(topics, topic)
	}
	data, err := Encode(dataTypes, dataValues)
	if err != nil {
		return model.Log{}, err
	}
	return model.Log{Address: address, Event: e.Name, Topics: topics, Data: data}, nil
}

// DecodeData decodes the non-indexed inputs of a log.
func (e Event) DecodeData(log model.Log) ([]any, error) {
	var dataTypes []Type
	for i, t := range e.Inputs {
		if !e.indexed(i) {
			dataTypes = append(dataTypes, t)
		}
	}
	return Decode(dataTypes, log.Data)
}

// TopicAddress extracts an address from an indexed topic.
func TopicAddress(h model.Hash) model.Address {
	return AddressFromHash(h)
}
