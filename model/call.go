package model

import "github.com/holiman/uint256"

// Msg is one external call into a router.
type Msg struct {
	From  Address      `json:"from"`
	To    Address      `json:"to"`
	Value *uint256.Int `json:"value,omitempty"`
	Data  []byte       `json:"data"`
}

// Log is an event emitted during a successful call.
// Topics[0] is keccak256 of the event signature.
type Log struct {
	Address Address `json:"address"`
	Event   string  `json:"event"`
	Topics  []Hash  `json:"topics"`
	Data    []byte  `json:"data"`
}

// Receipt records the outcome of a committed call.
// Failed calls produce no receipt: their effects, logs included, are discarded.
type Receipt struct {
	TxHash Hash    `json:"txHash"`
	From   Address `json:"from"`
	To     Address `json:"to"`
	Nonce  uint64  `json:"nonce"`
	Return []byte  `json:"return"`
	Logs   []Log   `json:"logs"`
}

// LogsByEvent returns the receipt's logs named event, in emission order.
func (r *Receipt) LogsByEvent(event string) []Log {
	if r == nil {
		return nil
	}
	var out []Log
	for _, l := range r.Logs {
		if l.Event == event {
			out = append(out, l)
		}
	}
	return out
}
