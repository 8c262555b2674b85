// Package wireframe encodes and decodes the duplex connection's wire
// format: 2-element JSON arrays `[topic, payload]` in both directions
// (spec.md §6).
package wireframe

import "encoding/json"

// Frame is one inbound or outbound message.
type Frame struct {
	Topic   string
	Payload any
}

// Decode parses a raw `[topic, data]` JSON array. If data is itself a
// JSON-encoded string, it is decoded once more and the result used as
// Payload; otherwise Payload is left as whatever json.Unmarshal produced
// for it (string/array/object/etc.), matching spec.md §6's "decode data
// once if JSON-encoded string" rule.
func Decode(raw []byte) (Frame, error) {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return Frame{}, err
	}

	var topic string
	if err := json.Unmarshal(tuple[0], &topic); err != nil {
		return Frame{}, err
	}

	return Frame{Topic: topic, Payload: decodePayload(tuple[1])}, nil
}

func decodePayload(raw json.RawMessage) any {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var nested any
		if err := json.Unmarshal([]byte(asString), &nested); err == nil {
			return nested
		}
		return asString
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	return generic
}

// Encode renders a Frame as the wire `[topic, payload]` array.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal([2]any{f.Topic, f.Payload})
}
