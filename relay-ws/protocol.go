package relayws

import (
	"encoding/json"
	"fmt"
)

// Client frame actions
const (
	ActionPing = "ping"
	ActionPong = "pong"
)

// Frame is a message received from a client over the WebSocket channel.
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ParseFrame parses a client frame from a JSON string.
func ParseFrame(body string) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal([]byte(body), &frame); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	return &frame, nil
}

// PongMessage returns the fixed reply payload for a ping.
func PongMessage() Frame {
	return Frame{Action: ActionPong}
}

// broadcastEnvelope is the optional structured form of an inbound broadcast
// body.
type broadcastEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// textWrapper carries a non-JSON broadcast body.
type textWrapper struct {
	Text string `json:"text"`
}

// NormalizePayload derives the payload relayed to clients from a raw
// broadcast body. A body structured as {"data": ...} relays the data value;
// any other valid JSON is relayed verbatim; anything else is wrapped as
// {"text": <raw>}.
func NormalizePayload(body string) json.RawMessage {
	raw := []byte(body)
	if !json.Valid(raw) {
		wrapped, _ := json.Marshal(textWrapper{Text: body})
		return wrapped
	}

	var envelope broadcastEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}

	return raw
}
