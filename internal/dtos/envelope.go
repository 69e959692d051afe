package dtos

import "encoding/json"

// Envelope is the standard frame for all websocket traffic in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEnvelope converts a typed payload into a frame.
func MarshalEnvelope(messageType string, payload interface{}) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: messageType, Payload: json.RawMessage("{}")}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: messageType, Payload: data}, nil
}
