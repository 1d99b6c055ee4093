package types

import (
	"encoding/json"
	"fmt"
)

// Realtime event names
const (
	EventUserConnected     = "userconnected"
	EventRegistrationError = "registration_error"
	EventSendToReception   = "send_to_reception"
	EventReceiveFromDoctor = "receive_from_doctor"
	EventMarkAsDone        = "mark_as_done"
	EventRequestRemoved    = "request_removed"
	EventAck               = "ack"
)

// Envelope is one websocket text frame. A client frame carrying an ID
// expects an "ack" frame with the same ID in return.
type Envelope struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a frame for event
func NewEnvelope(event string, id *int64, payload interface{}) (*Envelope, error) {
	env := &Envelope{Event: event, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		env.Data = data
	}
	return env, nil
}

// Decode unmarshals the frame payload into v
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s frame has no data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("malformed %s payload: %w", e.Event, err)
	}
	return nil
}
