package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindPasswordReset Kind = "password_reset"
)

// Message is one queued email. It travels through the stream as a single
// JSON encoded field.
type Message struct {
	Kind      Kind      `json:"type"`
	To        string    `json:"to"`
	Name      string    `json:"name,omitempty"`
	Link      string    `json:"link,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

const payloadField = "payload"

func (m Message) values() (map[string]any, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return map[string]any{
		"type":       string(m.Kind),
		payloadField: string(raw),
	}, nil
}

func decodeMessage(values map[string]any) (Message, error) {
	raw, ok := values[payloadField].(string)
	if !ok {
		return Message{}, fmt.Errorf("missing %s field", payloadField)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
