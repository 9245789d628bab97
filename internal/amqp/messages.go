package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashstash/internal/core"
)

// messageVersion is bumped when ChangeMessage changes incompatibly.
const messageVersion = 1

// ChangeMessage is the wire form of a core.Change on the fanout exchange.
type ChangeMessage struct {
	Version     int         `json:"version"`
	Change      core.Change `json:"change"`
	PublishedAt time.Time   `json:"published_at"`
}

func NewChangeMessage(c core.Change) *ChangeMessage {
	return &ChangeMessage{
		Version:     messageVersion,
		Change:      c,
		PublishedAt: time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and sanity-checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Version != messageVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	if msg.Change.UserID == "" {
		return nil, fmt.Errorf("change without user id")
	}
	return &msg, nil
}
