package amqp

import (
	"encoding/json"
	"time"
)

// PartnerSyncMessage announces that the partner list changed. It carries no
// partner data: the worker reloads the list from storage.
type PartnerSyncMessage struct {
	Reason     string    `json:"reason"`
	PartnerIDs []string  `json:"partnerIds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewPartnerSyncMessage creates a message stamped with the current time.
func NewPartnerSyncMessage(reason string, partnerIDs ...string) *PartnerSyncMessage {
	return &PartnerSyncMessage{
		Reason:     reason,
		PartnerIDs: partnerIDs,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PartnerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PartnerSyncMessageFromJSON parses a message body.
func PartnerSyncMessageFromJSON(data []byte) (*PartnerSyncMessage, error) {
	var msg PartnerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
