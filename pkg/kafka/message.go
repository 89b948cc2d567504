package kafka

import (
	"encoding/json"
	"fmt"
	"time"
)

type IdentityChangeType string

const (
	IdentityCreated IdentityChangeType = "identity.created"
	IdentityUpdated IdentityChangeType = "identity.updated"
	IdentityDeleted IdentityChangeType = "identity.deleted"
)

// IdentityChange announces that an identity's names or ownership changed.
type IdentityChange struct {
	Type         IdentityChangeType `json:"type"`
	AuthorityKey string             `json:"authority_key"`
	Timestamp    time.Time          `json:"timestamp"`
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Change *IdentityChange
}

// ParseIdentityChange decodes the value. The authority key falls back to the
// message key and the type to the event_type header.
func (m *IncomingMessage) ParseIdentityChange() error {
	var change IdentityChange
	if err := json.Unmarshal(m.Value, &change); err != nil {
		return err
	}
	if change.AuthorityKey == "" {
		change.AuthorityKey = m.Key
	}
	if change.Type == "" {
		change.Type = IdentityChangeType(m.Headers["event_type"])
	}
	if change.AuthorityKey == "" {
		return fmt.Errorf("identity change without authority key")
	}

	switch change.Type {
	case IdentityCreated, IdentityUpdated, IdentityDeleted:
	default:
		return fmt.Errorf("unknown identity change type %q", change.Type)
	}

	m.Change = &change
	return nil
}
