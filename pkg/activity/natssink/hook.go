// Package natssink publishes activity events to NATS subjects.
package natssink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-templating/pkg/activity"
	"github.com/nats-io/nats.go"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "templating"

// Message is the JSON payload published for every event.
type Message struct {
	Verb           string         `json:"verb"`
	ActorID        string         `json:"actor_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	TenantID       string         `json:"tenant_id,omitempty"`
	ObjectType     string         `json:"object_type"`
	ObjectID       string         `json:"object_id"`
	Channel        string         `json:"channel,omitempty"`
	DefinitionCode string         `json:"definition_code,omitempty"`
	Recipients     []string       `json:"recipients,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Hook publishes events on <Prefix>.<verb>.
type Hook struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials url and returns a hook that owns the connection.
func Connect(url, prefix string, opts ...nats.Option) (*Hook, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return New(nc, prefix), nil
}

// New wraps an existing connection.
func New(conn *nats.Conn, prefix string) *Hook {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Hook{conn: conn, prefix: prefix}
}

// Subject returns the subject an event with verb is published on.
func (h *Hook) Subject(verb string) string {
	return h.prefix + "." + verb
}

// Notify publishes the normalized event. Events without a verb are dropped.
func (h *Hook) Notify(_ context.Context, event activity.Event) error {
	if h == nil || h.conn == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" {
		return nil
	}
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	data, err := json.Marshal(Message{
		Verb:           normalized.Verb,
		ActorID:        normalized.ActorID,
		UserID:         normalized.UserID,
		TenantID:       normalized.TenantID,
		ObjectType:     normalized.ObjectType,
		ObjectID:       normalized.ObjectID,
		Channel:        normalized.Channel,
		DefinitionCode: normalized.DefinitionCode,
		Recipients:     normalized.Recipients,
		Metadata:       normalized.Metadata,
		OccurredAt:     normalized.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return h.conn.Publish(h.Subject(normalized.Verb), data)
}

// Close closes the underlying connection.
func (h *Hook) Close() error {
	if h != nil && h.conn != nil {
		h.conn.Close()
	}
	return nil
}
