// Package events publishes issuance lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"idmanager/internal/platform/kafka/producer"
)

type Type string

const (
	ConnectionInvitationCreated Type = "connection_invitation_created"
	ConnectionAccepted          Type = "connection_accepted"
	CredentialOfferSent         Type = "credential_offer_sent"
	CredentialAccepted          Type = "credential_accepted"
	CredentialRevoked           Type = "credential_revoked"
)

// Event is one workflow transition.
type Event struct {
	ID                  uuid.UUID  `json:"id"`
	Type                Type       `json:"type"`
	OccurredAt          time.Time  `json:"occurred_at"`
	CredentialRequestID *uuid.UUID `json:"credential_request_id,omitempty"`
	ConnectionID        string     `json:"connection_id,omitempty"`
	CredExID            string     `json:"cred_ex_id,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, requestID *uuid.UUID, connectionID, credExID string) Event {
	return Event{
		ID:                  uuid.New(),
		Type:                t,
		OccurredAt:          time.Now().UTC(),
		CredentialRequestID: requestID,
		ConnectionID:        connectionID,
		CredExID:            credExID,
	}
}

// key groups an event stream per connection, falling back to the request.
func (e Event) key() string {
	if e.ConnectionID != "" {
		return e.ConnectionID
	}
	if e.CredentialRequestID != nil {
		return e.CredentialRequestID.String()
	}
	return e.ID.String()
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// MessageProducer is the part of producer.Producer the publisher needs.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaPublisher writes events as JSON records keyed by connection id.
type KafkaPublisher struct {
	producer MessageProducer
	topic    string
}

func NewKafkaPublisher(p MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.producer.Produce(ctx, &producer.Message{
		Topic: p.topic,
		Key:   []byte(event.key()),
		Value: payload,
		Headers: map[string]string{
			"event_type": string(event.Type),
			"event_id":   event.ID.String(),
		},
	})
}

var (
	_ Publisher = NoopPublisher{}
	_ Publisher = (*KafkaPublisher)(nil)
)
