package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmarket/marketplace-backend/pkg/config"
	"github.com/localmarket/marketplace-backend/pkg/db/models"
	"github.com/localmarket/marketplace-backend/pkg/enums"
	"github.com/localmarket/marketplace-backend/pkg/outbox"
	"github.com/localmarket/marketplace-backend/pkg/outbox/payloads"
)

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "domain-topic"})
	require.NoError(t, err)
	return reg
}

func envelopeFor(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return env
}

func requirePermanent(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, IsPermanent(err), "expected permanent error, got %T", err)
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "  "})
	assert.Error(t, err)
}

func TestResolveDeliveryAccepted(t *testing.T) {
	reg := newTestRegistry(t)
	jobID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDeliveryAccepted,
		AggregateType: enums.AggregateDeliveryOrder,
		AggregateID:   jobID,
		Payload:       envelopeFor(t, payloads.DeliveryAcceptedEvent{DeliveryOrderID: jobID, OrderNumber: 1042}),
	})
	require.NoError(t, err)

	assert.Equal(t, "domain-topic", resolved.Route.Topic)
	payload, ok := resolved.Payload.(*payloads.DeliveryAcceptedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, jobID, payload.DeliveryOrderID)
	assert.EqualValues(t, 1042, payload.OrderNumber)
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestResolveNotificationRequested(t *testing.T) {
	reg := newTestRegistry(t)
	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Payload:       envelopeFor(t, payloads.NotificationRequestedEvent{Title: "Courier assigned"}),
	})
	require.NoError(t, err)
	payload := resolved.Payload.(*payloads.NotificationRequestedEvent)
	assert.Equal(t, "Courier assigned", payload.Title)
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.OutboxEventType("order_paid"),
		AggregateType: enums.AggregateDeliveryOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopeFor(t, map[string]string{}),
	})
	requirePermanent(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDeliveryAccepted,
		AggregateType: enums.AggregateNotification,
		AggregateID:   uuid.New(),
		Payload:       envelopeFor(t, map[string]string{}),
	})
	requirePermanent(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDeliveryAccepted,
		AggregateType: enums.AggregateDeliveryOrder,
		Payload:       envelopeFor(t, map[string]string{}),
	})
	requirePermanent(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDeliveryAccepted,
		AggregateType: enums.AggregateDeliveryOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{not json`),
	})
	requirePermanent(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventDeliveryAccepted,
		AggregateType: enums.AggregateDeliveryOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopeFor(t, nil),
	})
	requirePermanent(t, err)
}

func TestIsPermanentSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("relay: %w", Permanent(errors.New("bad row")))
	assert.True(t, IsPermanent(wrapped))
	assert.False(t, IsPermanent(errors.New("timeout")))
	assert.Equal(t, "bad row", Permanent(errors.New("bad row")).Error())
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{"domain-topic"}, newTestRegistry(t).Topics())
}
