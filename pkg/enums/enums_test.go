package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryOrderStatusTransitions(t *testing.T) {
	assert.True(t, DeliveryOrderStatusPending.CanTransitionTo(DeliveryOrderStatusAccepted))
	assert.False(t, DeliveryOrderStatusAccepted.CanTransitionTo(DeliveryOrderStatusPending))
	assert.False(t, DeliveryOrderStatusDelivered.CanTransitionTo(DeliveryOrderStatusCancelled))
	assert.True(t, DeliveryOrderStatusCancelled.IsTerminal())
	assert.False(t, DeliveryOrderStatusPickedUp.IsTerminal())
}

func TestParseNormalizesCase(t *testing.T) {
	status, err := ParseDeliveryOrderStatus(" picked_up ")
	require.NoError(t, err)
	assert.Equal(t, DeliveryOrderStatusPickedUp, status)

	mode, err := ParseTransportMode("ebike")
	require.NoError(t, err)
	assert.Equal(t, TransportModeEBike, mode)

	_, err = ParseTransportMode("hovercraft")
	assert.EqualError(t, err, `invalid transport mode "hovercraft"`)
}

func TestIsValid(t *testing.T) {
	assert.True(t, EventDeliveryAccepted.IsValid())
	assert.False(t, OutboxEventType("order_created").IsValid())
	assert.True(t, AggregateConversation.IsValid())
	assert.True(t, OutboxDLQReasonNonRetryable.IsValid())
	assert.False(t, NotificationType("marketing").IsValid())
	assert.True(t, OrderStatusConfirmed.IsValid())
	assert.False(t, MessageType("image").IsValid())
}
