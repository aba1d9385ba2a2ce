package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateDeliveryOrder OutboxAggregateType = "delivery_order"
	AggregateNotification  OutboxAggregateType = "notification"
	AggregateConversation  OutboxAggregateType = "conversation"
)

func (a OutboxAggregateType) IsValid() bool {
	return member(a, []OutboxAggregateType{AggregateDeliveryOrder, AggregateNotification, AggregateConversation})
}

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventDeliveryAccepted      OutboxEventType = "delivery_accepted"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

func (e OutboxEventType) IsValid() bool {
	return member(e, []OutboxEventType{EventDeliveryAccepted, EventNotificationRequested})
}

// OutboxDLQErrorReason records why the relay gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
