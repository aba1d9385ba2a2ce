package enums

import "slices"

// DeliveryOrderStatus tracks a dispatchable job through its lifecycle.
type DeliveryOrderStatus string

const (
	DeliveryOrderStatusPending   DeliveryOrderStatus = "PENDING"
	DeliveryOrderStatusAccepted  DeliveryOrderStatus = "ACCEPTED"
	DeliveryOrderStatusPickedUp  DeliveryOrderStatus = "PICKED_UP"
	DeliveryOrderStatusDelivered DeliveryOrderStatus = "DELIVERED"
	DeliveryOrderStatusCancelled DeliveryOrderStatus = "CANCELLED"
)

var validDeliveryOrderStatuses = []DeliveryOrderStatus{
	DeliveryOrderStatusPending,
	DeliveryOrderStatusAccepted,
	DeliveryOrderStatusPickedUp,
	DeliveryOrderStatusDelivered,
	DeliveryOrderStatusCancelled,
}

// deliveryTransitions lists the allowed next states per state.
var deliveryTransitions = map[DeliveryOrderStatus][]DeliveryOrderStatus{
	DeliveryOrderStatusPending:  {DeliveryOrderStatusAccepted, DeliveryOrderStatusCancelled},
	DeliveryOrderStatusAccepted: {DeliveryOrderStatusPickedUp, DeliveryOrderStatusDelivered, DeliveryOrderStatusCancelled},
	DeliveryOrderStatusPickedUp: {DeliveryOrderStatusDelivered},
}

func (s DeliveryOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s DeliveryOrderStatus) IsValid() bool {
	return member(s, validDeliveryOrderStatuses)
}

// IsTerminal reports whether no further transitions are possible.
func (s DeliveryOrderStatus) IsTerminal() bool {
	return s == DeliveryOrderStatusDelivered || s == DeliveryOrderStatusCancelled
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s DeliveryOrderStatus) CanTransitionTo(next DeliveryOrderStatus) bool {
	return slices.Contains(deliveryTransitions[s], next)
}

// ParseDeliveryOrderStatus converts raw input into DeliveryOrderStatus.
func ParseDeliveryOrderStatus(value string) (DeliveryOrderStatus, error) {
	return parseUpper(value, "delivery order status", validDeliveryOrderStatuses)
}
