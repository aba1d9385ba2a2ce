package enums

// NotificationType maps to the notifications.type check constraint.
type NotificationType string

const (
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
	NotificationTypeOrderAlert         NotificationType = "order_alert"
	NotificationTypeDeliveryAccepted   NotificationType = "delivery_accepted"
	NotificationTypeDeliveryAssigned   NotificationType = "delivery_assigned"
)

func (n NotificationType) IsValid() bool {
	return member(n, []NotificationType{
		NotificationTypeSystemAnnouncement,
		NotificationTypeOrderAlert,
		NotificationTypeDeliveryAccepted,
		NotificationTypeDeliveryAssigned,
	})
}
