package enums

// MessageType distinguishes participant chat from platform-authored messages.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

func (m MessageType) IsValid() bool {
	return m == MessageTypeText || m == MessageTypeSystem
}
