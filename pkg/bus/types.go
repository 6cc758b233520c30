package bus

// InboundMessage is one utterance received from a messaging transport.
type InboundMessage struct {
	Channel     string            `json:"channel"`
	SenderID    string            `json:"sender_id"`
	ChatID      string            `json:"chat_id"`
	DisplayName string            `json:"display_name,omitempty"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// SenderKey identifies the sender across channels; sessions, pending
// updates and facts are all keyed by it.
func (m InboundMessage) SenderKey() string {
	if m.Channel == "" || m.Channel == "whatsapp" {
		return m.SenderID
	}
	return m.Channel + ":" + m.SenderID
}

type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`

	// result, when set, receives the delivery outcome from the dispatcher.
	result chan error
}

// Complete reports the delivery outcome to a waiting Deliver call.
// It is a no-op for fire-and-forget messages.
func (m OutboundMessage) Complete(err error) {
	if m.result == nil {
		return
	}
	select {
	case m.result <- err:
	default:
	}
}

type MessageHandler func(InboundMessage) error
