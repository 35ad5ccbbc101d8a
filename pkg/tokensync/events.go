package tokensync

// EventType names an inbound push-provider event.
type EventType string

const (
	EventTokenRefreshed  EventType = "token_refreshed"
	EventMessageReceived EventType = "message_received"
)

// ProviderEvent is the wire form of a push-provider notification relayed to this agent.
type ProviderEvent struct {
	Type      EventType         `json:"type"`
	Token     string            `json:"token,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
	From      string            `json:"from,omitempty"`
	Title     string            `json:"title,omitempty"`
	Body      string            `json:"body,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// IncomingMessage is a push message delivered to the device.
type IncomingMessage struct {
	MessageID string
	From      string
	Title     string
	Body      string
	Data      map[string]string
}

// Message extracts the IncomingMessage carried by a message_received event.
func (e ProviderEvent) Message() IncomingMessage {
	return IncomingMessage{
		MessageID: e.MessageID,
		From:      e.From,
		Title:     e.Title,
		Body:      e.Body,
		Data:      e.Data,
	}
}

// TokenRequest is published when the agent needs the provider to issue a token.
type TokenRequest struct {
	RequestID   string `json:"request_id"`
	Platform    string `json:"platform"`
	RequestedAt string `json:"requested_at"`
}
