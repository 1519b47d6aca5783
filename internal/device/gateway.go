package device

import "context"

type EventType string

const (
	EventReady      EventType = "ready"
	EventError      EventType = "error"
	EventIncoming   EventType = "incoming"
	EventAccept     EventType = "accept"
	EventDisconnect EventType = "disconnect"
	EventCancel     EventType = "cancel"
	EventMute       EventType = "mute"
)

// Event is one telephony-device lifecycle notification. Conn and From are
// set for incoming events, Muted for mute events, Err for error events.
type Event struct {
	Type  EventType
	Conn  Connection
	From  string
	Muted bool
	Err   error
}

// ConnectParams parameterize an outbound device connection.
type ConnectParams struct {
	// To is the dial target, "room:<conference>" for conference joins.
	To string
}

// Connection is one live media connection on the device. Accept is only
// meaningful for incoming connections and is acknowledged by an accept
// event.
type Connection interface {
	Accept() error
	Disconnect() error
	Mute(muted bool) error
}

// Gateway abstracts the telephony device SDK: register an identity, open
// connections, and observe lifecycle events.
type Gateway interface {
	Register(ctx context.Context, token string) error
	Connect(params ConnectParams) (Connection, error)
	Ready() bool
	OnEvent(fn func(Event))
}
