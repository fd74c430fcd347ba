package session

// ConnectionState is the lifecycle of the session's channel.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Errored
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Label is the connectivity indicator shown next to the chat title.
func (s ConnectionState) Label() string {
	switch s {
	case Connected:
		return "Online"
	case Connecting:
		return "Connecting..."
	case Errored:
		return "Connection error"
	case Disconnected:
		return "Offline"
	default:
		return "Offline"
	}
}
