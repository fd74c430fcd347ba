package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message. The string values are the wire values.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "bot"
)

// OptionKind is the behavior selected by a QuickOption.
type OptionKind int

const (
	// OptionReply sends the label back as a user message.
	OptionReply OptionKind = iota
	OptionLink
	OptionAction
)

func (k OptionKind) String() string {
	switch k {
	case OptionReply:
		return "reply"
	case OptionLink:
		return "link"
	case OptionAction:
		return "action"
	default:
		return "unknown"
	}
}

// QuickOption is a clickable suggestion attached to an assistant message.
// At most one of Link and Action is set.
type QuickOption struct {
	ID     string
	Label  string
	Link   string
	Action string
}

func (o QuickOption) Kind() OptionKind {
	switch {
	case o.Link != "":
		return OptionLink
	case o.Action != "":
		return OptionAction
	default:
		return OptionReply
	}
}

// Message is a single transcript entry. Values are never mutated after they are
// appended to a transcript; Options is copied on construction for that reason.
type Message struct {
	// ID is generated locally and unique per transcript entry.
	ID string
	// RemoteID is whatever id the peer attached, kept for diagnostics only.
	RemoteID string
	Body     string
	Sender   Sender
	SentAt   time.Time
	Options  []QuickOption
	AuxLink  string
}

func NewMessageID() string {
	return uuid.NewString()
}

// NewUserMessage builds a message authored locally. User messages never carry
// options or an aux link.
func NewUserMessage(body string, at time.Time) Message {
	return Message{
		ID:     NewMessageID(),
		Body:   body,
		Sender: SenderUser,
		SentAt: at,
	}
}

func NewAssistantMessage(body string, at time.Time, options []QuickOption, auxLink string) Message {
	return Message{
		ID:      NewMessageID(),
		Body:    body,
		Sender:  SenderAssistant,
		SentAt:  at,
		Options: append([]QuickOption(nil), options...),
		AuxLink: auxLink,
	}
}

func (m Message) FromAssistant() bool {
	return m.Sender == SenderAssistant
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	m.Options = append([]QuickOption(nil), m.Options...)
	return m
}
