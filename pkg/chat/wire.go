package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Wire event names exchanged with the remote endpoint.
const (
	EventJoin           = "join"
	EventSendMessage    = "send-message"
	EventReceiveMessage = "receive-message"
)

// Envelope is the frame written on the channel for every event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the body of an outbound send-message event.
type SendMessagePayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func NewSendMessagePayload(sessionID string, msg Message) SendMessagePayload {
	return SendMessagePayload{
		SessionID: sessionID,
		Message:   msg.Body,
		Timestamp: FormatTimestamp(msg.SentAt),
	}
}

// InboundOption mirrors one entry of the options array of receive-message.
type InboundOption struct {
	ID     string `json:"id,omitempty"`
	Label  string `json:"label"`
	Link   string `json:"link,omitempty"`
	Action string `json:"action,omitempty"`
}

// InboundMessage mirrors the payload of receive-message. The id is accepted as a
// string or a number since peers disagree on it.
type InboundMessage struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Text      *string         `json:"text"`
	Sender    string          `json:"sender"`
	Timestamp string          `json:"timestamp"`
	Options   []InboundOption `json:"options,omitempty"`
	Link      string          `json:"link,omitempty"`
}

// ProtocolError describes an inbound payload that does not satisfy the wire contract.
type ProtocolError struct {
	Event  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation in %s: %s", e.Event, e.Reason)
}

func violation(format string, args ...any) *ProtocolError {
	return &ProtocolError{Event: EventReceiveMessage, Reason: fmt.Sprintf(format, args...)}
}

// DecodeInbound validates a receive-message payload and turns it into a Message with
// a fresh local id. Anything that does not match the contract yields a *ProtocolError.
func DecodeInbound(data json.RawMessage) (Message, error) {
	if len(data) == 0 {
		return Message{}, violation("empty payload")
	}
	var in InboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return Message{}, violation("malformed payload: %v", err)
	}
	if in.Text == nil || strings.TrimSpace(*in.Text) == "" {
		return Message{}, violation("missing text")
	}
	if Sender(in.Sender) != SenderAssistant {
		return Message{}, violation("unexpected sender %q", in.Sender)
	}
	if in.Timestamp == "" {
		return Message{}, violation("missing timestamp")
	}
	sentAt, err := ParseTimestamp(in.Timestamp)
	if err != nil {
		return Message{}, violation("invalid timestamp %q", in.Timestamp)
	}

	options := make([]QuickOption, 0, len(in.Options))
	seen := map[string]struct{}{}
	for i, o := range in.Options {
		if strings.TrimSpace(o.Label) == "" {
			return Message{}, violation("option %d has no label", i)
		}
		if o.Link != "" && o.Action != "" {
			return Message{}, violation("option %d sets both link and action", i)
		}
		id := o.ID
		if id == "" {
			id = fmt.Sprintf("%d", i)
		}
		if _, dup := seen[id]; dup {
			return Message{}, violation("duplicate option id %q", id)
		}
		seen[id] = struct{}{}
		options = append(options, QuickOption{ID: id, Label: o.Label, Link: o.Link, Action: o.Action})
	}
	if len(options) == 0 {
		options = nil
	}

	msg := NewAssistantMessage(*in.Text, sentAt, options, in.Link)
	msg.RemoteID = remoteID(in.ID)
	return msg, nil
}

func remoteID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// FormatTimestamp renders t as an ISO-8601 timestamp in UTC. Sub-second
// precision is kept so the wire value never sorts before the local append.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
