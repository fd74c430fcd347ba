// Package peer implements a minimal remote assistant that speaks the chat wire
// contract. It answers every send-message with a receive-message and exists for
// local runs and tests; it holds no conversation logic.
package peer

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatsurface/pkg/chat"
)

// ReplyFunc builds the answer to one user message.
type ReplyFunc func(sessionID string, text string) chat.InboundMessage

// EchoReply repeats the text back.
func EchoReply(_ string, text string) chat.InboundMessage {
	body := "You said: " + text
	return chat.InboundMessage{
		Text:      &body,
		Sender:    string(chat.SenderAssistant),
		Timestamp: chat.FormatTimestamp(time.Now()),
	}
}

// EchoHandler upgrades requests to websockets and answers send-message events.
type EchoHandler struct {
	Reply    ReplyFunc
	upgrader websocket.Upgrader
	nextID   atomic.Int64

	mu     sync.Mutex
	joined []string
}

func NewEchoHandler(reply ReplyFunc) *EchoHandler {
	if reply == nil {
		reply = EchoReply
	}
	return &EchoHandler{
		Reply:    reply,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Joined lists the session ids announced with join, in order.
func (h *EchoHandler) Joined() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.joined...)
}

func (h *EchoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "peer").Msg("ws upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	wsLog := log.With().Str("component", "peer").Str("remote", conn.RemoteAddr().String()).Logger()
	sessionID := ""
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			wsLog.Debug().Err(err).Msg("ws read loop end")
			return
		}
		var env chat.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			wsLog.Warn().Err(err).Msg("malformed frame")
			continue
		}
		switch env.Event {
		case chat.EventJoin:
			if err := json.Unmarshal(env.Data, &sessionID); err != nil {
				wsLog.Warn().Err(err).Msg("malformed join")
				continue
			}
			h.mu.Lock()
			h.joined = append(h.joined, sessionID)
			h.mu.Unlock()
			wsLog.Info().Str("session_id", sessionID).Msg("session joined")
		case chat.EventSendMessage:
			var p chat.SendMessagePayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				wsLog.Warn().Err(err).Msg("malformed send-message")
				continue
			}
			reply := h.Reply(p.SessionID, p.Message)
			if len(reply.ID) == 0 {
				id, _ := json.Marshal(h.nextID.Add(1))
				reply.ID = id
			}
			payload, err := json.Marshal(reply)
			if err != nil {
				wsLog.Warn().Err(err).Msg("marshal reply")
				continue
			}
			frame, err := json.Marshal(chat.Envelope{Event: chat.EventReceiveMessage, Data: payload})
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				wsLog.Debug().Err(err).Msg("ws write failed")
				return
			}
		default:
			wsLog.Debug().Str("event", env.Event).Msg("ignoring event")
		}
	}
}
