package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/chatsurface/pkg/chat"
)

type WebSocketOptions struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// WebSocketChannel speaks the chat envelope protocol over one websocket: every
// text frame is a chat.Envelope.
type WebSocketChannel struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	writeTimeout time.Duration

	mu       sync.Mutex
	handlers handlerSet
	conn     *websocket.Conn
	cancel   context.CancelFunc
	dialing  bool
	// gen is bumped by every Connect and Close; a connection goroutine only
	// dispatches while its generation is current.
	gen uint64

	writeMu sync.Mutex
	log     zerolog.Logger
}

var _ Channel = &WebSocketChannel{}

func NewWebSocketChannel(opts WebSocketOptions) (*WebSocketChannel, error) {
	if opts.URL == "" {
		return nil, errors.New("websocket channel: empty url")
	}
	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WebSocketChannel{
		url:          opts.URL,
		header:       opts.Header,
		dialer:       &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: handshake},
		writeTimeout: writeTimeout,
		handlers:     handlerSet{},
		log:          log.With().Str("component", "transport").Str("url", opts.URL).Logger(),
	}, nil
}

func (c *WebSocketChannel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.add(event, h)
}

func (c *WebSocketChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect starts dialing in the background. It is a no-op while a connection
// is up or a dial is in flight.
func (c *WebSocketChannel) Connect(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.conn != nil || c.dialing {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	dialCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.dialing = true
	c.mu.Unlock()

	go c.run(dialCtx, gen)
}

func (c *WebSocketChannel) run(ctx context.Context, gen uint64) {
	c.log.Debug().Msg("dialing")
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)

	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.dialing = false
	}
	if err == nil && current {
		c.conn = conn
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Msg("connect failed")
		if current {
			c.dispatch(gen, EventConnectError, reasonPayload(err.Error()))
		}
		return
	}
	if !current {
		// closed while dialing
		_ = conn.Close()
		return
	}

	c.log.Info().Msg("connected")
	c.dispatch(gen, EventConnect, nil)

	reason := "transport close"
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			reason = err.Error()
			c.log.Debug().Err(err).Msg("read loop end")
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var env chat.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed frame")
			continue
		}
		c.dispatch(gen, env.Event, env.Data)
	}

	c.mu.Lock()
	current = c.gen == gen
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()

	if current {
		c.log.Info().Str("reason", reason).Msg("disconnected")
		c.dispatch(gen, EventDisconnect, reasonPayload(reason))
	}
}

// dispatch invokes the handlers of event unless the connection generation is stale.
func (c *WebSocketChannel) dispatch(gen uint64, event string, data json.RawMessage) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	hs := c.handlers.snapshot(event)
	c.mu.Unlock()
	if len(hs) == 0 {
		c.log.Debug().Str("event", event).Msg("no handler for event")
	}
	for _, h := range hs {
		h(data)
	}
}

// Emit writes one event frame. It fails with ErrNotConnected when no connection is up.
func (c *WebSocketChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(chat.Envelope{Event: event, Data: data})
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.Wrapf(err, "write %s", event)
	}
	return nil
}

// Close tears the connection down whatever its state, including mid-dial.
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	c.gen++
	c.dialing = false
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}
