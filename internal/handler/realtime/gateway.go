package realtime

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/scatty/backend/internal/metrics"
	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
	"github.com/zhouzirui/scatty/backend/internal/service/conversation"
)

// Dispatcher receives decoded client events; the orchestrator implements it.
type Dispatcher interface {
	Dispatch(ev protocol.ClientEvent, out conversation.Emitter)
}

// Gateway upgrades HTTP requests to websockets and routes events between connections and
// the dispatcher. It holds no conversation logic.
type Gateway struct {
	hub        *Hub
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	now        func() time.Time
	logger     zerolog.Logger
}

// NewGateway 创建实时网关
func NewGateway(hub *Hub, dispatcher Dispatcher, allowOrigin func(origin string) bool, logger zerolog.Logger) *Gateway {
	return &Gateway{
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin == nil || allowOrigin(origin)
			},
		},
		now:    time.Now,
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (g *Gateway) RegisterRoutes(r chi.Router) {
	r.Get("/ws", g.ServeHTTP)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	logger := g.logger.With().Str("conn", uuid.NewString()).Logger()
	c := newClient(conn, g.now, logger)

	metrics.Connections.Inc()
	logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	go c.writePump()
	g.readPump(c)

	if c.sessionID != "" {
		g.hub.unbind(c.sessionID, c)
	}
	c.close()
	metrics.Connections.Dec()
	logger.Info().Str("session", c.sessionID).Msg("client disconnected")
}

func (g *Gateway) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case <-c.done:
			return
		default:
		}

		g.route(c, raw)
	}
}

func (g *Gateway) route(c *client, raw []byte) {
	ev, err := protocol.DecodeClient(raw)
	if err != nil {
		code := protocol.CodeInvalidPayload
		if errors.Is(err, protocol.ErrUnknownEvent) {
			code = protocol.CodeUnknownEvent
		}
		c.logger.Warn().Err(err).Str("code", code).Msg("rejecting frame")
		c.send(protocol.Error{Message: err.Error(), Code: code, SessionID: c.sessionID})
		return
	}

	if t, ok := ev.(protocol.Transcript); ok && !t.IsFinal {
		return
	}

	sessionID := ev.Session()
	switch ev.(type) {
	case protocol.SessionStart:
		if c.sessionID != sessionID {
			if c.sessionID != "" {
				g.hub.unbind(c.sessionID, c)
			}
			c.sessionID = sessionID
			g.hub.bind(sessionID, c)
			c.logger.Debug().Str("session", sessionID).Msg("connection bound")
		}
	default:
		if c.sessionID == "" {
			c.send(protocol.Error{Message: "send session:start first", Code: protocol.CodeSessionRequired, SessionID: sessionID})
			return
		}
		if c.sessionID != sessionID {
			c.send(protocol.Error{Message: "event does not belong to this connection's session", Code: protocol.CodeSessionMismatch, SessionID: sessionID})
			return
		}
	}

	g.dispatcher.Dispatch(ev, conversation.EmitterFunc(g.hub.Deliver))

	if _, ok := ev.(protocol.SessionEnd); ok {
		g.hub.unbind(c.sessionID, c)
		c.sessionID = ""
	}
}
