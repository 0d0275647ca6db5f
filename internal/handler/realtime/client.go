package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
	sendBuffer     = 32
)

// client is one websocket connection. The read loop owns sessionID; writes go through the
// outbound channel and are serialised by writePump.
type client struct {
	conn      *websocket.Conn
	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
	logger    zerolog.Logger

	sessionID string
}

func newClient(conn *websocket.Conn, now func() time.Time, logger zerolog.Logger) *client {
	return &client{
		conn:     conn,
		outbound: make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		now:      now,
		logger:   logger,
	}
}

// send queues ev without blocking. A client that cannot keep up is disconnected.
func (c *client) send(ev protocol.ServerEvent) {
	frame, err := protocol.EncodeServer(ev, c.now())
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(ev.Name())).Msg("failed to encode server event")
		return
	}

	select {
	case <-c.done:
	case c.outbound <- frame:
	default:
		c.logger.Warn().Str("event", string(ev.Name())).Msg("send buffer full, closing connection")
		c.close()
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
