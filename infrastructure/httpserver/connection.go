package httpserver

import (
	"chat-relay/errors"
	"chat-relay/runtime"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Connection is one WebSocket client. Frames sent to it are queued and written by
// its write pump, so Send never blocks: a full queue closes the connection.
type Connection struct {
	id        string
	log       *slog.Logger
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(log *slog.Logger, ws *websocket.Conn, bufferSize int) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:   id,
		log:  log.With("connection_id", id),
		ws:   ws,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Send(_ context.Context, frame []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
		c.log.Warn("Send buffer full, closing connection", "buffer_size", cap(c.send))
		c.Close()
		return errors.ErrSlowConsumer
	}
}

// Close asks the write pump to send a close frame and release the socket.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump hands every inbound frame to the relay, one at a time, until the
// socket fails. It then disconnects the session.
func (c *Connection) readPump(ctx context.Context, relay *runtime.Relay, session *runtime.Session, maxMessageSize int64) {
	defer func() {
		relay.Disconnect(ctx, session)
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("Failed to set read deadline", "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		// Failures are already reported to the client as error frames.
		_ = relay.Handle(ctx, session, frame)
	}
}

func (c *Connection) logReadError(err error) {
	switch {
	case stderrors.Is(err, websocket.ErrReadLimit):
		c.log.Info("Frame exceeded maximum size, closing connection")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Debug("Client disconnected")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.log.Warn("Unexpected WebSocket error", "error", err)
	default:
		c.log.Debug("Connection closed", "error", err)
	}
}

// writePump is the only writer of the socket. It owns closing it.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Failed to write frame", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Failed to write ping", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

// connections tracks live clients so they can be closed on shutdown.
// pumps counts read pumps still running, a read pump may be inside Relay.Handle.
type connections struct {
	mu    sync.Mutex
	live  map[string]*Connection
	pumps sync.WaitGroup
}

func newConnections() *connections {
	return &connections{live: make(map[string]*Connection)}
}

func (cs *connections) add(c *Connection) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.live[c.id] = c
	cs.pumps.Add(1)
}

func (cs *connections) remove(c *Connection) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.live[c.id]; !ok {
		return
	}
	delete(cs.live, c.id)
	cs.pumps.Done()
}

func (cs *connections) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.live)
}

func (cs *connections) closeAll() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.live {
		c.Close()
	}
}

// wait blocks until every read pump returned or ctx is done.
func (cs *connections) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		cs.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
