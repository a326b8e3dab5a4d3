// Package widget drives the embedded provider widget through a websocket
// bridge. The UI shell's widget host connects once; the daemon sends it
// lifecycle and moderation commands and receives results plus the
// provider's participant events, each carrying a full snapshot.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/core"
)

var (
	ErrHostNotConnected = errors.New("widget host not connected")
	ErrBackpressure     = errors.New("backpressure")
)

const commandTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hostConn is the transport endpoint to the widget host.
type hostConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *hostConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *hostConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Bridge implements core.WidgetProvider over the host connection. At most
// one host is bound at a time; a reconnecting host replaces the previous
// connection.
type Bridge struct {
	mu       sync.Mutex
	conn     *hostConn
	pending  map[string]chan string
	instance *Instance
}

func NewBridge() *Bridge {
	return &Bridge{pending: make(map[string]chan string)}
}

var _ core.WidgetProvider = (*Bridge)(nil)

// CreateInstance asks the host to create the embedded widget bound to a
// container. Fails fast when no host is connected.
func (b *Bridge) CreateInstance(container core.ContainerID, opts core.InstanceOptions) (core.WidgetInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := b.request(ctx, command{
		Type:        cmdCreateInstance,
		Container:   string(container),
		URL:         string(opts.URL),
		IFrameStyle: opts.IFrameStyle,
	})
	if err != nil {
		return nil, err
	}

	inst := newInstance(b)
	b.mu.Lock()
	b.instance = inst
	b.mu.Unlock()
	log.Info().Str("module", "adapters.widget").Str("container", string(container)).Msg("widget instance created on host")
	return inst, nil
}

// HandleHost upgrades the widget host's connection and runs its pumps.
func (b *Bridge) HandleHost(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.widget").Msg("ws upgrade")
		return
	}

	conn := &hostConn{conn: ws, send: make(chan []byte, 32)}

	b.mu.Lock()
	if prev := b.conn; prev != nil {
		prev.Close()
	}
	b.conn = conn
	b.mu.Unlock()
	log.Info().Str("module", "adapters.widget").Msg("widget host connected")

	ctx, cancel := context.WithCancel(ctx)
	go b.writePump(ctx, conn)
	b.readPump(ctx, conn)
	cancel()
}

func (b *Bridge) writePump(ctx context.Context, c *hostConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.widget").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.widget").Msg("writePump write error")
				return
			}
		}
	}
}

func (b *Bridge) readPump(ctx context.Context, c *hostConn) {
	defer func() {
		c.Close()
		b.detach(c)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Warn().Err(err).Str("module", "adapters.widget").Msg("widget host disconnected")
				return
			}
			b.handleMessage(data)
		}
	}
}

func (b *Bridge) handleMessage(data []byte) {
	var msg hostMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "adapters.widget").Msg("bad json from widget host")
		return
	}

	switch {
	case msg.Type == msgResult:
		b.settle(msg.ID, msg.Error)
	case isParticipantEvent(msg.Type):
		b.dispatch(core.ParticipantEvent{Kind: msg.Type, Participants: toSnapshot(msg.Participants)})
	case msg.Type == core.EventError:
		log.Warn().Str("module", "adapters.widget").Str("error", msg.Error).Msg("provider error event")
		b.dispatch(core.ParticipantEvent{Kind: core.EventError})
	default:
		log.Warn().Str("module", "adapters.widget").Str("type", msg.Type).Msg("unknown host message")
	}
}

func (b *Bridge) dispatch(ev core.ParticipantEvent) {
	b.mu.Lock()
	inst := b.instance
	b.mu.Unlock()
	if inst != nil {
		inst.deliver(ev)
	}
}

// request sends one command and blocks until the host reports its result
// or ctx expires.
func (b *Bridge) request(ctx context.Context, cmd command) error {
	cmd.ID = uuid.NewString()
	ch := make(chan string, 1)

	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return ErrHostNotConnected
	}
	b.pending[cmd.ID] = ch
	b.mu.Unlock()

	if err := b.sendTo(conn, cmd); err != nil {
		b.forget(cmd.ID)
		return err
	}

	select {
	case msg := <-ch:
		if msg != "" {
			return errors.New(msg)
		}
		return nil
	case <-ctx.Done():
		b.forget(cmd.ID)
		return ctx.Err()
	}
}

// post sends a command without waiting for a result.
func (b *Bridge) post(cmd command) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrHostNotConnected
	}
	return b.sendTo(conn, cmd)
}

func (b *Bridge) sendTo(conn *hostConn, cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.TrySend(data)
}

func (b *Bridge) settle(id, errText string) {
	b.mu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !ok {
		log.Warn().Str("module", "adapters.widget").Str("id", id).Msg("result for unknown command")
		return
	}
	ch <- errText
}

func (b *Bridge) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// detach fails all in-flight commands when the host connection drops and
// signals a forced disconnect to the instance.
func (b *Bridge) detach(c *hostConn) {
	b.mu.Lock()
	if b.conn != c {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	pending := b.pending
	b.pending = make(map[string]chan string)
	inst := b.instance
	b.mu.Unlock()

	for _, ch := range pending {
		ch <- "widget host disconnected"
	}
	if inst != nil {
		inst.deliver(core.ParticipantEvent{Kind: core.EventError})
	}
}

func (b *Bridge) dropInstance(inst *Instance) {
	b.mu.Lock()
	if b.instance == inst {
		b.instance = nil
	}
	b.mu.Unlock()
}
