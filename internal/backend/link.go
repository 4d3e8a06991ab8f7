// Package backend pushes live-state events to the lighting backend over a
// websocket. Delivery is best effort: events are dropped, with a warning,
// while the peer is unreachable or the outbound queue is full.
package backend

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	"gopkg.in/tomb.v2"

	"github.com/Vasu1712/scenyx-stage/internal/dmx"
	"github.com/Vasu1712/scenyx-stage/internal/wire"
)

var logger = loggo.GetLogger("stage.backend")

const (
	// DefaultQueueSize bounds the events waiting for the socket.
	DefaultQueueSize = 64

	defaultMinDelay = 250 * time.Millisecond
	defaultMaxDelay = 30 * time.Second
	writeWait       = 5 * time.Second
)

// Config configures a Link.
type Config struct {
	// URL of the backend websocket. Empty disables the link.
	URL       string
	QueueSize int // Events buffered while the connection is busy

	// Reconnect backoff bounds.
	MinDelay time.Duration
	MaxDelay time.Duration

	Clock  clock.Clock
	Dialer *websocket.Dialer
}

func (c *Config) setDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.MinDelay <= 0 {
		c.MinDelay = defaultMinDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Link keeps a connection to the backend open and forwards events to it.
type Link struct {
	cfg   Config
	tomb  tomb.Tomb   // Owns the connection worker and its reader
	queue chan []byte // Encoded envelopes waiting for the connection

	connected atomic.Bool   // Set while a backend connection is up
	nextID    atomic.Uint64 // Envelope id of the last queued event
}

// NewLink starts a Link. With an empty URL the link runs no worker and
// discards every event.
func NewLink(cfg Config) *Link {
	cfg.setDefaults()
	l := &Link{
		cfg:   cfg,
		queue: make(chan []byte, cfg.QueueSize),
	}
	if cfg.URL == "" {
		logger.Infof("no backend configured, live events are discarded")
		l.tomb.Go(func() error {
			<-l.tomb.Dying()
			return nil
		})
		return l
	}
	l.tomb.Go(l.loop)
	return l
}

// SceneUpdate queues the contents of the universe rendered for sceneID.
func (l *Link) SceneUpdate(sceneID int64, universe [dmx.UniverseSize]byte) {
	body := &wire.SceneUpdate{SceneID: sceneID, Universe: universe[:]}
	l.send(wire.MethodSceneUpdate, body.Marshal())
}

// SetCurrentScene queues a current-scene switch.
func (l *Link) SetCurrentScene(sceneID int64) {
	body := &wire.SetCurrentSceneRequest{ID: sceneID}
	l.send(wire.MethodSetCurrentScene, body.Marshal())
}

// Connected reports whether a backend connection is up.
func (l *Link) Connected() bool {
	return l.connected.Load()
}

func (l *Link) send(method string, body []byte) {
	if l.cfg.URL == "" {
		logger.Debugf("no backend, discarding %s", method)
		return
	}
	if !l.connected.Load() {
		logger.Warningf("backend unavailable, dropping %s", method)
		return
	}
	msg := &wire.RpcMessage{
		Type:   wire.RpcTypeRequest,
		ID:     l.nextID.Add(1),
		Method: method,
		Body:   body,
	}
	select {
	case l.queue <- msg.Marshal():
	default:
		logger.Warningf("backend queue full, dropping %s %d", method, msg.ID)
	}
}

// Kill asks the link to stop.
func (l *Link) Kill() {
	l.tomb.Kill(nil)
}

// Wait waits for the link to stop.
func (l *Link) Wait() error {
	return l.tomb.Wait()
}

// Close stops the link and waits for it.
func (l *Link) Close() error {
	l.Kill()
	return l.Wait()
}

func (l *Link) loop() error {
	for {
		conn, err := l.dial()
		if retry.IsRetryStopped(err) {
			return nil
		}
		if err != nil {
			return errors.Trace(err)
		}
		err = l.serve(conn)
		select {
		case <-l.tomb.Dying():
			return nil
		default:
		}
		logger.Warningf("backend connection lost: %v", err)
	}
}

func (l *Link) dial() (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			c, _, err := l.cfg.Dialer.DialContext(l.tomb.Context(nil), l.cfg.URL, nil)
			if err != nil {
				return errors.Trace(err)
			}
			conn = c
			return nil
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("dialing backend %s (attempt %d): %v", l.cfg.URL, attempt, err)
		},
		Attempts:    retry.UnlimitedAttempts,
		Delay:       l.cfg.MinDelay,
		MaxDelay:    l.cfg.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       l.cfg.Clock,
		Stop:        l.tomb.Dying(),
	})
	return conn, err
}

// serve forwards queued frames until the connection fails or the link
// dies.
func (l *Link) serve(conn *websocket.Conn) error {
	id := uuid.NewString()
	logger.Infof("backend connection %s up to %s", id, l.cfg.URL)
	l.connected.Store(true)

	done := make(chan struct{})
	var readErr error
	go func() {
		defer close(done)
		readErr = l.readLoop(id, conn)
	}()
	defer func() {
		l.connected.Store(false)
		_ = conn.Close()
		<-done
		logger.Infof("backend connection %s down", id)
	}()

	for {
		select {
		case <-l.tomb.Dying():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		case <-done:
			return errors.Annotatef(readErr, "connection %s", id)
		case frame := <-l.queue:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return errors.Annotatef(err, "connection %s", id)
			}
		}
	}
}

// readLoop drains replies from the backend and logs failures it reports.
func (l *Link) readLoop(id string, conn *websocket.Conn) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return errors.Trace(err)
		}
		var msg wire.RpcMessage
		if err := msg.Unmarshal(frame); err != nil {
			logger.Warningf("connection %s: undecodable frame: %v", id, err)
			continue
		}
		if msg.Type == wire.RpcTypeResponseError {
			var e wire.Error
			if err := e.Unmarshal(msg.Body); err != nil {
				logger.Warningf("connection %s: %s %d failed", id, msg.Method, msg.ID)
				continue
			}
			logger.Warningf("connection %s: %s %d failed: %s", id, msg.Method, msg.ID, e.Message)
			continue
		}
		logger.Tracef("connection %s: %s %d %s", id, msg.Method, msg.ID, msg.Type)
	}
}
