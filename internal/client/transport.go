package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed for the opening handshake.
	handshakeTimeout = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Time allowed to read the next message or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Transport is one open connection. ReadMessage is called from a single
// goroutine; WriteMessage and Close may be called concurrently with it.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transports. A failed Dial is reported to the Manager as a
// close event.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials gorilla WebSocket connections.
type WebsocketDialer struct {
	dialer     *websocket.Dialer
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewWebsocketDialer creates a dialer with a bounded handshake.
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// Dial completes the opening handshake with url.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return newWSTransport(conn, d.pongWait, d.pingPeriod), nil
}

// wsTransport serializes writers; gorilla allows one concurrent writer.
// A peer that stops answering pings fails ReadMessage within pongWait.
type wsTransport struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	pongWait time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn, pongWait, pingPeriod time.Duration) *wsTransport {
	t := &wsTransport{
		conn:     conn,
		pongWait: pongWait,
		done:     make(chan struct{}),
	}
	t.extendDeadline()
	conn.SetPongHandler(func(string) error {
		t.extendDeadline()
		return nil
	})
	go t.keepalive(pingPeriod)
	return t
}

func (t *wsTransport) extendDeadline() {
	t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
}

// keepalive pings the peer until the transport is closed.
func (t *wsTransport) keepalive(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	t.extendDeadline()
	return data, nil
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	// Best effort close frame; the peer may already be gone.
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return t.conn.Close()
}

// Timer is a pending retry. Stop reports whether the call prevented it from
// firing.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
