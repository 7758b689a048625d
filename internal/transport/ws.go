// Package transport carries dictation sessions over the wire. The streaming
// path is a WebSocket connection interleaving JSON control messages and
// binary audio frames; the non-streaming path is a single HTTP submission.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/protocol"
)

// Transport is an established session connection. SendControl and SendFrame
// may be called from different goroutines; the implementation serializes
// writes. Receive's channel closes when the connection dies, after which
// Err reports the cause.
type Transport interface {
	SendControl(msg protocol.ClientMessage) error
	SendFrame(frame []byte) error
	Receive() <-chan protocol.ServerMessage
	Err() error
	Close() error
}

// Dialer opens session connections.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

const (
	writeTimeout     = 10 * time.Second
	receiveQueueSize = 32
)

// WSDialer dials the gateway's streaming endpoint.
type WSDialer struct {
	// URL is the full WebSocket endpoint, e.g. ws://host:8080/v1/sessions/stream.
	URL string

	logger zerolog.Logger
}

// NewWSDialer creates a dialer for the given streaming endpoint URL.
func NewWSDialer(url string) *WSDialer {
	return &WSDialer{
		URL:    url,
		logger: observability.WithComponent("transport"),
	}
}

// Dial opens a WebSocket connection and starts the receive pump.
func (d *WSDialer) Dial(ctx context.Context) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", d.URL, err)
	}

	t := &wsTransport{
		conn:    conn,
		recv:    make(chan protocol.ServerMessage, receiveQueueSize),
		logger:  d.logger,
		closeCh: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	recv    chan protocol.ServerMessage
	logger  zerolog.Logger
	closeCh chan struct{}

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (t *wsTransport) SendControl(msg protocol.ClientMessage) error {
	data, err := protocol.EncodeClient(msg)
	if err != nil {
		return err
	}
	return t.write(websocket.TextMessage, data)
}

func (t *wsTransport) SendFrame(frame []byte) error {
	return t.write(websocket.BinaryMessage, frame)
}

func (t *wsTransport) write(messageType int, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.Err(); err != nil {
		return fmt.Errorf("transport closed: %w", err)
	}

	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := t.conn.WriteMessage(messageType, data); err != nil {
		t.fail(err)
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (t *wsTransport) Receive() <-chan protocol.ServerMessage {
	return t.recv
}

// Err returns the first error that broke the connection, or nil while the
// connection is healthy or after a clean Close.
func (t *wsTransport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *wsTransport) fail(err error) {
	t.errMu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.errMu.Unlock()
}

// Close tears down the connection. The receive channel closes once the
// read loop observes the closed socket.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		t.writeMu.Lock()
		t.conn.SetWriteDeadline(time.Now().Add(time.Second))
		t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) readLoop() {
	defer close(t.recv)

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.closeCh:
				// Clean local close, not a transport failure.
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				t.logger.Debug().Err(err).Msg("Connection read failed")
				t.fail(err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.DecodeServer(data)
		if err != nil {
			t.logger.Warn().Err(err).Msg("Dropping malformed server message")
			continue
		}

		select {
		case t.recv <- msg:
		case <-t.closeCh:
			return
		}
	}
}
