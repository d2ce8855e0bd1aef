package voice

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 10 * time.Second

var ErrRelayClosed = errors.New("voice: relay connection closed")

type command struct {
	Type       string      `json:"type"`
	Descriptor *Descriptor `json:"descriptor,omitempty"`
	Path       string      `json:"path,omitempty"`
	Payload    any         `json:"payload,omitempty"`
}

// RelayAgent drives a voice SDK running in the browser. Commands are written
// to the socket; the browser relays agent events back on the same socket.
type RelayAgent struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool

	WriteTimeout time.Duration
}

func NewRelayAgent(conn *websocket.Conn) *RelayAgent {
	return &RelayAgent{conn: conn, WriteTimeout: defaultWriteTimeout}
}

func (a *RelayAgent) Start(ctx context.Context, d Descriptor) error {
	return a.send(ctx, command{Type: "start", Descriptor: &d})
}

func (a *RelayAgent) Stop(ctx context.Context) error {
	return a.send(ctx, command{Type: "stop"})
}

// Navigate tells the browser where to go once the call has been handled.
func (a *RelayAgent) Navigate(path string) {
	_ = a.send(context.Background(), command{Type: "navigate", Path: path})
}

// Notify pushes a status payload to the browser.
func (a *RelayAgent) Notify(typ string, payload any) error {
	return a.send(context.Background(), command{Type: typ, Payload: payload})
}

// Close marks the relay closed; later commands fail with ErrRelayClosed.
func (a *RelayAgent) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

func (a *RelayAgent) send(ctx context.Context, cmd command) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return a.write(ctx, b)
}

func (a *RelayAgent) write(ctx context.Context, b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrRelayClosed
	}

	deadline := time.Now().Add(a.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = a.conn.SetWriteDeadline(deadline)
	return a.conn.WriteMessage(websocket.TextMessage, b)
}
