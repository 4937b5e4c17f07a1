// Copyright 2024-2026 Aiku AI

package events

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is an open, message-framed connection to the event server.
// WriteMessage may be called concurrently with ReadMessage.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a transport to url. It must honor ctx cancellation.
type Dialer func(ctx context.Context, url string) (Transport, error)

// WebSocketDialer returns a Dialer using gorilla/websocket. Writes that take
// longer than writeTimeout fail the connection; zero disables the deadline.
func WebSocketDialer(writeTimeout time.Duration) Dialer {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 30 * time.Second,
	}
	return func(ctx context.Context, url string) (Transport, error) {
		ws, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", url, err)
		}
		return &wsTransport{ws: ws, writeTimeout: writeTimeout}, nil
	}
}

type wsTransport struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeLock sync.Mutex
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := t.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return data, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeLock.Lock()
	defer t.writeLock.Unlock()
	if t.writeTimeout > 0 {
		_ = t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.ws.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}
