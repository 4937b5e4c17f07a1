// Copyright 2024-2026 Aiku AI

// Package events maintains the persistent event-stream connection: it
// authenticates, decodes typed frames, keeps the link alive with heartbeats
// and reconnects with backoff after failures.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is one decoded server frame.
type Event struct {
	Type string
	Raw  gjson.Result
}

type Options struct {
	URL           string
	AutoReconnect bool
	// RetryDelay maps the number of consecutive failures to the wait before
	// the next attempt. Defaults to DefaultRetryDelay.
	RetryDelay func(failures int) time.Duration
	// HeartbeatInterval is the ping period. Zero disables heartbeats.
	HeartbeatInterval time.Duration
	// PongTimeout is how long a ping may go unanswered before the connection
	// is dropped. Defaults to HeartbeatInterval.
	PongTimeout time.Duration
	Dialer      Dialer
	Logger      *zerolog.Logger
	Metrics     *Metrics
}

// Manager owns the event connection of one client.
type Manager struct {
	opts  Options
	log   zerolog.Logger
	queue *deliveryQueue

	mu         sync.Mutex
	state      State
	conn       Transport
	cancelDial context.CancelFunc
	generation uint64
	failures   int
	timer      *time.Timer
	url        string
	token      string
	authFailed bool
	pingSent   time.Time
	closed     bool
}

// NewManager creates a disconnected manager delivering to handler.
func NewManager(opts Options, handler Handler) *Manager {
	if opts.RetryDelay == nil {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer(10 * time.Second)
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = opts.HeartbeatInterval
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	opts.Metrics.setState(StateDisconnected)
	return &Manager{
		opts:  opts,
		log:   log.With().Str("component", "events").Logger(),
		queue: newDeliveryQueue(handler),
		url:   opts.URL,
	}
}

// SetURL changes the event server URL used by later connection attempts.
func (m *Manager) SetURL(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Failures returns the number of consecutive failed connection attempts.
func (m *Manager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Connect opens a new connection authenticated with token, replacing any
// open connection and any pending reconnect.
func (m *Manager) Connect(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.connectLocked(token)
	return nil
}

// Disconnect closes the connection and cancels any pending reconnect. It is
// safe to call in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.setStateLocked(StateDisconnected)
}

// Close disconnects and stops delivery once the already queued items are
// handled. The manager cannot be reused.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.teardownLocked()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	m.queue.close()
}

// Send writes a frame on the open connection.
func (m *Manager) Send(frame []byte) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()
	if conn == nil || !connected {
		return ErrNotConnected
	}
	if err := conn.WriteMessage(frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

func (m *Manager) connectLocked(token string) {
	m.teardownLocked()
	m.token = token
	m.authFailed = false
	generation := m.generation

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.setStateLocked(StateConnecting)
	go m.run(ctx, generation, m.url, token)
}

// teardownLocked invalidates the current connection attempt. Goroutines of
// older generations stop acting on the manager once they notice.
func (m *Manager) teardownLocked() {
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.pingSent = time.Time{}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.log.Debug().Stringer("from", m.state).Stringer("to", s).Msg("Connection state changed")
	m.state = s
	m.opts.Metrics.setState(s)
	m.queue.pushState(s)
}

func (m *Manager) run(ctx context.Context, generation uint64, url, token string) {
	conn, err := m.opts.Dialer(ctx, url)
	if err != nil {
		m.fail(generation, err)
		return
	}

	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	auth, _ := sjson.SetBytes([]byte(`{"type":"Authenticate"}`), "token", token)
	if err := conn.WriteMessage(auth); err != nil {
		m.fail(generation, fmt.Errorf("failed to send authentication: %w", err))
		return
	}

	stopHeartbeat := make(chan struct{})
	defer close(stopHeartbeat)
	if m.opts.HeartbeatInterval > 0 {
		go m.heartbeat(generation, conn, stopHeartbeat)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.fail(generation, fmt.Errorf("event connection lost: %w", err))
			return
		}
		m.handleFrame(generation, data)
	}
}

func (m *Manager) handleFrame(generation uint64, data []byte) {
	if !gjson.ValidBytes(data) {
		m.dropFrame(generation, newDecodeError(data, "invalid JSON"))
		return
	}
	raw := gjson.ParseBytes(data)
	typ := raw.Get("type")
	if !raw.IsObject() || typ.Type != gjson.String || typ.Str == "" {
		m.dropFrame(generation, newDecodeError(data, "missing event type"))
		return
	}
	m.opts.Metrics.frame(typ.Str)
	evt := Event{Type: typ.Str, Raw: raw}

	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return
	}

	switch evt.Type {
	case "Pong":
		m.pingSent = time.Time{}
		return
	case "Authenticated":
		m.queue.pushEvent(evt)
		m.failures = 0
		m.setStateLocked(StateConnected)
		return
	case "Error":
		if code := raw.Get("error").String(); IsAuthFailure(code) {
			m.authFailed = true
			m.queue.pushError(&AuthError{Code: code})
		}
	}
	m.queue.pushEvent(evt)
}

func (m *Manager) dropFrame(generation uint64, err *DecodeError) {
	m.opts.Metrics.decodeError()
	m.log.Warn().Err(err).Msg("Dropping undecodable frame")
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation == m.generation {
		m.queue.pushError(err)
	}
}

// fail handles the loss of the connection of the given generation.
func (m *Manager) fail(generation uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return
	}
	m.teardownLocked()
	m.log.Warn().Err(err).Int("failures", m.failures).Msg("Event connection failed")
	m.setStateLocked(StateDisconnected)
	m.queue.pushError(err)

	if !m.opts.AutoReconnect || m.authFailed || m.closed {
		return
	}
	delay := m.opts.RetryDelay(m.failures)
	m.failures++
	scheduled := m.generation
	m.opts.Metrics.reconnect()
	m.log.Debug().Dur("delay", delay).Msg("Scheduling reconnect")
	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if scheduled != m.generation || m.closed {
			return
		}
		m.timer = nil
		m.connectLocked(m.token)
	})
}

func (m *Manager) heartbeat(generation uint64, conn Transport, stop <-chan struct{}) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()
	// Armed when a ping is sent. A pong clears pingSent before it fires.
	deadline := time.NewTimer(m.opts.PongTimeout)
	deadline.Stop()
	defer deadline.Stop()
	for {
		select {
		case <-stop:
			return
		case <-deadline.C:
			m.mu.Lock()
			current := generation == m.generation
			unanswered := !m.pingSent.IsZero()
			m.mu.Unlock()
			if !current {
				return
			}
			if unanswered {
				m.fail(generation, ErrPongTimeout)
				return
			}
		case now := <-ticker.C:
			m.mu.Lock()
			if generation != m.generation {
				m.mu.Unlock()
				return
			}
			waiting := !m.pingSent.IsZero()
			if !waiting {
				m.pingSent = now
			}
			m.mu.Unlock()

			if waiting {
				continue
			}
			ping, _ := sjson.SetBytes([]byte(`{"type":"Ping"}`), "data", now.UnixMilli())
			if err := conn.WriteMessage(ping); err != nil {
				m.fail(generation, fmt.Errorf("failed to send ping: %w", err))
				return
			}
			deadline.Reset(m.opts.PongTimeout)
		}
	}
}
