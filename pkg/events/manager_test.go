// Copyright 2024-2026 Aiku AI

package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tidwall/gjson"
)

const waitTimeout = 2 * time.Second

type fakeConn struct {
	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(frame string) {
	c.incoming <- []byte(frame)
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	err   error
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

func (d *fakeDialer) expectNoDial(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case <-d.conns:
		t.Fatal("unexpected dial")
	case <-time.After(wait):
	}
}

type recordingHandler struct {
	states chan State
	events chan Event
	errs   chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		states: make(chan State, 64),
		events: make(chan Event, 64),
		errs:   make(chan error, 64),
	}
}

func (h *recordingHandler) HandleState(s State) { h.states <- s }
func (h *recordingHandler) HandleEvent(e Event) { h.events <- e }
func (h *recordingHandler) HandleError(err error) {
	h.errs <- err
}

func (h *recordingHandler) waitState(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case s := <-h.states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func (h *recordingHandler) waitEvent(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (h *recordingHandler) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errs:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error")
		return nil
	}
}

func waitWritten(t *testing.T, c *fakeConn, n int) []string {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if w := c.Written(); len(w) >= n {
			return w
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d written frames", n)
	return nil
}

func newTestManager(t *testing.T, opts Options) (*Manager, *fakeDialer, *recordingHandler) {
	t.Helper()
	dialer := newFakeDialer()
	handler := newRecordingHandler()
	opts.Dialer = dialer.Dial
	m := NewManager(opts, handler)
	t.Cleanup(m.Close)
	return m, dialer, handler
}

func TestManagerConnectAuthenticates(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{URL: "ws://test"})

	if err := m.Connect("secret"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	handler.waitState(t, StateConnecting)
	conn := dialer.next(t)

	written := waitWritten(t, conn, 1)
	auth := gjson.Parse(written[0])
	if auth.Get("type").String() != "Authenticate" || auth.Get("token").String() != "secret" {
		t.Errorf("unexpected auth frame %s", written[0])
	}

	conn.send(`{"type":"Authenticated"}`)
	if evt := handler.waitEvent(t); evt.Type != "Authenticated" {
		t.Errorf("got event %q, want Authenticated", evt.Type)
	}
	handler.waitState(t, StateConnected)
	if m.State() != StateConnected {
		t.Errorf("State: got %v, want connected", m.State())
	}
}

func TestManagerReconnectsWithBackoff(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var asked []int
	m, dialer, handler := newTestManager(t, Options{
		URL:           "ws://test",
		AutoReconnect: true,
		RetryDelay: func(failures int) time.Duration {
			mu.Lock()
			asked = append(asked, failures)
			mu.Unlock()
			return time.Millisecond
		},
	})

	_ = m.Connect("tok")
	first := dialer.next(t)
	first.Close()
	handler.waitState(t, StateDisconnected)

	second := dialer.next(t)
	second.Close()
	handler.waitState(t, StateDisconnected)

	third := dialer.next(t)
	if m.Failures() != 2 {
		t.Errorf("Failures before auth: got %d, want 2", m.Failures())
	}
	third.send(`{"type":"Authenticated"}`)
	handler.waitState(t, StateConnected)
	if m.Failures() != 0 {
		t.Errorf("Failures after auth: got %d, want 0", m.Failures())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(asked) != 2 || asked[0] != 0 || asked[1] != 1 {
		t.Errorf("RetryDelay calls: got %v, want [0 1]", asked)
	}
}

func TestManagerDisconnectCancelsReconnect(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{
		URL:           "ws://test",
		AutoReconnect: true,
		RetryDelay:    func(int) time.Duration { return 50 * time.Millisecond },
	})

	_ = m.Connect("tok")
	dialer.next(t).Close()
	handler.waitState(t, StateDisconnected)

	m.Disconnect()
	m.Disconnect()
	dialer.expectNoDial(t, 150*time.Millisecond)
	if m.State() != StateDisconnected {
		t.Errorf("State: got %v, want disconnected", m.State())
	}
}

func TestManagerConnectReplacesPendingReconnect(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{
		URL:           "ws://test",
		AutoReconnect: true,
		RetryDelay:    func(int) time.Duration { return 100 * time.Millisecond },
	})

	_ = m.Connect("tok")
	dialer.next(t).Close()
	handler.waitState(t, StateDisconnected)

	_ = m.Connect("tok")
	dialer.next(t)
	dialer.expectNoDial(t, 200*time.Millisecond)
}

func TestManagerDialErrorSchedulesRetry(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{
		URL:           "ws://test",
		AutoReconnect: true,
		RetryDelay:    func(int) time.Duration { return time.Millisecond },
	})
	dialErr := errors.New("refused")
	dialer.mu.Lock()
	dialer.err = dialErr
	dialer.mu.Unlock()

	_ = m.Connect("tok")
	if err := handler.waitError(t); !errors.Is(err, dialErr) {
		t.Errorf("got %v, want %v", err, dialErr)
	}

	dialer.mu.Lock()
	dialer.err = nil
	dialer.mu.Unlock()
	dialer.next(t)
}

func TestManagerAuthErrorSuppressesReconnect(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{
		URL:           "ws://test",
		AutoReconnect: true,
		RetryDelay:    func(int) time.Duration { return time.Millisecond },
	})

	_ = m.Connect("bad")
	conn := dialer.next(t)
	conn.send(`{"type":"Error","error":"InvalidSession"}`)

	var authErr *AuthError
	if err := handler.waitError(t); !errors.As(err, &authErr) || authErr.Code != "InvalidSession" {
		t.Fatalf("got %v, want AuthError", err)
	}
	if evt := handler.waitEvent(t); evt.Type != "Error" {
		t.Errorf("Error frame should still be forwarded, got %q", evt.Type)
	}

	conn.Close()
	handler.waitState(t, StateDisconnected)
	dialer.expectNoDial(t, 100*time.Millisecond)
}

func TestManagerDropsUndecodableFrames(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m, dialer, handler := newTestManager(t, Options{URL: "ws://test", Metrics: metrics})

	_ = m.Connect("tok")
	conn := dialer.next(t)
	conn.send(`not json`)
	conn.send(`{"no_type":true}`)
	conn.send(`{"type":"Message","_id":"m1"}`)

	for range 2 {
		var decodeErr *DecodeError
		if err := handler.waitError(t); !errors.As(err, &decodeErr) {
			t.Errorf("got %v, want DecodeError", err)
		}
	}
	evt := handler.waitEvent(t)
	if evt.Type != "Message" || evt.Raw.Get("_id").String() != "m1" {
		t.Errorf("unexpected event %+v", evt)
	}
	if got := testutil.ToFloat64(metrics.decodeErrors); got != 2 {
		t.Errorf("decode errors metric: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.frames.WithLabelValues("Message")); got != 1 {
		t.Errorf("frames metric: got %v, want 1", got)
	}
}

func TestManagerHeartbeatTimeout(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{
		URL:               "ws://test",
		HeartbeatInterval: 10 * time.Millisecond,
		PongTimeout:       30 * time.Millisecond,
	})

	_ = m.Connect("tok")
	conn := dialer.next(t)
	conn.send(`{"type":"Authenticated"}`)
	handler.waitState(t, StateConnected)

	written := waitWritten(t, conn, 2)
	if typ := gjson.Get(written[1], "type").String(); typ != "Ping" {
		t.Errorf("second frame: got %q, want Ping", typ)
	}

	if err := handler.waitError(t); !errors.Is(err, ErrPongTimeout) {
		t.Errorf("got %v, want ErrPongTimeout", err)
	}
	handler.waitState(t, StateDisconnected)
}

func TestManagerPongTimeoutShorterThanInterval(t *testing.T) {
	t.Parallel()
	const interval = 400 * time.Millisecond
	m, dialer, handler := newTestManager(t, Options{
		URL:               "ws://test",
		HeartbeatInterval: interval,
		PongTimeout:       20 * time.Millisecond,
	})

	_ = m.Connect("tok")
	conn := dialer.next(t)
	conn.send(`{"type":"Authenticated"}`)
	handler.waitState(t, StateConnected)

	waitWritten(t, conn, 2)
	pinged := time.Now()
	if err := handler.waitError(t); !errors.Is(err, ErrPongTimeout) {
		t.Fatalf("got %v, want ErrPongTimeout", err)
	}
	if elapsed := time.Since(pinged); elapsed >= interval*3/4 {
		t.Errorf("timeout reported %v after the ping, want well under the %v interval", elapsed, interval)
	}
}

func TestManagerHeartbeatAnswered(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{
		URL:               "ws://test",
		HeartbeatInterval: 10 * time.Millisecond,
		PongTimeout:       25 * time.Millisecond,
	})

	_ = m.Connect("tok")
	conn := dialer.next(t)
	conn.send(`{"type":"Authenticated"}`)
	handler.waitState(t, StateConnected)

	stop := time.After(150 * time.Millisecond)
	seen := 1
loop:
	for {
		select {
		case <-stop:
			break loop
		default:
		}
		if w := conn.Written(); len(w) > seen {
			seen = len(w)
			conn.send(`{"type":"Pong"}`)
		}
		time.Sleep(time.Millisecond)
	}
	if m.State() != StateConnected {
		t.Errorf("State: got %v, want connected", m.State())
	}
	select {
	case evt := <-handler.events:
		if evt.Type == "Pong" {
			t.Error("Pong frames should not be forwarded")
		}
	default:
	}
}

func TestManagerSend(t *testing.T) {
	t.Parallel()
	m, dialer, handler := newTestManager(t, Options{URL: "ws://test"})

	if err := m.Send([]byte(`{"type":"BeginTyping"}`)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send before connect: got %v, want ErrNotConnected", err)
	}

	_ = m.Connect("tok")
	conn := dialer.next(t)
	conn.send(`{"type":"Authenticated"}`)
	handler.waitState(t, StateConnected)

	if err := m.Send([]byte(`{"type":"BeginTyping","channel":"c"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	written := waitWritten(t, conn, 2)
	if written[1] != `{"type":"BeginTyping","channel":"c"}` {
		t.Errorf("got %s", written[1])
	}
}

func TestManagerClosed(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, Options{URL: "ws://test"})
	m.Close()
	if err := m.Connect("tok"); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestDefaultRetryDelay(t *testing.T) {
	t.Parallel()
	if got := DefaultRetryDelay(0); got != 0 {
		t.Errorf("DefaultRetryDelay(0): got %v, want 0", got)
	}
	tests := []struct {
		failures int
		base     time.Duration
	}{
		{1, time.Second},
		{2, 3 * time.Second},
		{3, 7 * time.Second},
	}
	for _, tt := range tests {
		got := DefaultRetryDelay(tt.failures)
		low := time.Duration(float64(tt.base) * 0.8)
		high := time.Duration(float64(tt.base) * 1.2)
		if got < low || got > high {
			t.Errorf("DefaultRetryDelay(%d): got %v, want within [%v, %v]", tt.failures, got, low, high)
		}
	}

	// Consecutive failures never shrink the expected delay.
	var prev time.Duration
	for n := range 10 {
		var sum time.Duration
		for range 50 {
			sum += DefaultRetryDelay(n)
		}
		if avg := sum / 50; avg < prev {
			t.Errorf("average delay decreased at %d: %v < %v", n, avg, prev)
		} else {
			prev = avg
		}
	}
}
