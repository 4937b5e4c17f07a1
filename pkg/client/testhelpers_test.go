// Copyright 2024-2026 Aiku AI

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aiku/upryzing-go/pkg/events"
)

const selfID = "01SELF"

// readyFrame is the snapshot used by most tests: the current user is a
// member of srv1, which is owned by someone else.
const readyFrame = `{
	"type": "Ready",
	"users": [
		{"_id": "01SELF", "username": "self", "relationship": "User", "online": true},
		{"_id": "01OWNER", "username": "owner", "relationship": "None"},
		{"_id": "01FRIEND", "username": "friend", "relationship": "Friend"}
	],
	"servers": [{
		"_id": "srv1",
		"owner": "01OWNER",
		"name": "Server",
		"channels": ["chan1", "chan2"],
		"default_permissions": 1048576,
		"roles": {
			"mod": {"name": "Moderator", "permissions": {"a": 8388608, "d": 0}, "rank": 1},
			"muted": {"name": "Muted", "permissions": {"a": 0, "d": 4194304}, "rank": 2}
		}
	}],
	"channels": [
		{"_id": "chan1", "channel_type": "TextChannel", "server": "srv1", "name": "general"},
		{"_id": "chan2", "channel_type": "TextChannel", "server": "srv1", "name": "staff",
			"role_permissions": {"mod": {"a": 4194304, "d": 0}}},
		{"_id": "saved", "channel_type": "SavedMessages", "user": "01SELF"},
		{"_id": "dm1", "channel_type": "DirectMessage", "active": true, "recipients": ["01SELF", "01FRIEND"]}
	],
	"members": [
		{"_id": {"server": "srv1", "user": "01SELF"}, "joined_at": "2024-01-01T00:00:00Z", "roles": ["mod"]},
		{"_id": {"server": "srv1", "user": "01OWNER"}, "joined_at": "2024-01-01T00:00:00Z"}
	],
	"emojis": [
		{"_id": "emoji1", "parent": {"type": "Server", "id": "srv1"}, "creator_id": "01OWNER", "name": "wave"}
	]
}`

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Query  string
	Body   string
	Header http.Header
}

// fakeAPI wraps an httptest.Server answering with canned JSON responses.
// Unknown endpoints answer 404.
type fakeAPI struct {
	Server *httptest.Server

	mu        sync.Mutex
	calls     []endpointCall
	responses map[string]string
	// failures maps a path prefix to the status it fails with.
	failures map[string]int
}

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{
		responses: make(map[string]string),
		failures:  make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeAPI) Close() {
	f.Server.Close()
}

// Respond sets the body returned for method and path. An empty body answers
// 204.
func (f *fakeAPI) Respond(method, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+path] = body
}

// Fail makes every path starting with prefix answer status.
func (f *fakeAPI) Fail(prefix string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[prefix] = status
}

func (f *fakeAPI) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// CallCount returns how often method and path were requested.
func (f *fakeAPI) CallCount(method, path string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, endpointCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(body),
		Header: r.Header.Clone(),
	})
	var status int
	for prefix, code := range f.failures {
		if strings.HasPrefix(r.URL.Path, prefix) {
			status = code
		}
	}
	resp, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case status != 0:
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"type":"InternalError"}`)
	case !ok:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"type":"NotFound"}`)
	case resp == "":
		w.WriteHeader(http.StatusNoContent)
	default:
		_, _ = io.WriteString(w, resp)
	}
}

// eventRecorder collects the domain events emitted by a client.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Event, len(r.events))
	copy(cp, r.events)
	return cp
}

func (r *eventRecorder) Types() []EventType {
	var types []EventType
	for _, evt := range r.Events() {
		types = append(types, evt.EventType())
	}
	return types
}

// Count returns how many events of typ were emitted.
func (r *eventRecorder) Count(typ EventType) int {
	n := 0
	for _, evt := range r.Events() {
		if evt.EventType() == typ {
			n++
		}
	}
	return n
}

func (r *eventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

var errNoTransport = errors.New("no transport in tests")

// newTestClient returns a client with a session for selfID whose API is a
// fakeAPI and whose event connection never opens.
func newTestClient(t *testing.T, configure ...func(*Config)) (*Client, *fakeAPI, *eventRecorder) {
	t.Helper()
	return newTestClientWithDialer(t, func(context.Context, string) (events.Transport, error) {
		return nil, errNoTransport
	}, configure...)
}

// newTestClientWithDialer is newTestClient with a custom event connection.
func newTestClientWithDialer(t *testing.T, dialer events.Dialer, configure ...func(*Config)) (*Client, *fakeAPI, *eventRecorder) {
	t.Helper()
	api := newFakeAPI()
	t.Cleanup(api.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = api.Server.URL
	cfg.WebSocketURL = "ws://127.0.0.1:1/events"
	cfg.AutoReconnect = false
	cfg.HeartbeatInterval = 0
	for _, fn := range configure {
		fn(&cfg)
	}
	c := New(cfg, WithDialer(dialer))
	t.Cleanup(c.Close)
	rec := &eventRecorder{}
	c.On(rec.record)
	c.UseExistingSession(Session{ID: "session1", Token: "token", UserID: selfID})
	return c, api, rec
}

// dispatch feeds one server frame to the client as if it had been received
// on the event connection.
func dispatch(t *testing.T, c *Client, frame string) {
	t.Helper()
	if !gjson.Valid(frame) {
		t.Fatalf("invalid test frame: %s", frame)
	}
	raw := gjson.Parse(frame)
	c.HandleEvent(events.Event{Type: raw.Get("type").String(), Raw: raw})
}

// newReadyClient returns a test client with readyFrame applied and the
// recorded events cleared.
func newReadyClient(t *testing.T, configure ...func(*Config)) (*Client, *fakeAPI, *eventRecorder) {
	t.Helper()
	c, api, rec := newTestClient(t, configure...)
	dispatch(t, c, readyFrame)
	if !c.Ready() {
		t.Fatal("client not ready after Ready event")
	}
	rec.Reset()
	return c, api, rec
}

func withPartials(cfg *Config) { cfg.Partials = true }

func mustParse(t *testing.T, payload string) gjson.Result {
	t.Helper()
	if !gjson.Valid(payload) {
		t.Fatalf("invalid test payload: %s", payload)
	}
	return gjson.Parse(payload)
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
