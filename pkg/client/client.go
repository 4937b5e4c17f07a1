// Copyright 2024-2026 Aiku AI

// Package client keeps a local, event-driven replica of the chat state a
// session can see. A Client owns one collection per entity kind, applies the
// events received on its event connection in order, and emits domain events
// to registered handlers.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/aiku/upryzing-go/pkg/events"
	"github.com/aiku/upryzing-go/pkg/hydration"
	"github.com/aiku/upryzing-go/pkg/store"
)

// Session is the authentication of a client: a user session or a bot token.
type Session struct {
	ID     string
	Token  string
	UserID string
	Name   string
	Bot    bool
}

type Option func(*Client)

// WithRequester replaces the HTTP requester.
func WithRequester(r Requester) Option {
	return func(c *Client) { c.api = r }
}

// WithDialer replaces the event connection dialer.
func WithDialer(d events.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics registers the event connection metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = events.NewMetrics(reg) }
}

type handlerEntry struct {
	id int
	fn func(Event)
}

// Client is the state replica of one session. Clients share no state.
type Client struct {
	cfg     Config
	log     zerolog.Logger
	api     Requester
	dialer  events.Dialer
	metrics *events.Metrics
	events  *events.Manager

	// applyMu serializes every local mutation, whether it comes from the
	// event stream or from a completed request.
	applyMu sync.Mutex
	sched   *store.Scheduler
	// echoes holds the deletions applied from a completed request whose
	// event has not arrived yet. Guarded by applyMu.
	echoes map[string]struct{}

	Servers        *ServerCollection
	Channels       *ChannelCollection
	ChannelUnreads *ChannelUnreadCollection
	Emojis         *EmojiCollection
	Messages       *MessageCollection
	ServerMembers  *MemberCollection
	Sessions       *SessionCollection
	Users          *UserCollection

	mu      sync.RWMutex
	session *Session
	selfID  string
	ready   bool

	handlersMu    sync.Mutex
	handlers      []handlerEntry
	nextHandlerID int
}

// New creates a disconnected client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:   cfg,
		log:    zerolog.Nop(),
		sched:  store.NewScheduler(),
		echoes: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	eventLog := c.log
	c.log = c.log.With().Str("component", "client").Logger()
	if c.api == nil {
		requester := NewHTTPRequester(cfg.BaseURL, cfg.RequestRate, cfg.RequestBurst)
		requester.Auth = c.AuthenticationHeader
		c.api = requester
	}

	c.Servers = newServerCollection(c)
	c.Channels = &ChannelCollection{newCollection(c, hydration.ChannelSpec)}
	c.ChannelUnreads = &ChannelUnreadCollection{newCollection(c, hydration.ChannelUnreadSpec)}
	c.Emojis = &EmojiCollection{newCollection(c, hydration.EmojiSpec)}
	c.Messages = &MessageCollection{newCollection(c, hydration.MessageSpec)}
	c.ServerMembers = &MemberCollection{newCollection(c, hydration.MemberSpec)}
	c.Sessions = &SessionCollection{newCollection(c, hydration.SessionSpec)}
	c.Users = &UserCollection{newCollection(c, hydration.UserSpec)}

	c.events = events.NewManager(events.Options{
		URL:               cfg.WebSocketURL,
		AutoReconnect:     cfg.AutoReconnect,
		RetryDelay:        cfg.RetryDelay,
		HeartbeatInterval: cfg.HeartbeatInterval,
		PongTimeout:       cfg.PongTimeout,
		Dialer:            c.dialer,
		Logger:            &eventLog,
		Metrics:           c.metrics,
	}, c)
	return c
}

// On registers fn for every domain event. fn may be called from the event
// connection goroutine and from goroutines performing requests.
func (c *Client) On(fn func(Event)) (remove func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.nextHandlerID++
	id := c.nextHandlerID
	next := make([]handlerEntry, len(c.handlers), len(c.handlers)+1)
	copy(next, c.handlers)
	c.handlers = append(next, handlerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.handlersMu.Lock()
			defer c.handlersMu.Unlock()
			next := make([]handlerEntry, 0, len(c.handlers))
			for _, h := range c.handlers {
				if h.id != id {
					next = append(next, h)
				}
			}
			c.handlers = next
		})
	}
}

func (c *Client) emit(evts ...Event) {
	if len(evts) == 0 {
		return
	}
	c.handlersMu.Lock()
	handlers := c.handlers
	c.handlersMu.Unlock()
	for _, evt := range evts {
		for _, h := range handlers {
			h.fn(evt)
		}
	}
}

// apply runs fn as one batch under the apply lock. Events passed to emit are
// delivered after the lock is released.
func (c *Client) apply(fn func(emit func(Event))) {
	var pending []Event
	c.applyMu.Lock()
	c.sched.Batch(func() {
		fn(func(evt Event) { pending = append(pending, evt) })
	})
	c.applyMu.Unlock()
	c.emit(pending...)
}

func (c *Client) request(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	data, err := c.api.Request(ctx, method, path, body)
	if err != nil {
		return gjson.Result{}, err
	}
	if len(data) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("invalid JSON in response to %s %s", method, path)
	}
	return gjson.ParseBytes(data), nil
}

// SelfID returns the id of the current user, once known.
func (c *Client) SelfID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selfID == "" && c.session != nil {
		return c.session.UserID
	}
	return c.selfID
}

// Logger returns the client logger.
func (c *Client) Logger() *zerolog.Logger {
	return &c.log
}

func (c *Client) setSelfID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selfID = id
}

// Ready reports whether the initial state of the current connection has been
// loaded.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Client) ConnectionState() events.State {
	return c.events.State()
}

// ConnectionFailureCount returns the number of consecutive failed connection
// attempts. It is reset when a connection is established.
func (c *Client) ConnectionFailureCount() int {
	return c.events.Failures()
}

// SessionID returns the id of a user session. Bot sessions have none.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

// AuthenticationHeader returns the header carrying the session token.
func (c *Client) AuthenticationHeader() (name, value string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.session == nil:
		return "", ""
	case c.session.Bot:
		return "X-Bot-Token", c.session.Token
	default:
		return "X-Session-Token", c.session.Token
	}
}

// fetchConfiguration resolves the event server URL from the API root unless
// it is configured.
func (c *Client) fetchConfiguration(ctx context.Context) error {
	if c.cfg.WebSocketURL != "" {
		return nil
	}
	raw, err := c.request(ctx, "GET", "/", nil)
	if err != nil {
		return fmt.Errorf("failed to fetch server configuration: %w", err)
	}
	ws := raw.Get("ws").String()
	if ws == "" {
		return errors.New("server configuration does not advertise an event server")
	}
	c.cfg.WebSocketURL = ws
	c.events.SetURL(ws)
	return nil
}

// LoginBot authenticates with a bot token and connects.
func (c *Client) LoginBot(ctx context.Context, token string) error {
	if err := c.fetchConfiguration(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.session = &Session{Token: token, Bot: true}
	c.mu.Unlock()
	return c.Connect()
}

// Login creates a user session. It returns a *MFARequiredError when the
// account requires a second factor.
func (c *Client) Login(ctx context.Context, email, password, friendlyName string) error {
	if err := c.fetchConfiguration(ctx); err != nil {
		return err
	}
	body := map[string]any{"email": email, "password": password}
	if friendlyName != "" {
		body["friendly_name"] = friendlyName
	}
	raw, err := c.request(ctx, "POST", "/auth/session/login", body)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	switch result := raw.Get("result").String(); result {
	case "Success":
		c.UseExistingSession(Session{
			ID:     raw.Get("_id").String(),
			Token:  raw.Get("token").String(),
			UserID: raw.Get("user_id").String(),
			Name:   raw.Get("name").String(),
		})
		return nil
	case "MFA":
		mfa := &MFARequiredError{Ticket: raw.Get("ticket").String()}
		for _, method := range raw.Get("allowed_methods").Array() {
			mfa.AllowedMethods = append(mfa.AllowedMethods, method.String())
		}
		return mfa
	default:
		return fmt.Errorf("unexpected login result %q", result)
	}
}

// UseExistingSession sets the session without contacting the server.
func (c *Client) UseExistingSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &s
	c.selfID = s.UserID
}

// Logout ends a user session on the server, then clears all local state.
// Local state is cleared even if the request fails.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	var err error
	if session != nil && !session.Bot {
		if _, err = c.request(ctx, "POST", "/auth/session/logout", nil); err != nil {
			err = fmt.Errorf("failed to log out: %w", err)
		}
	}
	c.logoutLocal()
	return err
}

func (c *Client) logoutLocal() {
	c.events.Disconnect()
	c.mu.Lock()
	c.session = nil
	c.selfID = ""
	c.ready = false
	c.mu.Unlock()
	c.apply(func(emit func(Event)) {
		c.resetAll()
		clear(c.echoes)
		c.Servers.ResetSyncStatus()
		emit(LifecycleEvent{Type: EventLogout})
	})
}

func (c *Client) resetAll() {
	c.Servers.store.Reset()
	c.Channels.store.Reset()
	c.ChannelUnreads.store.Reset()
	c.Emojis.store.Reset()
	c.Messages.store.Reset()
	c.ServerMembers.store.Reset()
	c.Sessions.store.Reset()
	c.Users.store.Reset()
}

// Connect opens the event connection with the current session.
func (c *Client) Connect() error {
	c.mu.Lock()
	session := c.session
	c.ready = false
	c.mu.Unlock()
	if session == nil {
		return ErrNoSession
	}
	return c.events.Connect(session.Token)
}

// Disconnect closes the event connection. It is safe to call in any state.
func (c *Client) Disconnect() {
	c.events.Disconnect()
}

// Close disconnects and releases the event connection for good.
func (c *Client) Close() {
	c.events.Close()
}

// awaitEcho records that a deletion was applied ahead of its event. It only
// matters with partials, where the event would otherwise be reported for an
// unknown entity. Runs under the apply lock.
func (c *Client) awaitEcho(kind, id string) {
	if c.cfg.Partials {
		c.echoes[kind+":"+id] = struct{}{}
	}
}

// echoed reports and forgets a deletion recorded by awaitEcho. Runs under the
// apply lock.
func (c *Client) echoed(kind, id string) bool {
	key := kind + ":" + id
	if _, ok := c.echoes[key]; !ok {
		return false
	}
	delete(c.echoes, key)
	return true
}

// Send writes a raw frame on the event connection.
func (c *Client) send(frame []byte) error {
	return c.events.Send(frame)
}
