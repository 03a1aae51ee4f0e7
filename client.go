package wsfeed

import (
	"context"
	"net/http"
	"time"
)

// Client is the public facade for one event channel: a single reconnecting
// session multiplexing topics to independently registered handlers.
// Distinct channels get distinct Client instances and share nothing.
type Client struct {
	channel string
	logger  logger

	conn       *connManager
	registry   *topicRegistry
	dispatcher *dispatcher

	connectHandlers    handlerList[EventHandler]
	disconnectHandlers handlerList[EventHandler]
	errorHandlers      handlerList[EventHandler]
}

// Options configures a Client. Zero values fall back to sane defaults;
// only Host is required when the default dialer is used.
type Options struct {
	// Host of the event endpoint, e.g. "ops.example.com:8000".
	Host string
	// Secure selects wss over ws. It should match the transport security
	// of whatever page or process hosts the consumer.
	Secure bool
	// Channel names the logical stream partition. Empty means
	// DefaultChannel.
	Channel string
	// Header is sent on the upgrade request. Optional.
	Header http.Header

	Reconnect         ReconnectPolicy
	HeartbeatInterval time.Duration
	// PongTimeout enables half-open detection when positive. Disabled by
	// default.
	PongTimeout time.Duration

	// Dialer overrides the transport. Tests inject fakes here.
	Dialer Dialer
	// DialParams overrides endpoint resolution entirely, for deployments
	// with rotating tickets or signed URLs.
	DialParams DialParamsGetter

	Logger Logger
}

// NewClient builds a facade for opts.Channel. It performs no I/O; call
// Connect to open the session.
func NewClient(opts Options) *Client {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}
	log = log.WithField("channel", opts.Channel)

	c := &Client{
		channel:  opts.Channel,
		logger:   log,
		registry: newTopicRegistry(),
	}
	c.dispatcher = newDispatcher(c.registry, log)

	dialer := opts.Dialer
	if dialer == nil {
		dialer = NewWebsocketDialer(nil, log)
	}

	getter := opts.DialParams
	if getter == nil {
		endpoint := Endpoint(opts.Host, opts.Secure, opts.Channel)
		header := opts.Header
		getter = func(context.Context) (DialParams, error) {
			return DialParams{URL: endpoint, Header: header}, nil
		}
	}

	c.conn = newConnManager(connConfig{
		dialer:            dialer,
		params:            NewDialParamsRepo(log, getter),
		policy:            opts.Reconnect,
		heartbeatInterval: opts.HeartbeatInterval,
		pongTimeout:       opts.PongTimeout,
		logger:            log,
		onMessage:         c.dispatcher.dispatch,
		onConnect: func() {
			fire(&c.connectHandlers, log, nil)
		},
		onDisconnect: func() {
			fire(&c.disconnectHandlers, log, nil)
		},
		onError: func(err error) {
			fire(&c.errorHandlers, log, err)
		},
	})

	return c
}

// Channel returns the channel this client is bound to. The binding is
// immutable; a different channel means a different Client.
func (c *Client) Channel() string {
	return c.channel
}

// Connect opens the session. Already-open clients ignore the call and
// establishment failures are absorbed by the reconnection machinery, so
// there is nothing to return.
func (c *Client) Connect() {
	c.conn.Connect()
}

// Disconnect tears the session down and resets reconnection state. Safe
// to call repeatedly and in any state.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Send writes m to the server. While disconnected the frame is dropped
// and logged; it is never queued for later delivery.
func (c *Client) Send(m Message) {
	c.conn.Send(m)
}

// IsConnected reports whether the session is currently open.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State exposes the connection state, mostly for logging and tests.
func (c *Client) State() ConnState {
	return c.conn.State()
}

// On registers fn for every inbound message whose type equals topic.
// TopicWildcard matches everything. Handlers fire in registration order,
// topic handlers before wildcard ones.
func (c *Client) On(topic string, fn MessageHandler) Unsubscribe {
	return c.registry.subscribe(topic, fn)
}

// OnConnect registers fn to run each time the session opens.
func (c *Client) OnConnect(fn EventHandler) Unsubscribe {
	return c.connectHandlers.add(fn)
}

// OnDisconnect registers fn to run each time the session closes, whether
// by the server, the network or an explicit Disconnect.
func (c *Client) OnDisconnect(fn EventHandler) Unsubscribe {
	return c.disconnectHandlers.add(fn)
}

// OnError registers fn for transport-level errors. An error by itself
// does not change connection state; the closure that follows does.
func (c *Client) OnError(fn EventHandler) Unsubscribe {
	return c.errorHandlers.add(fn)
}

// SubscribeChannel asks the server to add this session to another
// channel's broadcast set. It is an ordinary send of a control frame.
func (c *Client) SubscribeChannel(name string) {
	c.conn.Send(newSubscribeFrame(name))
}

// UnsubscribeChannel undoes SubscribeChannel.
func (c *Client) UnsubscribeChannel(name string) {
	c.conn.Send(newUnsubscribeFrame(name))
}

// RequestStats asks the server for per-channel connection counts. The
// reply arrives as a message on TopicStats.
func (c *Client) RequestStats() {
	c.conn.Send(newStatsRequestFrame())
}
