package wsfeed

import (
	"sync"
)

// Invalidator is the cache collaborator sessions can bridge topics to.
// The core never mutates caches directly; it only calls Invalidate with
// the collection a topic maps to.
type Invalidator interface {
	Invalidate(collection string)
}

// InvalidatorFunc adapts a plain function to Invalidator.
type InvalidatorFunc func(collection string)

func (f InvalidatorFunc) Invalidate(collection string) { f(collection) }

// SessionOptions configures a Session on top of Client Options.
type SessionOptions struct {
	Options

	// OnMessage, when set, receives every inbound message after it has
	// been recorded as the session's last message.
	OnMessage MessageHandler
	// OnError, when set, receives transport-level errors.
	OnError EventHandler
	// DisableAutoConnect leaves the session idle until Connect is called
	// on the underlying client.
	DisableAutoConnect bool
}

// Session binds a Client to a consumer's active lifetime. It mirrors the
// connection state into a synchronously updated connected flag, records
// the last message seen, and releases everything it acquired on Close,
// whatever state the connection is in at that point.
type Session struct {
	opts SessionOptions

	mu        sync.RWMutex
	client    *Client
	connected bool
	last      Message
	hasLast   bool
	unsubs    []Unsubscribe
	closed    bool
}

// NewSession creates the facade for opts.Channel, wires its lifecycle
// into the session state and, unless disabled, connects.
func NewSession(opts SessionOptions) *Session {
	s := &Session{opts: opts}
	s.start()
	return s
}

func (s *Session) start() {
	client := NewClient(s.opts.Options)

	unsubs := []Unsubscribe{
		client.On(TopicWildcard, func(m Message) {
			s.mu.Lock()
			s.last = m
			s.hasLast = true
			s.mu.Unlock()

			if s.opts.OnMessage != nil {
				s.opts.OnMessage(m)
			}
		}),
		client.OnConnect(func(error) {
			s.setConnected(true)
		}),
		client.OnDisconnect(func(error) {
			s.setConnected(false)
		}),
		client.OnError(func(err error) {
			if s.opts.OnError != nil {
				s.opts.OnError(err)
			}
		}),
	}

	s.mu.Lock()
	s.client = client
	s.unsubs = unsubs
	s.closed = false
	s.connected = false
	s.hasLast = false
	s.mu.Unlock()

	if !s.opts.DisableAutoConnect {
		client.Connect()
	}
}

func (s *Session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Client exposes the underlying facade so consumers can register topic
// handlers directly; the session itself is topic-agnostic.
func (s *Session) Client() *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Connected reports the mirrored connection flag.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// LastMessage returns the most recent inbound message, if any arrived.
func (s *Session) LastMessage() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

// BindInvalidation maps an inbound topic to a cached collection: each
// message on topic invalidates it. The returned Unsubscribe removes the
// bridge; Close removes it too.
func (s *Session) BindInvalidation(topic, collection string, inv Invalidator) Unsubscribe {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	unsub := client.On(topic, func(Message) {
		inv.Invalidate(collection)
	})

	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()

	return unsub
}

// SetChannel rebinds the session to a different channel. The channel is
// immutable per facade, so the whole client is torn down and recreated.
// A same-name call is a no-op.
func (s *Session) SetChannel(name string) {
	if name == "" {
		name = DefaultChannel
	}

	s.mu.RLock()
	current := s.opts.Channel
	if current == "" {
		current = DefaultChannel
	}
	s.mu.RUnlock()

	if name == current {
		return
	}

	s.teardown()
	s.opts.Channel = name
	s.start()
}

// Close releases every subscription acquired by the session and tears
// the transport down, unconditionally.
func (s *Session) Close() {
	s.teardown()
}

func (s *Session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	client := s.client
	unsubs := s.unsubs
	s.unsubs = nil
	s.connected = false
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if client != nil {
		client.Disconnect()
	}
}
