package wsfeed

import "sync"

// Hub is an explicit registry of per-channel clients, meant to be owned
// by the application's composition root. It replaces ambient package
// globals: nothing here is process-wide unless the caller makes it so.
type Hub struct {
	opts Options

	mu      sync.Mutex
	clients map[string]*Client
}

// NewHub returns a registry that lazily creates one Client per channel
// name using opts as the template (opts.Channel is ignored).
func NewHub(opts Options) *Hub {
	return &Hub{
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Channel returns the client for name, creating it on first use. Repeat
// calls with the same name return the same instance.
func (h *Hub) Channel(name string) *Client {
	if name == "" {
		name = DefaultChannel
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[name]; ok {
		return c
	}

	opts := h.opts
	opts.Channel = name
	c := NewClient(opts)
	h.clients[name] = c
	return c
}

// Channels lists the channel names with a live client.
func (h *Hub) Channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.clients))
	for name := range h.clients {
		names = append(names, name)
	}
	return names
}

// Close disconnects and forgets every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Disconnect()
	}
}
