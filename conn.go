package wsfeed

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ConnState is the lifecycle state of a connection manager.
type ConnState int32

const (
	// StateIdle means never connected, or explicitly disconnected.
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnecting
	// StateFailed means the reconnection budget is exhausted; only an
	// explicit Connect resumes.
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReconnectPolicy drives the backoff between reconnection attempts. Each
// connection manager owns its policy; instances never share one.
type ReconnectPolicy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
}

// DefaultReconnectPolicy returns the stock policy: five attempts at
// 2s, 4s, 8s, 16s and 32s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
	}
}

// Delay returns the backoff before the given attempt, counted from 1.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(p.Multiplier, float64(attempt-1))
	return time.Duration(float64(p.BaseDelay) * factor)
}

// DefaultHeartbeatInterval is how often a ping control frame is sent
// while the connection is open.
const DefaultHeartbeatInterval = 30 * time.Second

type connConfig struct {
	dialer            Dialer
	params            DialParamsRepo
	policy            ReconnectPolicy
	heartbeatInterval time.Duration
	// pongTimeout force-closes the session when no pong follows a ping
	// within the window. Zero disables the check, matching a heartbeat
	// that only signals liveness without verifying it.
	pongTimeout time.Duration
	logger      logger

	onMessage    func(Message)
	onConnect    func()
	onDisconnect func()
	onError      func(err error)
}

// connManager owns a single transport session: it opens it, watches it,
// recovers it with exponential backoff and runs the heartbeat. All state
// transitions happen under mu; frames are dispatched from the single read
// goroutine so delivery order equals arrival order.
//
// Invariants: at most one live transport and at most one pending
// reconnect timer exist at any time. The generation counter makes stale
// timer and goroutine callbacks from before a Disconnect harmless.
type connManager struct {
	cfg connConfig

	mu             sync.Mutex
	state          ConnState
	attempts       int
	gen            uint64
	trans          transport
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
	pongTimer      *time.Timer
}

func newConnManager(cfg connConfig) *connManager {
	if cfg.heartbeatInterval <= 0 {
		cfg.heartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.policy.Multiplier <= 0 {
		cfg.policy = DefaultReconnectPolicy()
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	cfg.logger = cfg.logger.WithField("component", "conn_manager")
	return &connManager{cfg: cfg, state: StateIdle}
}

// Connect establishes the transport unless it is already open or being
// opened. Establishment failures never surface to the caller; they feed
// the reconnection procedure instead.
func (c *connManager) Connect() {
	c.mu.Lock()
	switch c.state {
	case StateOpen, StateConnecting:
		c.mu.Unlock()
		return
	}
	c.stopReconnectTimerLocked()
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// Disconnect is the sole unconditional teardown path: it cancels any
// pending reconnect timer, stops the heartbeat, closes the transport with
// a normal status code and resets the attempt counter. Idempotent.
func (c *connManager) Disconnect() {
	c.mu.Lock()
	wasOpen := c.state == StateOpen
	c.gen++
	c.state = StateClosing
	c.stopReconnectTimerLocked()
	c.stopHeartbeatLocked()
	c.stopPongTimerLocked()
	t := c.trans
	c.trans = nil
	c.attempts = 0
	c.state = StateIdle
	c.mu.Unlock()

	if t != nil {
		t.close(true)
	}
	if wasOpen && c.cfg.onDisconnect != nil {
		c.cfg.onDisconnect()
	}
}

// Send writes one frame if the connection is open. Otherwise the frame is
// dropped with a warning; there is no outbound queueing across
// reconnects.
func (c *connManager) Send(m Message) {
	c.mu.Lock()
	t := c.trans
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || t == nil {
		c.cfg.logger.Warnf("dropping outbound %q frame: %s", m.Type, ErrNotConnected)
		return
	}

	data, err := json.Marshal(m)
	if err != nil {
		c.cfg.logger.Errorf("cannot encode outbound %q frame: %s", m.Type, err)
		return
	}
	if err := t.writeFrame(data); err != nil {
		c.cfg.logger.Errorf("write failed for %q frame: %s", m.Type, err)
	}
}

func (c *connManager) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connManager) IsConnected() bool {
	return c.State() == StateOpen
}

// Attempts reports the current reconnect-attempt count.
func (c *connManager) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *connManager) dial(gen uint64) {
	ctx := context.Background()

	params, err := c.cfg.params.Get(ctx)
	if err == nil {
		var t transport
		if t, err = c.cfg.dialer(ctx, params); err == nil {
			c.opened(gen, t)
			return
		}
	}

	c.cfg.logger.Errorf("cannot establish connection: %s", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.scheduleReconnectLocked(gen)
}

func (c *connManager) opened(gen uint64, t transport) {
	c.mu.Lock()
	if gen != c.gen {
		// Disconnect raced the dial; discard the fresh session.
		c.mu.Unlock()
		t.close(true)
		return
	}
	c.trans = t
	c.state = StateOpen
	c.attempts = 0
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	c.cfg.logger.Infoln("connection open")

	go c.readLoop(gen, t)
	go c.heartbeat(gen, t, stop)

	if c.cfg.onConnect != nil {
		c.cfg.onConnect()
	}
}

func (c *connManager) readLoop(gen uint64, t transport) {
	for {
		raw, err := t.readFrame()
		if err != nil {
			c.closed(gen, err)
			return
		}

		m, derr := decodeMessage(raw)
		if derr != nil {
			// A malformed frame is never fatal; drop it and keep reading.
			c.cfg.logger.Warnf("dropping malformed frame: %s", derr)
			continue
		}
		if m.Type == TopicPong {
			c.notePong(gen)
		}
		if c.cfg.onMessage != nil {
			c.cfg.onMessage(m)
		}
	}
}

func (c *connManager) closed(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		// Disconnect already tore this session down.
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.stopPongTimerLocked()
	if c.trans != nil {
		c.trans.close(false)
		c.trans = nil
	}
	normal := errors.Is(cause, ErrNormalClosure)
	if normal {
		c.state = StateIdle
	} else {
		c.scheduleReconnectLocked(gen)
	}
	c.mu.Unlock()

	if normal {
		c.cfg.logger.Infoln("connection closed normally")
	} else if c.cfg.onError != nil {
		c.cfg.onError(cause)
	}
	if c.cfg.onDisconnect != nil {
		c.cfg.onDisconnect()
	}
}

// scheduleReconnectLocked arms the single backoff timer, or moves to
// StateFailed once the attempt budget is spent. Callers hold mu and have
// already consumed or cancelled any previous timer.
func (c *connManager) scheduleReconnectLocked(gen uint64) {
	if c.cfg.policy.MaxAttempts > 0 && c.attempts >= c.cfg.policy.MaxAttempts {
		c.state = StateFailed
		c.cfg.logger.Errorf(
			"%s; call Connect to resume",
			WrapErrorUnrecoverableConnection(ErrCannotConnect, c.attempts),
		)
		return
	}

	c.attempts++
	delay := c.cfg.policy.Delay(c.attempts)
	c.state = StateReconnecting
	c.cfg.logger.Infof(
		"reconnecting in %s (attempt %d/%d)",
		delay, c.attempts, c.cfg.policy.MaxAttempts,
	)

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.state = StateConnecting
		c.mu.Unlock()

		c.dial(gen)
	})
}

func (c *connManager) heartbeat(gen uint64, t transport, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.heartbeatInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(newPingFrame())

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := t.writeFrame(ping); err != nil {
				c.cfg.logger.Warnf("heartbeat write failed: %s", err)
				continue
			}
			c.armPongTimer(gen, t)
		}
	}
}

// armPongTimer starts the optional half-open detection window. When no
// pong lands before it fires, the session is force-closed abnormally so
// the regular reconnect path kicks in.
func (c *connManager) armPongTimer(gen uint64, t transport) {
	if c.cfg.pongTimeout <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.stopPongTimerLocked()
	c.pongTimer = time.AfterFunc(c.cfg.pongTimeout, func() {
		c.mu.Lock()
		stale := gen != c.gen || c.state != StateOpen
		c.mu.Unlock()
		if stale {
			return
		}
		c.cfg.logger.Warnf("no pong within %s, closing half-open connection", c.cfg.pongTimeout)
		t.close(false)
	})
}

func (c *connManager) notePong(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.stopPongTimerLocked()
}

func (c *connManager) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *connManager) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

func (c *connManager) stopPongTimerLocked() {
	if c.pongTimer != nil {
		c.pongTimer.Stop()
		c.pongTimer = nil
	}
}
