package wsfeed

import (
	"context"
	"encoding/json"
	"sync"
)

type inboundFrame struct {
	data []byte
	err  error
}

// fakeTransport is a scriptable transport for tests: frames and failures
// are injected through push/fail, outbound frames are captured.
type fakeTransport struct {
	inbound   chan inboundFrame
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	sent        [][]byte
	writeErr    error
	normalClose bool
	closedFlag  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan inboundFrame, 64),
		done:    make(chan struct{}),
	}
}

func (t *fakeTransport) readFrame() ([]byte, error) {
	select {
	case f := <-t.inbound:
		return f.data, f.err
	case <-t.done:
		return nil, ErrConnectionClosed
	}
}

func (t *fakeTransport) writeFrame(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writeErr != nil {
		return t.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.sent = append(t.sent, cp)
	return nil
}

func (t *fakeTransport) close(normal bool) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.normalClose = normal
		t.closedFlag = true
		t.mu.Unlock()
		close(t.done)
	})
}

// push delivers one inbound frame to the reader.
func (t *fakeTransport) push(data []byte) {
	t.inbound <- inboundFrame{data: data}
}

// pushMessage marshals and delivers a frame.
func (t *fakeTransport) pushMessage(m Message) {
	data, _ := json.Marshal(m)
	t.push(data)
}

// fail terminates the reader with err, simulating a transport closure.
func (t *fakeTransport) fail(err error) {
	t.inbound <- inboundFrame{err: err}
}

func (t *fakeTransport) sentFrames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *fakeTransport) sentTypes() []string {
	var types []string
	for _, raw := range t.sentFrames() {
		var m Message
		if err := json.Unmarshal(raw, &m); err == nil {
			types = append(types, m.Type)
		}
	}
	return types
}

func (t *fakeTransport) closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closedFlag
}

func (t *fakeTransport) closedNormally() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closedFlag && t.normalClose
}

// fakeDialer hands out fakeTransports and can be scripted to fail the
// next dials. Every successful dial is announced on dialC so tests can
// await reconnections.
type fakeDialer struct {
	mu         sync.Mutex
	dialErrs   []error
	dials      int
	transports []*fakeTransport
	dialC      chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		dialC: make(chan *fakeTransport, 16),
	}
}

func (d *fakeDialer) dial(_ context.Context, _ DialParams) (transport, error) {
	d.mu.Lock()
	d.dials++
	if len(d.dialErrs) > 0 {
		err := d.dialErrs[0]
		d.dialErrs = d.dialErrs[1:]
		d.mu.Unlock()
		return nil, err
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	d.mu.Unlock()

	d.dialC <- t
	return t, nil
}

// failNext makes the next n dial attempts return err.
func (d *fakeDialer) failNext(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.dialErrs = append(d.dialErrs, err)
	}
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
