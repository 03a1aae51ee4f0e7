package wsfeed

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	u := Endpoint("ops.example.test:8000", false, ChannelThreats)
	require.Equal(t, "ws://ops.example.test:8000/ws/threats", u.String())

	u = Endpoint("ops.example.test", true, "")
	require.Equal(t, "wss://ops.example.test/ws/all", u.String())
}

func TestClientChannelIsImmutable(t *testing.T) {
	c, _ := newTestClient(t, Options{Channel: ChannelTactical})
	require.Equal(t, ChannelTactical, c.Channel())

	c, _ = newTestClient(t, Options{})
	require.Equal(t, DefaultChannel, c.Channel())
}

// A consumer on channel "threats" subscribes to threat_update, plus a
// wildcard logger. The server pushes one update; the topic handler sees
// it exactly once, the wildcard logger fires once, after the topic
// handler.
func TestThreatUpdateScenario(t *testing.T) {
	c, dialer := newTestClient(t, Options{Channel: ChannelThreats})

	var (
		mu    sync.Mutex
		order []string
		got   struct {
			ID int `json:"id"`
		}
	)

	c.On(TopicThreatUpdate, func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "handler")
		_ = m.DecodeData(&got)
	})
	c.On(TopicWildcard, func(Message) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "logger")
	})

	c.Connect()
	trans := awaitTransport(t, dialer)
	require.Eventually(t, c.IsConnected, awaitTimeout, awaitTick)

	trans.push([]byte(`{"type":"threat_update","data":{"id":7},"timestamp":"2026-08-29T10:00:00"}`))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, awaitTimeout, awaitTick)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"handler", "logger"}, order)
	require.Equal(t, 7, got.ID)
}

func TestUnsubscribedHandlerReceivesNothing(t *testing.T) {
	c, dialer := newTestClient(t, Options{})

	var calls int
	var mu sync.Mutex
	unsub := c.On(TopicTrackingUpdate, func(Message) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	done := make(chan Message, 4)
	c.On(TopicWildcard, func(m Message) { done <- m })

	c.Connect()
	trans := awaitTransport(t, dialer)
	require.Eventually(t, c.IsConnected, awaitTimeout, awaitTick)

	trans.pushMessage(Message{Type: TopicTrackingUpdate})
	<-done

	unsub()
	unsub() // second call is a no-op

	trans.pushMessage(Message{Type: TopicTrackingUpdate})
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestControlFrameSenders(t *testing.T) {
	c, dialer := newTestClient(t, Options{})

	c.Connect()
	trans := awaitTransport(t, dialer)
	require.Eventually(t, c.IsConnected, awaitTimeout, awaitTick)

	c.SubscribeChannel(ChannelTracking)
	c.UnsubscribeChannel(ChannelTracking)
	c.RequestStats()

	require.Eventually(t, func() bool {
		return len(trans.sentFrames()) == 3
	}, awaitTimeout, awaitTick)

	frames := trans.sentFrames()
	require.JSONEq(t, `{"type":"subscribe","channel":"tracking"}`, string(frames[0]))
	require.JSONEq(t, `{"type":"unsubscribe","channel":"tracking"}`, string(frames[1]))
	require.JSONEq(t, `{"type":"get_stats"}`, string(frames[2]))
}

func TestDistinctChannelsAreIsolated(t *testing.T) {
	threats, threatsDialer := newTestClient(t, Options{Channel: ChannelThreats})
	tracking, trackingDialer := newTestClient(t, Options{Channel: ChannelTracking})

	var mu sync.Mutex
	var seen []string
	threats.On(TopicWildcard, func(m Message) {
		mu.Lock()
		seen = append(seen, "threats:"+m.Type)
		mu.Unlock()
	})
	tracking.On(TopicWildcard, func(m Message) {
		mu.Lock()
		seen = append(seen, "tracking:"+m.Type)
		mu.Unlock()
	})

	threats.Connect()
	tracking.Connect()
	threatsTrans := awaitTransport(t, threatsDialer)
	awaitTransport(t, trackingDialer)
	require.Eventually(t, threats.IsConnected, awaitTimeout, awaitTick)
	require.Eventually(t, tracking.IsConnected, awaitTimeout, awaitTick)

	threatsTrans.pushMessage(Message{Type: TopicThreatUpdate})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, awaitTimeout, awaitTick)

	threats.Disconnect()
	require.True(t, tracking.IsConnected(), "disconnecting one channel leaves others alone")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"threats:threat_update"}, seen)
}

func TestDeliveryOrderFollowsArrivalOrder(t *testing.T) {
	c, dialer := newTestClient(t, Options{})

	var mu sync.Mutex
	var ids []int
	c.On(TopicWildcard, func(m Message) {
		var payload struct {
			Seq int `json:"seq"`
		}
		if err := m.DecodeData(&payload); err == nil {
			mu.Lock()
			ids = append(ids, payload.Seq)
			mu.Unlock()
		}
	})

	c.Connect()
	trans := awaitTransport(t, dialer)
	require.Eventually(t, c.IsConnected, awaitTimeout, awaitTick)

	const n = 50
	for i := 0; i < n; i++ {
		data, _ := json.Marshal(map[string]int{"seq": i})
		trans.pushMessage(Message{Type: "tracking_update", Data: data})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ids) == n
	}, awaitTimeout, awaitTick)

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		require.Equal(t, i, ids[i])
	}
}

func TestWelcomeFrameDispatchesLikeAnyOther(t *testing.T) {
	c, dialer := newTestClient(t, Options{})

	welcome := make(chan Message, 1)
	c.On(TopicConnection, func(m Message) { welcome <- m })

	c.Connect()
	trans := awaitTransport(t, dialer)
	require.Eventually(t, c.IsConnected, awaitTimeout, awaitTick)

	trans.pushMessage(Message{
		Type: TopicConnection,
		Text: "Connected to channel: all",
	})

	select {
	case m := <-welcome:
		require.Contains(t, m.Text, "Connected")
	case <-time.After(awaitTimeout):
		t.Fatal("welcome frame never dispatched")
	}
}
