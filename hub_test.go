package wsfeed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *fakeDialer) {
	t.Helper()

	dialer := newFakeDialer()
	h := NewHub(Options{
		Host:      "ops.example.test",
		Dialer:    dialer.dial,
		Reconnect: fastPolicy(),
	})
	t.Cleanup(h.Close)
	return h, dialer
}

func TestHubReturnsSameClientPerChannel(t *testing.T) {
	h, _ := newTestHub(t)

	threats := h.Channel(ChannelThreats)
	require.Same(t, threats, h.Channel(ChannelThreats))
	require.Equal(t, ChannelThreats, threats.Channel())

	tracking := h.Channel(ChannelTracking)
	require.NotSame(t, threats, tracking)

	require.ElementsMatch(t, []string{ChannelThreats, ChannelTracking}, h.Channels())
}

func TestHubEmptyNameMeansDefaultChannel(t *testing.T) {
	h, _ := newTestHub(t)

	c := h.Channel("")
	require.Equal(t, DefaultChannel, c.Channel())
	require.Same(t, c, h.Channel(ChannelAll))
}

func TestHubCloseDisconnectsEverything(t *testing.T) {
	h, dialer := newTestHub(t)

	threats := h.Channel(ChannelThreats)
	tracking := h.Channel(ChannelTracking)
	threats.Connect()
	tracking.Connect()
	awaitTransport(t, dialer)
	awaitTransport(t, dialer)
	require.Eventually(t, threats.IsConnected, awaitTimeout, awaitTick)
	require.Eventually(t, tracking.IsConnected, awaitTimeout, awaitTick)

	h.Close()

	require.False(t, threats.IsConnected())
	require.False(t, tracking.IsConnected())
	require.Empty(t, h.Channels())
}
