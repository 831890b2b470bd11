package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/hub"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/registry"
)

func newTestHub(t *testing.T) (*hub.Hub, *registry.Registry) {
	t.Helper()

	logger := logging.New(logging.Config{Level: "error"})
	reg := registry.New()

	h := hub.New(reg, hub.Options{
		SendTimeout: time.Second,
		Logger:      logger,
	})
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { h.Stop() })

	return h, reg
}

func chatFrames(c *fakeClient) []*domain.Frame {
	return c.framesOfType(domain.FrameTypeChat)
}

func TestBroadcastDeliversToAllClients(t *testing.T) {
	h, reg := newTestHub(t)

	alice := newFakeClient("c1")
	bob := newFakeClient("c2")
	require.NoError(t, reg.Register(alice, "alice"))
	require.NoError(t, reg.Register(bob, "bob"))

	require.NoError(t, h.Broadcast(domain.NewChatFrame("alice", "hello")))

	require.Eventually(t, func() bool {
		return len(chatFrames(alice)) == 1 && len(chatFrames(bob)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := chatFrames(bob)[0]
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "hello", got.Message)
}

func TestAnnounceJoinEmitsNoticeAndUserList(t *testing.T) {
	h, reg := newTestHub(t)

	alice := newFakeClient("c1")
	bob := newFakeClient("c2")
	require.NoError(t, reg.Register(alice, "alice"))
	require.NoError(t, reg.Register(bob, "bob"))

	require.NoError(t, h.AnnounceJoin("bob"))

	require.Eventually(t, func() bool {
		return len(chatFrames(alice)) == 1 && len(alice.framesOfType(domain.FrameTypeUserList)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	notice := chatFrames(alice)[0]
	assert.Equal(t, domain.ServerSender, notice.Sender)
	assert.Equal(t, "bob joined the chat", notice.Message)

	list := alice.framesOfType(domain.FrameTypeUserList)[0]
	assert.ElementsMatch(t, []string{"alice", "bob"}, list.Users)
}

func TestBrokenClientIsReapedWithoutDisruptingOthers(t *testing.T) {
	h, reg := newTestHub(t)

	alice := newFakeClient("c1")
	bob := newFakeClient("c2")
	carol := newFakeClient("c3")
	require.NoError(t, reg.Register(alice, "alice"))
	require.NoError(t, reg.Register(bob, "bob"))
	require.NoError(t, reg.Register(carol, "carol"))

	bob.breakConnection()

	require.NoError(t, h.Broadcast(domain.NewChatFrame("alice", "still here?")))

	// The surviving peers receive the original frame, then the leave notice
	// for bob and a refreshed user list.
	require.Eventually(t, func() bool {
		return len(chatFrames(alice)) == 2 && len(chatFrames(carol)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, bob.isClosed())
	assert.Equal(t, 2, reg.Len())

	leave := chatFrames(alice)[1]
	assert.Equal(t, domain.ServerSender, leave.Sender)
	assert.Equal(t, "bob left the chat", leave.Message)

	require.Eventually(t, func() bool {
		return len(alice.framesOfType(domain.FrameTypeUserList)) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	lists := alice.framesOfType(domain.FrameTypeUserList)
	assert.ElementsMatch(t, []string{"alice", "carol"}, lists[len(lists)-1].Users)
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	h, reg := newTestHub(t)

	alice := newFakeClient("c1")
	bob := newFakeClient("c2")
	require.NoError(t, reg.Register(alice, "alice"))
	require.NoError(t, reg.Register(bob, "bob"))

	require.NoError(t, h.Disconnect(bob))

	require.Eventually(t, func() bool {
		return len(chatFrames(alice)) == 1 && len(alice.framesOfType(domain.FrameTypeUserList)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, bob.isClosed())
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, "bob left the chat", chatFrames(alice)[0].Message)
	assert.Equal(t, []string{"alice"}, alice.framesOfType(domain.FrameTypeUserList)[0].Users)
}

func TestDisconnectUnknownClientIsIdempotent(t *testing.T) {
	h, reg := newTestHub(t)

	alice := newFakeClient("c1")
	require.NoError(t, reg.Register(alice, "alice"))

	stranger := newFakeClient("c9")
	require.NoError(t, h.Disconnect(stranger))
	require.NoError(t, h.Disconnect(stranger))

	require.Eventually(t, func() bool { return stranger.isClosed() }, 2*time.Second, 10*time.Millisecond)

	// No departure notice for a client that was never registered.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, chatFrames(alice))
	assert.Equal(t, 1, reg.Len())
}

func TestStatsCountersTrackDelivery(t *testing.T) {
	h, reg := newTestHub(t)

	alice := newFakeClient("c1")
	bob := newFakeClient("c2")
	require.NoError(t, reg.Register(alice, "alice"))
	require.NoError(t, reg.Register(bob, "bob"))

	bob.breakConnection()

	require.NoError(t, h.Broadcast(domain.NewChatFrame("alice", "ping")))

	require.Eventually(t, func() bool {
		stats := h.Stats()
		return stats.FramesBroadcast >= 1 && stats.DeliveryFailures >= 1
	}, 2*time.Second, 10*time.Millisecond)

	stats := h.Stats()
	assert.GreaterOrEqual(t, stats.FramesDelivered, int64(1))
	assert.GreaterOrEqual(t, stats.Uptime, float64(0))
}
