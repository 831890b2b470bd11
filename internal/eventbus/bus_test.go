package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToTypedSubscribers(t *testing.T) {
	bus := NewInMemoryBus(16)

	var joined []*Event
	bus.Subscribe(EventClientJoined, func(event *Event) {
		joined = append(joined, event)
	})

	var left int
	bus.Subscribe(EventClientLeft, func(*Event) { left++ })

	bus.Publish(NewEvent(EventClientJoined, "hub", PresenceData{Username: "alice"}))

	require.Len(t, joined, 1)
	assert.Equal(t, EventClientJoined, joined[0].Type)
	assert.Equal(t, "hub", joined[0].Source)
	assert.Equal(t, PresenceData{Username: "alice"}, joined[0].Data)
	assert.Zero(t, left)
}

func TestSubscribeAllSeesEveryEvent(t *testing.T) {
	bus := NewInMemoryBus(16)

	var all []EventType
	bus.SubscribeAll(func(event *Event) {
		all = append(all, event.Type)
	})

	bus.Publish(NewEvent(EventClientJoined, "hub", PresenceData{Username: "alice"}))
	bus.Publish(NewEvent(EventMessageBroadcast, "hub", MessageData{Sender: "alice", Content: "hi"}))

	assert.Equal(t, []EventType{EventClientJoined, EventMessageBroadcast}, all)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewInMemoryBus(16)

	var count int
	id := bus.Subscribe(EventClientJoined, func(*Event) { count++ })

	bus.Publish(NewEvent(EventClientJoined, "hub", PresenceData{Username: "alice"}))
	bus.Unsubscribe(id)
	bus.Publish(NewEvent(EventClientJoined, "hub", PresenceData{Username: "bob"}))

	assert.Equal(t, 1, count)
}

func TestPublishAsyncDeliversThroughRunningBus(t *testing.T) {
	bus := NewInMemoryBus(16)
	bus.Start(context.Background())
	defer bus.Stop()

	var delivered atomic.Int64
	var mu sync.Mutex
	var last *Event

	bus.Subscribe(EventMessageBroadcast, func(event *Event) {
		mu.Lock()
		last = event
		mu.Unlock()
		delivered.Add(1)
	})

	bus.PublishAsync(NewEvent(EventMessageBroadcast, "hub", MessageData{Sender: "alice", Content: "hello"}))

	require.Eventually(t, func() bool { return delivered.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, MessageData{Sender: "alice", Content: "hello"}, last.Data)
}

func TestPublishAsyncDropsWhenBufferFull(t *testing.T) {
	// Never started, so nothing drains the buffer.
	bus := NewInMemoryBus(1)

	bus.PublishAsync(NewEvent(EventClientJoined, "hub", PresenceData{Username: "alice"}))

	done := make(chan struct{})
	go func() {
		bus.PublishAsync(NewEvent(EventClientJoined, "hub", PresenceData{Username: "bob"}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishAsync blocked on a full buffer")
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	a := NewEvent(EventClientJoined, "hub", nil)
	b := NewEvent(EventClientJoined, "hub", nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
