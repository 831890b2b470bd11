package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmaekawa/caster/registry"
)

func TestRegisterRejectsDuplicateConnection(t *testing.T) {
	reg := registry.New()
	client := &fakeClient{id: "conn-1"}

	require.NoError(t, reg.Register(client, "alice"))

	err := reg.Register(client, "alice-again")
	assert.ErrorIs(t, err, registry.ErrAlreadyRegistered)
	assert.Equal(t, 1, reg.Len())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	reg := registry.New()
	client := &fakeClient{id: "conn-1"}
	require.NoError(t, reg.Register(client, "alice"))

	username, ok := reg.Unregister("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	// Concurrent close paths may both attempt removal.
	_, ok = reg.Unregister("conn-1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestUnregisterUnknownConnection(t *testing.T) {
	reg := registry.New()

	_, ok := reg.Unregister("never-registered")
	assert.False(t, ok)
}

func TestDuplicateUsernamesAreAllowed(t *testing.T) {
	reg := registry.New()

	require.NoError(t, reg.Register(&fakeClient{id: "conn-1"}, "alice"))
	require.NoError(t, reg.Register(&fakeClient{id: "conn-2"}, "alice"))

	assert.Equal(t, []string{"alice", "alice"}, reg.Usernames())
}

func TestSnapshotPreservesJoinOrder(t *testing.T) {
	reg := registry.New()

	for i, name := range []string{"alice", "bob", "carol"} {
		require.NoError(t, reg.Register(&fakeClient{id: fmt.Sprintf("conn-%d", i)}, name))
	}

	entries := reg.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "bob", entries[1].Username)
	assert.Equal(t, "carol", entries[2].Username)

	assert.Equal(t, []string{"alice", "bob", "carol"}, reg.Usernames())
}

func TestSnapshotIsImmutableCopy(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(&fakeClient{id: "conn-1"}, "alice"))

	snapshot := reg.Snapshot()
	reg.Unregister("conn-1")

	// The snapshot reflects the instant it was taken.
	require.Len(t, snapshot, 1)
	assert.Equal(t, "alice", snapshot[0].Username)
	assert.Equal(t, 0, reg.Len())
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	reg := registry.New()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := range workers {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			client := &fakeClient{id: id}

			for range 100 {
				assert.NoError(t, reg.Register(client, "user"))
				_ = reg.Snapshot()
				_, ok := reg.Unregister(id)
				assert.True(t, ok)
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}
