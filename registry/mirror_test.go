package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// indexSink adapts an Index to the Sink interface.
type indexSink struct{ *Index }

func (s indexSink) Register(c Client)              { s.Add(c) }
func (s indexSink) DeregisterExact(c Client) error { return s.RemoveExact(c) }

func runMirror(t *testing.T, sink Sink, snapshots ...[]Client) {
	t.Helper()

	updates := make(chan []Client, len(snapshots))
	for _, snap := range snapshots {
		updates <- snap
	}
	close(updates)

	done := make(chan struct{})
	go func() {
		Mirror(context.Background(), updates, sink, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not return after updates closed")
	}
}

func TestMirrorAppliesDiffs(t *testing.T) {
	x := NewIndex()
	austin := NewClient("10.0.0.1:80", "US", "TX", "Austin")
	dallas := NewClient("10.0.0.2:80", "US", "TX", "Dallas")
	lima := NewClient("10.0.0.4:80", "Peru", "Lima", "Lima")

	runMirror(t, indexSink{x},
		[]Client{austin, dallas},
		[]Client{dallas, lima},
	)

	assert.ElementsMatch(t, []Client{dallas, lima}, x.Snapshot())
}

func TestMirrorReplacesChangedClient(t *testing.T) {
	x := NewIndex()
	austin := NewClient("10.0.0.1:80", "US", "TX", "Austin")
	moved := austin
	moved.City = "Round Rock"

	runMirror(t, indexSink{x}, []Client{austin}, []Client{moved})

	require.Equal(t, 1, x.Len())
	got, ok := x.Lookup(austin.ID)
	require.True(t, ok)
	assert.Equal(t, "Round Rock", got.City)

	_, err := x.Select(Filter{Country: Wildcard, State: Wildcard, City: "Austin"}, uniformPicker{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirrorLeavesLocalClients(t *testing.T) {
	x := NewIndex()
	local := NewClient("10.0.0.8:80", "US", "NJ", "Hoboken")
	x.Add(local)

	remote := NewClient("10.0.0.1:80", "US", "TX", "Austin")
	runMirror(t, indexSink{x}, []Client{remote}, []Client{})

	assert.Equal(t, []Client{local}, x.Snapshot())
}

func TestMirrorLeavesLocalClientWithSharedID(t *testing.T) {
	x := NewIndex()
	local := Client{ID: "shared", Addr: "10.0.0.8:80", Country: "US", State: "NJ", City: "Hoboken"}
	x.Add(local)

	remote := Client{ID: "shared", Addr: "10.0.0.1:80", Country: "US", State: "TX", City: "Austin"}
	runMirror(t, indexSink{x}, []Client{remote}, []Client{})

	assert.Equal(t, []Client{local}, x.Snapshot())
	_, err := x.Select(Filter{Country: Wildcard, State: Wildcard, City: "Austin"}, uniformPicker{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirrorSkipsClientsWithoutID(t *testing.T) {
	x := NewIndex()
	runMirror(t, indexSink{x}, []Client{{Country: "US", State: "TX", City: "Austin"}})
	assert.Equal(t, 0, x.Len())
}

func TestMirrorStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Mirror(ctx, make(chan []Client), indexSink{NewIndex()}, zap.NewNop())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not stop on cancel")
	}
}
