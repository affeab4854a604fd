package spy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpy_RecordAndSnapshot(t *testing.T) {
	s := New(4)
	s.Record(Event{Kind: KindPublish, ResourceName: "orders", MessageID: "1"})
	s.Record(Event{Kind: KindConsume, ResourceName: "orders", MessageID: "1"})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, KindPublish, snap[0].Kind)
	assert.Equal(t, KindConsume, snap[1].Kind)
}

func TestSpy_RingBufferEviction(t *testing.T) {
	s := New(2)
	s.Record(Event{MessageID: "1"})
	s.Record(Event{MessageID: "2"})
	s.Record(Event{MessageID: "3"})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "2", snap[0].MessageID)
	assert.Equal(t, "3", snap[1].MessageID)
}

func TestSpy_WaitForMessage_MatchesAlreadyBuffered(t *testing.T) {
	s := New(8)
	s.Record(Event{MessageID: "abc"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, ok := s.WaitForMessage(ctx, func(e Event) bool { return e.MessageID == "abc" })
	require.True(t, ok)
	assert.Equal(t, "abc", e.MessageID)
}

func TestSpy_WaitForMessage_WakesOnFutureEvent(t *testing.T) {
	s := New(8)

	resultCh := make(chan bool, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, ok := s.WaitForMessage(ctx, func(e Event) bool { return e.MessageID == "later" })
		resultCh <- ok
	}()

	time.Sleep(50 * time.Millisecond)
	s.Record(Event{MessageID: "later"})

	select {
	case ok := <-resultCh:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitForMessage was not woken by a matching future event")
	}
}

func TestSpy_Clear_RejectsPendingWaiterButEvictionDoesNot(t *testing.T) {
	s := New(1)

	resultCh := make(chan bool, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, ok := s.WaitForMessage(ctx, func(e Event) bool { return e.MessageID == "never" })
		resultCh <- ok
	}()

	time.Sleep(50 * time.Millisecond)
	s.Record(Event{MessageID: "unrelated-1"})
	s.Record(Event{MessageID: "unrelated-2"}) // evicts unrelated-1

	select {
	case <-resultCh:
		t.Fatal("eviction must not reject a pending waiter")
	case <-time.After(50 * time.Millisecond):
	}

	s.Clear()

	select {
	case ok := <-resultCh:
		assert.False(t, ok, "Clear must reject pending waiters")
	case <-time.After(time.Second):
		t.Fatal("Clear did not reject the pending waiter")
	}
}
