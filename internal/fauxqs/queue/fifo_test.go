package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO_RequiresGroupID(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("g.fifo", DefaultAttributes(), nil)
	require.NoError(t, err)

	_, err = q.SendMessage(SendInput{Body: "x"})
	require.Error(t, err)
}

func TestQueue_FIFO_ContentBasedDeduplication(t *testing.T) {
	s := NewStore("us-east-1")
	attrs := DefaultAttributes()
	attrs.ContentBasedDeduplication = true
	q, err := s.CreateQueue("dedup.fifo", attrs, nil)
	require.NoError(t, err)

	r1, err := q.SendMessage(SendInput{Body: "same", MessageGroupID: "g1"})
	require.NoError(t, err)
	r2, err := q.SendMessage(SendInput{Body: "same", MessageGroupID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, r1.MessageID, r2.MessageID)

	ready, _, _ := q.Counts()
	assert.Equal(t, 1, ready)
}

func TestQueue_FIFO_SequenceNumbersMonotonic(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("seq.fifo", DefaultAttributes(), nil)
	require.NoError(t, err)

	r1, err := q.SendMessage(SendInput{Body: "a", MessageGroupID: "g1", MessageDeduplicationID: "d1"})
	require.NoError(t, err)
	r2, err := q.SendMessage(SendInput{Body: "b", MessageGroupID: "g1", MessageDeduplicationID: "d2"})
	require.NoError(t, err)
	assert.Len(t, r1.SequenceNumber, 20)
	assert.Less(t, r1.SequenceNumber, r2.SequenceNumber)
}

func TestQueue_FIFO_GroupLockedUntilDeleted(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("lock.fifo", DefaultAttributes(), nil)
	require.NoError(t, err)

	_, err = q.SendMessage(SendInput{Body: "a", MessageGroupID: "g1", MessageDeduplicationID: "d1"})
	require.NoError(t, err)
	_, err = q.SendMessage(SendInput{Body: "b", MessageGroupID: "g1", MessageDeduplicationID: "d2"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := q.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 10})
	require.NoError(t, err)
	require.Len(t, got, 1, "only one message per locked group should be returned")
	assert.Equal(t, "a", got[0].Body)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	got2, err := q.ReceiveMessage(ctx2, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 10})
	require.NoError(t, err)
	assert.Empty(t, got2, "group stays locked while first message is in flight")

	require.NoError(t, q.DeleteMessage(got[0].ReceiptHandle))

	ctx3, cancel3 := context.WithTimeout(context.Background(), time.Second)
	defer cancel3()
	got3, err := q.ReceiveMessage(ctx3, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 10})
	require.NoError(t, err)
	require.Len(t, got3, 1)
	assert.Equal(t, "b", got3[0].Body)
}

func TestQueue_FIFO_VisibilityExpiryUnlocksGroupAndRewakesWaiter(t *testing.T) {
	s := NewStore("us-east-1")
	attrs := DefaultAttributes()
	attrs.VisibilityTimeout = 30
	q, err := s.CreateQueue("wake.fifo", attrs, nil)
	require.NoError(t, err)

	_, err = q.SendMessage(SendInput{Body: "a", MessageGroupID: "g1", MessageDeduplicationID: "d1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	resultCh := make(chan []ReceivedMessage, 1)
	go func() {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer waitCancel()
		msgs, _ := q.ReceiveMessage(waitCtx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 1, WaitTimeSeconds: 2})
		resultCh <- msgs
	}()

	time.Sleep(50 * time.Millisecond)
	q.processTimers(time.Now().Add(31 * time.Second))

	select {
	case msgs := <-resultCh:
		require.Len(t, msgs, 1)
		assert.Equal(t, "a", msgs[0].Body)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was never woken after visibility expiry unlocked the group")
	}
}
