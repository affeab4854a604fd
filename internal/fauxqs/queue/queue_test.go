package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func TestStore_CreateQueue_IdempotentAndConflict(t *testing.T) {
	s := NewStore("us-east-1")

	q1, err := s.CreateQueue("orders", DefaultAttributes(), nil)
	require.NoError(t, err)

	q2, err := s.CreateQueue("orders", DefaultAttributes(), nil)
	require.NoError(t, err)
	assert.Same(t, q1, q2)

	other := DefaultAttributes()
	other.DelaySeconds = 5
	_, err = s.CreateQueue("orders", other, nil)
	require.Error(t, err)
}

func TestStore_CreateQueue_FIFOSuffixDetection(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("orders.fifo", DefaultAttributes(), nil)
	require.NoError(t, err)
	assert.Equal(t, FIFO, q.Kind)
}

func TestQueue_SendAndReceive_Basic(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("basic", DefaultAttributes(), nil)
	require.NoError(t, err)

	res, err := q.SendMessage(SendInput{Body: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Body)

	ready, inflight, delayed := q.Counts()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 1, inflight)
	assert.Equal(t, 0, delayed)

	require.NoError(t, q.DeleteMessage(got[0].ReceiptHandle))
	ready, inflight, delayed = q.Counts()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 0, inflight)
	assert.Equal(t, 0, delayed)
}

func TestQueue_Send_DelayedMessageNotImmediatelyReady(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("delayed", DefaultAttributes(), nil)
	require.NoError(t, err)

	delay := 1
	_, err = q.SendMessage(SendInput{Body: "later", DelaySeconds: &delay})
	require.NoError(t, err)

	ready, _, delayedCount := q.Counts()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 1, delayedCount)

	q.processTimers(time.Now().Add(2 * time.Second))
	ready, _, delayedCount = q.Counts()
	assert.Equal(t, 1, ready)
	assert.Equal(t, 0, delayedCount)
}

func TestQueue_ChangeMessageVisibility_ZeroMakesImmediatelyReceivable(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("vis", DefaultAttributes(), nil)
	require.NoError(t, err)

	_, err = q.SendMessage(SendInput{Body: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, q.ChangeMessageVisibility(got[0].ReceiptHandle, 0))
	ready, inflight, _ := q.Counts()
	assert.Equal(t, 1, ready)
	assert.Equal(t, 0, inflight)
}

func TestQueue_SendMessageBatch_DuplicateIDsRejected(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("batch", DefaultAttributes(), nil)
	require.NoError(t, err)

	results, failures, err := q.SendMessageBatch([]BatchEntry{
		{ID: "a", SendInput: SendInput{Body: "ok"}},
		{ID: "a", SendInput: SendInput{Body: "dup-id"}},
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Nil(t, failures)
}

func TestQueue_PurgeQueue(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("purge", DefaultAttributes(), nil)
	require.NoError(t, err)

	_, err = q.SendMessage(SendInput{Body: "a"})
	require.NoError(t, err)
	_, err = q.SendMessage(SendInput{Body: "b"})
	require.NoError(t, err)

	q.PurgeQueue()
	ready, inflight, delayed := q.Counts()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 0, inflight)
	assert.Equal(t, 0, delayed)
}
