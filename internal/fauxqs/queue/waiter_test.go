package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_LongPoll_WakesOnSend(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("longpoll", DefaultAttributes(), nil)
	require.NoError(t, err)

	resultCh := make(chan []ReceivedMessage, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msgs, _ := q.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 1, WaitTimeSeconds: 5})
		resultCh <- msgs
	}()

	time.Sleep(50 * time.Millisecond)
	_, err = q.SendMessage(SendInput{Body: "arrived"})
	require.NoError(t, err)

	select {
	case msgs := <-resultCh:
		require.Len(t, msgs, 1)
		assert.Equal(t, "arrived", msgs[0].Body)
	case <-time.After(2 * time.Second):
		t.Fatal("long-poll receive was not woken by send")
	}
}

func TestQueue_LongPoll_ReturnsEmptyOnTimeout(t *testing.T) {
	s := NewStore("us-east-1")
	q, err := s.CreateQueue("timeout", DefaultAttributes(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	msgs, err := q.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 1, WaitTimeSeconds: 1})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestStore_DeleteQueue_WakesWaitersEmpty(t *testing.T) {
	s := NewStore("us-east-1")
	_, err := s.CreateQueue("deleteme", DefaultAttributes(), nil)
	require.NoError(t, err)
	q, err := s.GetQueue("deleteme")
	require.NoError(t, err)

	resultCh := make(chan []ReceivedMessage, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msgs, _ := q.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 1, WaitTimeSeconds: 5})
		resultCh <- msgs
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.DeleteQueue("deleteme"))

	select {
	case msgs := <-resultCh:
		assert.Empty(t, msgs)
	case <-time.After(2 * time.Second):
		t.Fatal("long-poll receive was not woken by queue deletion")
	}
}
