package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueue_Redrive_MovesToDLQAfterMaxReceiveCountExceeded exercises the
// full cycle: a message is received, its visibility lapses without
// deletion, and the receive that would push its count past
// MaxReceiveCount diverts it to the dead-letter queue instead of
// returning it to the caller.
func TestQueue_Redrive_MovesToDLQAfterMaxReceiveCountExceeded(t *testing.T) {
	s := NewStore("us-east-1")

	dlq, err := s.CreateQueue("dead-letters", DefaultAttributes(), nil)
	require.NoError(t, err)

	srcAttrs := DefaultAttributes()
	srcAttrs.VisibilityTimeout = 10
	srcAttrs.RedrivePolicy = &RedrivePolicy{
		DeadLetterTargetArn: dlq.Arn(),
		MaxReceiveCount:     1,
	}
	src, err := s.CreateQueue("with-dlq", srcAttrs, nil)
	require.NoError(t, err)

	_, err = src.SendMessage(SendInput{Body: "poison"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// First receive succeeds: post-increment count is 1, within the
	// MaxReceiveCount of 1.
	got, err := src.ReceiveMessage(ctx, realClock{}, s.ResolveDLQByArn, ReceiveInput{MaxNumberOfMessages: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Let visibility lapse without deleting.
	src.processTimers(time.Now().Add(11 * time.Second))

	// The next receive would push the count to 2, exceeding
	// MaxReceiveCount: the message is redirected to the DLQ instead of
	// being returned.
	got2, err := src.ReceiveMessage(ctx, realClock{}, s.ResolveDLQByArn, ReceiveInput{MaxNumberOfMessages: 1})
	require.NoError(t, err)
	assert.Empty(t, got2)

	ready, inflight, _ := src.Counts()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 0, inflight)

	dlqReady, _, _ := dlq.Counts()
	assert.Equal(t, 1, dlqReady)

	dlqGot, err := dlq.ReceiveMessage(ctx, realClock{}, nil, ReceiveInput{MaxNumberOfMessages: 1})
	require.NoError(t, err)
	require.Len(t, dlqGot, 1)
	assert.Equal(t, "poison", dlqGot[0].Body)
	assert.Equal(t, src.Arn(), dlqGot[0].DeadLetterSourceArn)
}

func TestQueue_Redrive_UnknownTargetDropsMessage(t *testing.T) {
	s := NewStore("us-east-1")

	srcAttrs := DefaultAttributes()
	srcAttrs.VisibilityTimeout = 5
	srcAttrs.RedrivePolicy = &RedrivePolicy{
		DeadLetterTargetArn: "arn:aws:sqs:us-east-1:000000000000:does-not-exist",
		MaxReceiveCount:     1,
	}
	src, err := s.CreateQueue("orphan-dlq", srcAttrs, nil)
	require.NoError(t, err)

	_, err = src.SendMessage(SendInput{Body: "gone"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := src.ReceiveMessage(ctx, realClock{}, s.ResolveDLQByArn, ReceiveInput{MaxNumberOfMessages: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	src.processTimers(time.Now().Add(6 * time.Second))

	got2, err := src.ReceiveMessage(ctx, realClock{}, s.ResolveDLQByArn, ReceiveInput{MaxNumberOfMessages: 1})
	require.NoError(t, err)
	assert.Empty(t, got2, "unresolvable DLQ target still removes the message from the source")

	ready, inflight, _ := src.Counts()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 0, inflight)
}
