package queue

import (
	"context"
	"time"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ids"
)

// ReceiveInput is the validated-before-dequeue input to ReceiveMessage.
type ReceiveInput struct {
	MaxNumberOfMessages int  // 1..10, default 1
	WaitTimeSeconds     int  // 0..20, default queue's ReceiveMessageWaitTimeSeconds
	VisibilityTimeout   *int // nil = use queue default, else 0..43200
	AttributeNames      []string
}

// ReceivedMessage is one message handed back from ReceiveMessage, with
// its minted receipt handle.
type ReceivedMessage struct {
	*Message
	ReceiptHandle string
}

// ResolveDLQ looks up a queue by ARN, for dead-letter redrive. Store's
// ResolveDLQByArn satisfies this.
type ResolveDLQ func(arn string) *Queue

func validateReceiveInput(in ReceiveInput) error {
	if in.MaxNumberOfMessages < 1 || in.MaxNumberOfMessages > 10 {
		return ferr.NewInvalidParameter("InvalidParameterValue",
			"Value for parameter MaxNumberOfMessages is invalid. Reason: Must be between 1 and 10.")
	}
	if in.WaitTimeSeconds < 0 || in.WaitTimeSeconds > 20 {
		return ferr.NewInvalidParameter("InvalidParameterValue",
			"Value for parameter WaitTimeSeconds is invalid. Reason: Must be between 0 and 20.")
	}
	if in.VisibilityTimeout != nil && (*in.VisibilityTimeout < 0 || *in.VisibilityTimeout > 43200) {
		return ferr.NewInvalidParameter("InvalidParameterValue",
			"Value for parameter VisibilityTimeout is invalid. Reason: Must be between 0 and 43200.")
	}
	return nil
}

// ReceiveMessage dequeues up to MaxNumberOfMessages ready messages,
// long-polling up to WaitTimeSeconds when none are immediately
// available, per spec.md §4.2 and §4.5. resolveDLQ is consulted when a
// message's post-increment receive count would exceed the queue's
// RedrivePolicy.MaxReceiveCount: that message is redirected to the
// dead-letter queue instead of being returned.
func (q *Queue) ReceiveMessage(ctx context.Context, clk interface{ Now() time.Time }, resolveDLQ ResolveDLQ, in ReceiveInput) ([]ReceivedMessage, error) {
	if err := validateReceiveInput(in); err != nil {
		return nil, err
	}

	out := q.tryReceive(in, resolveDLQ)
	if len(out) > 0 || in.WaitTimeSeconds == 0 {
		return out, nil
	}

	q.mu.Lock()
	w := q.registerWaiterLocked()
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.unregisterWaiterLocked(w)
		q.mu.Unlock()
	}()

	timer := time.NewTimer(time.Duration(in.WaitTimeSeconds) * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-timer.C:
			return q.tryReceive(in, resolveDLQ), nil
		case _, ok := <-w.wake:
			if !ok {
				return nil, nil
			}
			if out := q.tryReceive(in, resolveDLQ); len(out) > 0 {
				return out, nil
			}
		}
	}
}

// tryReceive attempts one dequeue pass without suspending. Messages
// whose post-increment receive count would exceed the configured
// MaxReceiveCount are diverted to the dead-letter queue instead of being
// returned, and do not count against MaxNumberOfMessages.
func (q *Queue) tryReceive(in ReceiveInput, resolveDLQ ResolveDLQ) []ReceivedMessage {
	redirects := q.pickMessagesLocked(in)
	for _, r := range redirects.moves {
		q.record("dlq_move", r.message.ID, r.message.Body)
		if resolveDLQ == nil {
			continue
		}
		if target := resolveDLQ(r.targetArn); target != nil {
			target.enqueueRedrivenMessage(r.message)
		}
	}
	for _, m := range redirects.delivered {
		q.record("consume", m.ID, m.Body)
	}
	return redirects.delivered
}

type pickResult struct {
	delivered []ReceivedMessage
	moves     []redriveMove
}

func (q *Queue) pickMessagesLocked(in ReceiveInput) pickResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.hasAvailableMessagesLocked() {
		return pickResult{}
	}

	visibility := q.Attrs.VisibilityTimeout
	if in.VisibilityTimeout != nil {
		visibility = *in.VisibilityTimeout
	}

	now := time.Now()
	deadline := now.Add(time.Duration(visibility) * time.Second)

	var result pickResult
	var remaining []*Message
	seenGroups := make(map[string]bool)

	for _, m := range q.ready {
		if len(result.delivered) >= in.MaxNumberOfMessages {
			remaining = append(remaining, m)
			continue
		}
		if q.Kind == FIFO {
			if q.fifo.lockedGroups[m.MessageGroupID] || seenGroups[m.MessageGroupID] {
				remaining = append(remaining, m)
				continue
			}
		}

		prospectiveCount := m.ReceiveCount + 1
		if q.Attrs.RedrivePolicy != nil && prospectiveCount > q.Attrs.RedrivePolicy.MaxReceiveCount {
			if q.Kind == FIFO {
				seenGroups[m.MessageGroupID] = true
			}
			m.DeadLetterSourceArn = q.Arn()
			result.moves = append(result.moves, redriveMove{
				targetArn: q.Attrs.RedrivePolicy.DeadLetterTargetArn,
				message:   m,
			})
			continue
		}

		if q.Kind == FIFO {
			seenGroups[m.MessageGroupID] = true
			q.fifo.lockedGroups[m.MessageGroupID] = true
		}

		if m.FirstReceiveTimestamp == nil {
			t := now
			m.FirstReceiveTimestamp = &t
		}
		m.ReceiveCount = prospectiveCount

		handle := ids.NewReceiptHandle()
		q.inflight[handle] = &InFlightEntry{
			Message:            m,
			ReceiptHandle:      handle,
			VisibilityDeadline: deadline,
			GroupID:            m.MessageGroupID,
			ReceivedAt:         now,
		}
		result.delivered = append(result.delivered, ReceivedMessage{Message: m, ReceiptHandle: handle})
	}
	q.ready = remaining

	return result
}

// DeleteMessage removes an in-flight message identified by its receipt
// handle. Deleting a FIFO message's handle also unlocks its group.
// An unknown or expired handle is a non-error no-op per spec.md §4.2.
func (q *Queue) DeleteMessage(receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.inflight[receiptHandle]
	if !ok {
		return nil
	}
	delete(q.inflight, receiptHandle)
	if q.Kind == FIFO {
		delete(q.fifo.lockedGroups, entry.GroupID)
	}
	q.wakeWaitersLocked()
	q.record("delete", entry.Message.ID, entry.Message.Body)
	return nil
}

// DeleteMessageBatch applies DeleteMessage independently to each entry.
func (q *Queue) DeleteMessageBatch(handles map[string]string) (ok []string, failed map[string]error) {
	failed = make(map[string]error)
	for id, handle := range handles {
		if err := q.DeleteMessage(handle); err != nil {
			failed[id] = err
			continue
		}
		ok = append(ok, id)
	}
	return ok, failed
}

// ChangeMessageVisibility extends or shortens the visibility deadline of
// an in-flight message. A timeout of 0 makes it immediately receivable
// again (and, for FIFO, unlocks its group).
func (q *Queue) ChangeMessageVisibility(receiptHandle string, timeoutSeconds int) error {
	if timeoutSeconds < 0 || timeoutSeconds > 43200 {
		return ferr.NewInvalidParameter("InvalidParameterValue",
			"Value for parameter VisibilityTimeout is invalid. Reason: Must be between 0 and 43200.")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.inflight[receiptHandle]
	if !ok {
		return ferr.NewInvalidParameter("ReceiptHandleIsInvalid",
			"Message does not exist or is not available for visibility timeout change")
	}

	if timeoutSeconds == 0 {
		delete(q.inflight, receiptHandle)
		if q.Kind == FIFO {
			delete(q.fifo.lockedGroups, entry.GroupID)
		}
		q.ready = append([]*Message{entry.Message}, q.ready...)
		q.wakeWaitersLocked()
		return nil
	}

	entry.VisibilityDeadline = time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	return nil
}

// PurgeQueue discards every ready, delayed and in-flight message. FIFO
// dedup state and group locks are also cleared. Wakes no waiters — the
// queue is still empty afterward.
func (q *Queue) PurgeQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ready = nil
	q.delayed = nil
	q.inflight = make(map[string]*InFlightEntry)
	if q.Kind == FIFO {
		q.fifo.lockedGroups = make(map[string]bool)
		q.fifo.dedup = make(map[string]dedupEntry)
	}
}
