package queue

import "time"

const account = "000000000000"

// Arn returns the queue's ARN, using a fixed placeholder account id
// since fauxqs has no IAM concept.
func (q *Queue) Arn() string {
	return "arn:aws:sqs:" + q.Region + ":" + account + ":" + q.Name
}

// redriveMove is a message pulled out of one queue's ready list that must
// be appended to another queue's ready list, after both queues' locks
// have been released. Built by tryReceive, not by processTimers: redrive
// triggers on the receive that would push a message's count past
// MaxReceiveCount, not on visibility expiry itself.
type redriveMove struct {
	targetArn string
	message   *Message
}

// processTimers advances this queue's delayed and inflight state to now:
// delayed messages past their deadline become ready; inflight messages
// past their visibility deadline return to ready (FIFO: at the front of
// the global ready list, and the message group unlocks); ready, delayed
// and inflight entries past retention are dropped; FIFO dedup entries
// past the five-minute window are forgotten.
func (q *Queue) processTimers(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stillDelayed []*Message
	for _, m := range q.delayed {
		if m.RetentionDeadline.Before(now) {
			continue
		}
		if !now.Before(*m.DelayDeadline) {
			m.DelayDeadline = nil
			q.ready = append(q.ready, m)
		} else {
			stillDelayed = append(stillDelayed, m)
		}
	}
	q.delayed = stillDelayed

	for handle, entry := range q.inflight {
		if entry.Message.RetentionDeadline.Before(now) {
			delete(q.inflight, handle)
			if q.Kind == FIFO {
				delete(q.fifo.lockedGroups, entry.GroupID)
			}
			continue
		}
		if now.Before(entry.VisibilityDeadline) {
			continue
		}

		delete(q.inflight, handle)
		if q.Kind == FIFO {
			delete(q.fifo.lockedGroups, entry.GroupID)
		}
		q.ready = append([]*Message{entry.Message}, q.ready...)
	}

	var stillReady []*Message
	for _, m := range q.ready {
		if !m.RetentionDeadline.Before(now) {
			stillReady = append(stillReady, m)
		}
	}
	q.ready = stillReady

	if q.Kind == FIFO {
		for key, entry := range q.fifo.dedup {
			if now.After(entry.expiresAt) {
				delete(q.fifo.dedup, key)
			}
		}
	}

	q.wakeWaitersLocked()
}

// enqueueRedrivenMessage appends a message arriving via dead-letter
// redrive to this queue's ready list as a fresh message: receive count
// and group lock state reset, retention measured from arrival here, per
// the "moved ... by SendMessage with preserved body, attributes, and
// message id" rule.
func (q *Queue) enqueueRedrivenMessage(m *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	m.ReceiveCount = 0
	m.FirstReceiveTimestamp = nil
	m.SentTimestamp = time.Now()
	m.RetentionDeadline = m.SentTimestamp.Add(time.Duration(q.Attrs.MessageRetentionPeriod) * time.Second)

	if q.Kind == FIFO && m.MessageGroupID == "" {
		m.MessageGroupID = "__redriven__"
	}

	q.ready = append(q.ready, m)
	q.wakeWaitersLocked()
	q.record("publish", m.ID, m.Body)
}
