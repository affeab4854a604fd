// Package queue implements the per-region Queue Store: queue creation,
// send/receive/delete/visibility, FIFO group locking and dedup, and
// dead-letter redrive.
package queue

import (
	"sort"
	"sync"
	"time"
)

// Kind distinguishes standard from FIFO queues, derived from the
// ".fifo" name suffix at creation time.
type Kind int

const (
	Standard Kind = iota
	FIFO
)

// MessageAttributeValue is one SQS message attribute.
type MessageAttributeValue struct {
	DataType    string
	StringValue string
	BinaryValue []byte
}

// RedrivePolicy configures dead-letter redrive for a queue.
type RedrivePolicy struct {
	DeadLetterTargetArn string
	MaxReceiveCount     int
}

// Attributes holds a queue's configuration attributes, per spec.md §3
// and the range table in §6.
type Attributes struct {
	VisibilityTimeout             int // seconds, 0..43200
	DelaySeconds                  int // seconds, 0..900
	MaximumMessageSize            int // bytes, 1024..1048576
	MessageRetentionPeriod        int // seconds, 60..1209600
	ReceiveMessageWaitTimeSeconds int // seconds, 0..20
	KmsMasterKeyID                string
	KmsDataKeyReusePeriodSeconds  int // seconds, 60..86400
	ContentBasedDeduplication     bool
	RedrivePolicy                 *RedrivePolicy
	Policy                        string
}

// DefaultAttributes returns the AWS-documented defaults for a new queue.
func DefaultAttributes() Attributes {
	return Attributes{
		VisibilityTimeout:             30,
		DelaySeconds:                  0,
		MaximumMessageSize:            262144,
		MessageRetentionPeriod:        345600,
		ReceiveMessageWaitTimeSeconds: 0,
		KmsDataKeyReusePeriodSeconds:  300,
	}
}

// Message is a single SQS message, owned by exactly one of a queue's
// ready, delayed or inflight collections (invariant 1).
type Message struct {
	ID         string
	Body       string
	Attributes map[string]MessageAttributeValue

	SentTimestamp         time.Time
	FirstReceiveTimestamp *time.Time
	ReceiveCount          int
	SequenceNumber        string // FIFO only
	MessageGroupID        string // FIFO only
	DedupID                string // FIFO only
	DeadLetterSourceArn   string // set when moved here by redrive

	DelayDeadline     *time.Time // nil once promoted to ready
	RetentionDeadline time.Time
}

// InFlightEntry wraps a Message that has been delivered to a consumer
// and not yet deleted, re-released or visibility-expired.
type InFlightEntry struct {
	Message             *Message
	ReceiptHandle       string
	VisibilityDeadline  time.Time
	GroupID             string // "" for standard queues
	ReceivedAt          time.Time
}

// dedupEntry is one row of the FIFO dedup map.
type dedupEntry struct {
	messageID      string
	sequenceNumber string
	expiresAt      time.Time
}

// fifoState is the substructure carried only by FIFO queues.
type fifoState struct {
	dedup        map[string]dedupEntry
	lockedGroups map[string]bool
	sequence     uint64
}

func newFifoState() *fifoState {
	return &fifoState{
		dedup:        make(map[string]dedupEntry),
		lockedGroups: make(map[string]bool),
	}
}

// nextSequenceNumber returns the next monotonic, zero-padded 20-digit
// FIFO sequence number, matching AWS's SequenceNumber format.
func (f *fifoState) nextSequenceNumber() string {
	f.sequence++
	return sequenceString(f.sequence)
}

func sequenceString(n uint64) string {
	const width = 20
	s := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		s[i] = byte('0' + n%10)
		n /= 10
	}
	return string(s)
}

// waiter is a registered long-poll consumer. wake is buffered (cap 1) so
// a send/expiry that arrives between register and select never blocks
// and is never lost.
type waiter struct {
	wake chan struct{}
}

// Queue is one SQS queue: configuration plus the three message
// collections and, for FIFO, dedup/locking state.
type Queue struct {
	mu sync.Mutex

	store *Store // back-reference, for emitting spy events; may be nil in tests

	Name      string
	Region    string
	Kind      Kind
	Attrs     Attributes
	Tags      map[string]string
	CreatedAt time.Time

	ready    []*Message
	delayed  []*Message
	inflight map[string]*InFlightEntry // receipt handle -> entry

	fifo *fifoState

	waiters map[*waiter]struct{}
}

func newQueue(store *Store, name, region string, kind Kind, attrs Attributes) *Queue {
	q := &Queue{
		store:     store,
		Name:      name,
		Region:    region,
		Kind:      kind,
		Attrs:     attrs,
		Tags:      make(map[string]string),
		CreatedAt: time.Now(),
		inflight:  make(map[string]*InFlightEntry),
		waiters:   make(map[*waiter]struct{}),
	}
	if kind == FIFO {
		q.fifo = newFifoState()
	}
	return q
}

// record forwards a spy event to the owning store, if one is attached.
func (q *Queue) record(kind, messageID, body string) {
	if q.store != nil {
		q.store.record(kind, q.Name, messageID, body)
	}
}

// countsLocked returns the derived message counts (invariant 3).
// Must be called with q.mu held.
func (q *Queue) countsLocked() (ready, inflight, delayed int) {
	return len(q.ready), len(q.inflight), len(q.delayed)
}

// Counts returns the derived message counts.
func (q *Queue) Counts() (ready, inflight, delayed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.countsLocked()
}

// hasAvailableMessagesLocked reports whether ReceiveMessage would return
// at least one message right now. For FIFO, a group's ready messages are
// only "available" if the group is not locked.
func (q *Queue) hasAvailableMessagesLocked() bool {
	if q.Kind == Standard {
		return len(q.ready) > 0
	}
	for _, m := range q.ready {
		if !q.fifo.lockedGroups[m.MessageGroupID] {
			return true
		}
	}
	return false
}

// sortedSnapshot is a helper for tests/inspection that want a stable
// ordering over ready messages.
func (q *Queue) sortedSnapshot() []*Message {
	out := append([]*Message(nil), q.ready...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentTimestamp.Before(out[j].SentTimestamp) })
	return out
}

// Snapshot is a pure-read structural dump of a queue's three message
// collections, for the inspection API (spec.md §4.6): it never moves
// messages between states, renews visibility or consumes a token.
type Snapshot struct {
	Ready    []*Message
	Delayed  []*Message
	Inflight []*Message
}

// Snapshot returns the full message-by-state dump backing
// GET /_fauxqs/queues/:name.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Snapshot{
		Ready:   q.sortedSnapshot(),
		Delayed: append([]*Message(nil), q.delayed...),
	}
	for _, e := range q.inflight {
		s.Inflight = append(s.Inflight, e.Message)
	}
	return s
}
