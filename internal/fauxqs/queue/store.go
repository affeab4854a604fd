package queue

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
)

// EventSink receives spy events from the queue store. spy.Spy implements
// this; a nil sink (the default) is a silent no-op.
type EventSink interface {
	RecordEvent(kind, region, resourceName, messageID, body string)
}

// Store is the per-region collection of queues. One Store exists per
// region; the region.Router creates one lazily on first reference.
type Store struct {
	region string
	sink   EventSink

	mu     sync.RWMutex
	queues map[string]*Queue
}

// NewStore creates an empty Store for the given region.
func NewStore(region string) *Store {
	return &Store{region: region, queues: make(map[string]*Queue)}
}

// SetEventSink attaches a spy.Spy (or any EventSink) to this store. Must
// be called before traffic starts if events are to be captured from the
// beginning; safe to call at any time otherwise.
func (s *Store) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Store) record(kind, resourceName, messageID, body string) {
	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()
	if sink != nil {
		sink.RecordEvent(kind, s.region, resourceName, messageID, body)
	}
}

// Region returns the region this store serves.
func (s *Store) Region() string { return s.region }

// IsFIFOName reports whether a queue name denotes a FIFO queue.
func IsFIFOName(name string) bool {
	return strings.HasSuffix(name, ".fifo")
}

// CreateQueue is idempotent: an existing queue with identical creatable
// attributes returns success; differing attributes is a conflict.
func (s *Store) CreateQueue(name string, attrs Attributes, tags map[string]string) (*Queue, error) {
	if err := validateQueueName(name); err != nil {
		return nil, err
	}
	if err := ValidateAttributes(attrs); err != nil {
		return nil, err
	}

	kind := Standard
	if IsFIFOName(name) {
		kind = FIFO
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.queues[name]; ok {
		existing.mu.Lock()
		same := attributesEqual(existing.Attrs, attrs)
		existing.mu.Unlock()
		if !same {
			return nil, ferr.NewConflict("QueueAlreadyExists",
				fmt.Sprintf("A queue already exists with the same name and different attributes: %s", name))
		}
		return existing, nil
	}

	q := newQueue(s, name, s.region, kind, attrs)
	if tags != nil {
		for k, v := range tags {
			q.Tags[k] = v
		}
	}
	s.queues[name] = q
	return q, nil
}

// GetQueue looks up a queue by name.
func (s *Store) GetQueue(name string) (*Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[name]
	if !ok {
		return nil, ferr.NewNotFound("queue", "The specified queue does not exist.")
	}
	return q, nil
}

// DeleteQueue removes a queue, cancelling every registered long-poll
// waiter with an empty result first.
func (s *Store) DeleteQueue(name string) error {
	s.mu.Lock()
	q, ok := s.queues[name]
	if !ok {
		s.mu.Unlock()
		return ferr.NewNotFound("queue", "The specified queue does not exist.")
	}
	delete(s.queues, name)
	s.mu.Unlock()

	q.mu.Lock()
	for w := range q.waiters {
		close(w.wake)
	}
	q.waiters = make(map[*waiter]struct{})
	q.mu.Unlock()
	return nil
}

// ListQueues returns every queue name in this region, optionally
// filtered by prefix, sorted for deterministic output.
func (s *Store) ListQueues(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		if prefix == "" || strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllQueuesSorted returns every queue in this region, sorted by name —
// used by the timer wheel to sweep queues in a fixed order (§9).
func (s *Store) AllQueuesSorted() []*Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Queue, 0, len(names))
	for _, name := range names {
		out = append(out, s.queues[name])
	}
	return out
}

// ProcessTimers implements clock.Processor: sweeps every queue in this
// region in a fixed (sorted) order.
func (s *Store) ProcessTimers(now time.Time) {
	for _, q := range s.AllQueuesSorted() {
		q.processTimers(now)
	}
}

// ResolveDLQByArn looks up a queue by the name embedded in its ARN
// (arn:aws:sqs:<region>:<account>:<name>), for dead-letter redrive.
func (s *Store) ResolveDLQByArn(arn string) *Queue {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 {
		return nil
	}
	name := arn[idx+1:]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queues[name]
}

func attributesEqual(a, b Attributes) bool {
	// Only "creatable" attributes participate in the idempotency check;
	// ContentBasedDeduplication is explicitly mutable later via
	// SetQueueAttributes, but at creation time it is still part of the
	// identity check like any other creatable attribute.
	if a.VisibilityTimeout != b.VisibilityTimeout ||
		a.DelaySeconds != b.DelaySeconds ||
		a.MaximumMessageSize != b.MaximumMessageSize ||
		a.MessageRetentionPeriod != b.MessageRetentionPeriod ||
		a.ReceiveMessageWaitTimeSeconds != b.ReceiveMessageWaitTimeSeconds ||
		a.KmsMasterKeyID != b.KmsMasterKeyID ||
		a.KmsDataKeyReusePeriodSeconds != b.KmsDataKeyReusePeriodSeconds ||
		a.ContentBasedDeduplication != b.ContentBasedDeduplication {
		return false
	}
	if (a.RedrivePolicy == nil) != (b.RedrivePolicy == nil) {
		return false
	}
	if a.RedrivePolicy != nil && *a.RedrivePolicy != *b.RedrivePolicy {
		return false
	}
	return true
}

func validateQueueName(name string) error {
	if name == "" {
		return ferr.NewInvalidParameter("InvalidParameterValue", "Queue name cannot be empty")
	}
	base := strings.TrimSuffix(name, ".fifo")
	if len(base) > 80 {
		return ferr.NewInvalidParameter("InvalidParameterValue", "Queue name too long")
	}
	for _, r := range base {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ferr.NewInvalidParameter("InvalidParameterValue",
				"Can only include alphanumeric characters, hyphens, or underscores.")
		}
	}
	return nil
}
