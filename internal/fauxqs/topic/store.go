package topic

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/filter"
)

// Store is the per-region collection of topics. One Store exists per
// region; the region.Router creates one lazily on first reference.
type Store struct {
	region string

	mu     sync.RWMutex
	topics map[string]*Topic
}

// NewStore creates an empty Store for the given region.
func NewStore(region string) *Store {
	return &Store{region: region, topics: make(map[string]*Topic)}
}

// Region returns the region this store serves.
func (s *Store) Region() string { return s.region }

// CreateTopic is idempotent on name and identical attributes; attribute
// mismatch is a conflict.
func (s *Store) CreateTopic(name string, attrs Attributes, tags map[string]string) (*Topic, error) {
	if err := validateTopicName(name); err != nil {
		return nil, err
	}
	attrs.FifoTopic = isFIFOName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.topics[name]; ok {
		existing.mu.Lock()
		same := attributesEqual(existing.Attrs, attrs)
		existing.mu.Unlock()
		if !same {
			return nil, ferr.NewConflict("InvalidParameter", "Topic already exists with different attributes")
		}
		return existing, nil
	}

	t := newTopic(name, s.region, attrs)
	if tags != nil {
		for k, v := range tags {
			t.Tags[k] = v
		}
	}
	s.topics[name] = t
	return t, nil
}

// GetTopic looks up a topic by name.
func (s *Store) GetTopic(name string) (*Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[name]
	if !ok {
		return nil, ferr.NewNotFound("topic", "Topic does not exist")
	}
	return t, nil
}

// GetTopicByArn looks up a topic by the name embedded in its ARN.
func (s *Store) GetTopicByArn(arn string) (*Topic, error) {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 {
		return nil, ferr.NewNotFound("topic", "Topic does not exist")
	}
	return s.GetTopic(arn[idx+1:])
}

// DeleteTopic removes a topic and all of its subscriptions.
func (s *Store) DeleteTopic(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[name]; !ok {
		return ferr.NewNotFound("topic", "Topic does not exist")
	}
	delete(s.topics, name)
	return nil
}

// ListTopics returns every topic ARN in this region, sorted by name.
func (s *Store) ListTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.topics))
	for name := range s.topics {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, s.topics[name].Arn())
	}
	return out
}

// Subscribe is idempotent on the exact (topic, protocol, endpoint, attrs)
// tuple; attribute mismatch for an existing (protocol, endpoint) pair is
// an error.
func (t *Topic) Subscribe(protocol Protocol, endpoint string, rawFilterPolicy string, attrs SubscriptionAttributes) (*Subscription, error) {
	if !validProtocol(protocol) {
		return nil, ferr.NewInvalidParameter("InvalidParameter", fmt.Sprintf("Invalid parameter: Protocol %s", protocol))
	}

	if rawFilterPolicy != "" {
		p, err := filter.Parse([]byte(rawFilterPolicy))
		if err != nil {
			return nil, ferr.NewInvalidParameter("InvalidParameter", "Invalid parameter: FilterPolicy: "+err.Error())
		}
		attrs.FilterPolicy = p
		attrs.FilterPolicyRaw = rawFilterPolicy
	}
	if attrs.FilterPolicyScope == "" {
		attrs.FilterPolicyScope = ScopeMessageAttributes
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sub := range t.subscriptions {
		if sub.Protocol == protocol && sub.Endpoint == endpoint {
			if subscriptionAttrsEqual(sub.Attrs, attrs) {
				return sub, nil
			}
			return nil, ferr.NewConflict("InvalidParameter",
				"Subscription already exists with different attributes")
		}
	}

	sub := &Subscription{
		Arn:       t.Arn() + ":" + uuid.NewString(),
		TopicArn:  t.Arn(),
		Protocol:  protocol,
		Endpoint:  endpoint,
		Attrs:     attrs,
		Principal: "000000000000",
		Confirmed: protocol == ProtocolSQS || protocol == ProtocolLambda || protocol == ProtocolFirehose,
	}
	t.subscriptions[sub.Arn] = sub
	return sub, nil
}

// Unsubscribe removes a subscription by ARN. Unknown ARNs are a no-op,
// matching AWS's idempotent Unsubscribe.
func (t *Topic) Unsubscribe(arn string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscriptions, arn)
}

// ConfirmSubscription returns an existing subscription's ARN if the
// topic has any subscription, else "PendingConfirmation".
func (t *Topic) ConfirmSubscription(token string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subscriptions {
		sub.Confirmed = true
		return sub.Arn
	}
	return "PendingConfirmation"
}

// Tag sets tag keys on the topic, overwriting on re-tag.
func (t *Topic) Tag(tags map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range tags {
		t.Tags[k] = v
	}
}

// Untag removes tag keys from the topic.
func (t *Topic) Untag(keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		delete(t.Tags, k)
	}
}

// ListTags returns a snapshot of the topic's tags.
func (t *Topic) ListTags() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.Tags))
	for k, v := range t.Tags {
		out[k] = v
	}
	return out
}

func attributesEqual(a, b Attributes) bool {
	return a == b
}

func subscriptionAttrsEqual(a, b SubscriptionAttributes) bool {
	return a.RawMessageDelivery == b.RawMessageDelivery &&
		a.FilterPolicyRaw == b.FilterPolicyRaw &&
		a.FilterPolicyScope == b.FilterPolicyScope &&
		a.RedrivePolicyArn == b.RedrivePolicyArn &&
		a.DeliveryPolicy == b.DeliveryPolicy &&
		a.SubscriptionRoleArn == b.SubscriptionRoleArn
}

func validateTopicName(name string) error {
	if name == "" {
		return ferr.NewInvalidParameter("InvalidParameter", "Topic name cannot be empty")
	}
	base := strings.TrimSuffix(name, ".fifo")
	if len(base) > 256 {
		return ferr.NewInvalidParameter("InvalidParameter", "Topic name too long")
	}
	for _, r := range base {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ferr.NewInvalidParameter("InvalidParameter",
				"Topic name can only include alphanumeric characters, hyphens, or underscores.")
		}
	}
	return nil
}
