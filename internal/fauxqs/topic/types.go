// Package topic implements the per-region Topic Store: topic/subscription
// creation, tagging, and filter-policy-aware publish fan-out into the
// Queue Store or, for non-sqs protocols, a no-op transport observed only
// through the message spy.
package topic

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kibertoad/fauxqs/internal/fauxqs/filter"
)

// Protocol is the fixed set of subscription delivery protocols, per
// spec.md §3.
type Protocol string

const (
	ProtocolHTTP        Protocol = "http"
	ProtocolHTTPS       Protocol = "https"
	ProtocolEmail       Protocol = "email"
	ProtocolEmailJSON   Protocol = "email-json"
	ProtocolSMS         Protocol = "sms"
	ProtocolSQS         Protocol = "sqs"
	ProtocolApplication Protocol = "application"
	ProtocolLambda      Protocol = "lambda"
	ProtocolFirehose    Protocol = "firehose"
)

func validProtocol(p Protocol) bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolEmail, ProtocolEmailJSON,
		ProtocolSMS, ProtocolSQS, ProtocolApplication, ProtocolLambda, ProtocolFirehose:
		return true
	default:
		return false
	}
}

// FilterPolicyScope selects whether a subscription's filter policy is
// evaluated against message attributes or the parsed JSON message body.
type FilterPolicyScope string

const (
	ScopeMessageAttributes FilterPolicyScope = "MessageAttributes"
	ScopeMessageBody       FilterPolicyScope = "MessageBody"
)

// Attributes holds a topic's configuration attributes.
type Attributes struct {
	DisplayName               string
	FifoTopic                 bool
	ContentBasedDeduplication bool
	Policy                    string
	KmsMasterKeyID            string
	TracingConfig             string
	SignatureVersion          string
}

// SubscriptionAttributes holds a subscription's per-endpoint
// configuration.
type SubscriptionAttributes struct {
	RawMessageDelivery   bool
	FilterPolicy         *filter.Policy
	FilterPolicyRaw      string
	FilterPolicyScope    FilterPolicyScope
	RedrivePolicyArn     string
	DeliveryPolicy       string
	SubscriptionRoleArn  string
}

// Subscription is one topic subscriber.
type Subscription struct {
	Arn       string
	TopicArn  string
	Protocol  Protocol
	Endpoint  string
	Attrs     SubscriptionAttributes
	Principal string
	Confirmed bool
}

// Topic is one SNS topic.
type Topic struct {
	mu sync.Mutex

	Name      string
	Region    string
	Attrs     Attributes
	Tags      map[string]string
	CreatedAt time.Time

	subscriptions map[string]*Subscription // by ARN

	dedup map[string]dedupEntry // FIFO content/explicit dedup
}

type dedupEntry struct {
	expiresAt time.Time
}

const dedupWindow = 5 * time.Minute

func newTopic(name, region string, attrs Attributes) *Topic {
	return &Topic{
		Name:          name,
		Region:        region,
		Attrs:         attrs,
		Tags:          make(map[string]string),
		CreatedAt:     time.Now(),
		subscriptions: make(map[string]*Subscription),
		dedup:         make(map[string]dedupEntry),
	}
}

// Arn returns the topic's ARN, using the fixed placeholder account id
// shared across fauxqs (there is no IAM concept).
func (t *Topic) Arn() string {
	return "arn:aws:sns:" + t.Region + ":000000000000:" + t.Name
}

// Subscriptions returns a stable-ordered snapshot of this topic's
// subscriptions, sorted by ARN.
func (t *Topic) Subscriptions() []*Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	arns := make([]string, 0, len(t.subscriptions))
	for arn := range t.subscriptions {
		arns = append(arns, arn)
	}
	sort.Strings(arns)

	out := make([]*Subscription, 0, len(arns))
	for _, arn := range arns {
		out = append(out, t.subscriptions[arn])
	}
	return out
}

func isFIFOName(name string) bool {
	return strings.HasSuffix(name, ".fifo")
}
