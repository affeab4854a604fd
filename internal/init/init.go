// Package init pre-creates queues, topics and buckets at startup from
// the `init` configuration option (spec.md §6): a path to a YAML file,
// or inline YAML, honoring each resource's own `region` field. Queues are
// created in list order; a RedrivePolicy's target ARN is not checked at
// creation, only looked up when a message is redriven.
package init

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kibertoad/fauxqs/internal/fauxqs/engine"
	"github.com/kibertoad/fauxqs/internal/fauxqs/queue"
	"github.com/kibertoad/fauxqs/internal/fauxqs/topic"
)

// Spec is the top-level shape of the init document.
type Spec struct {
	Queues  []QueueSpec  `yaml:"queues" validate:"dive"`
	Topics  []TopicSpec  `yaml:"topics" validate:"dive"`
	Buckets []BucketSpec `yaml:"buckets" validate:"dive"`
}

// QueueSpec pre-creates one queue.
type QueueSpec struct {
	Name   string            `yaml:"name" validate:"required"`
	Region string            `yaml:"region"`
	Attrs  map[string]string `yaml:"attributes"`
	Tags   map[string]string `yaml:"tags"`
}

// SubscriptionSpec pre-creates one subscription under a TopicSpec.
type SubscriptionSpec struct {
	Protocol string `yaml:"protocol" validate:"required,oneof=http https email email-json sms sqs application lambda firehose"`
	Endpoint string `yaml:"endpoint" validate:"required"`
}

// TopicSpec pre-creates one topic, optionally with subscriptions.
type TopicSpec struct {
	Name          string             `yaml:"name" validate:"required"`
	Region        string             `yaml:"region"`
	Tags          map[string]string  `yaml:"tags"`
	Subscriptions []SubscriptionSpec `yaml:"subscriptions" validate:"dive"`
}

// BucketSpec pre-creates one bucket.
type BucketSpec struct {
	Name   string `yaml:"name" validate:"required"`
	Region string `yaml:"region"`
}

// Load parses raw as either a file path or inline YAML and returns the
// decoded Spec. A value containing a newline or starting with a YAML
// document marker is treated as inline content; otherwise it is read as
// a file path.
func Load(raw string) (*Spec, error) {
	if raw == "" {
		return &Spec{}, nil
	}

	var data []byte
	if strings.Contains(raw, "\n") || strings.HasPrefix(strings.TrimSpace(raw), "---") {
		data = []byte(raw)
	} else {
		b, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("reading init file: %w", err)
		}
		data = b
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing init document: %w", err)
	}
	if err := Validate(&spec); err != nil {
		return nil, fmt.Errorf("invalid init document: %w", err)
	}
	return &spec, nil
}

// Apply creates every resource named in spec against eng's Router, in
// list order (queues before topics before buckets, and within queues,
// in the order given so a DLQ target can precede the queue that
// redrives into it).
func Apply(eng *engine.Engine, spec *Spec, defaultRegion string) error {
	for _, qs := range spec.Queues {
		region := qs.Region
		if region == "" {
			region = defaultRegion
		}
		store := eng.Router.QueueStore(region)

		attrs := queue.DefaultAttributes()
		for k, v := range qs.Attrs {
			if err := applyQueueAttr(&attrs, k, v); err != nil {
				return fmt.Errorf("queue %q: %w", qs.Name, err)
			}
		}
		if _, err := store.CreateQueue(qs.Name, attrs, qs.Tags); err != nil {
			return fmt.Errorf("creating queue %q: %w", qs.Name, err)
		}
	}

	for _, ts := range spec.Topics {
		region := ts.Region
		if region == "" {
			region = defaultRegion
		}
		store := eng.Router.TopicStore(region)

		t, err := store.CreateTopic(ts.Name, topic.Attributes{}, ts.Tags)
		if err != nil {
			return fmt.Errorf("creating topic %q: %w", ts.Name, err)
		}
		for _, sub := range ts.Subscriptions {
			if _, err := t.Subscribe(topic.Protocol(sub.Protocol), sub.Endpoint, "", topic.SubscriptionAttributes{}); err != nil {
				return fmt.Errorf("subscribing to topic %q: %w", ts.Name, err)
			}
		}
	}

	for _, bs := range spec.Buckets {
		region := bs.Region
		if region == "" {
			region = defaultRegion
		}
		store := eng.Router.BucketStore(region)
		if _, err := store.CreateBucket(bs.Name); err != nil {
			return fmt.Errorf("creating bucket %q: %w", bs.Name, err)
		}
	}

	return nil
}

func applyQueueAttr(attrs *queue.Attributes, name, value string) error {
	switch name {
	case "visibilityTimeout":
		return setIntAttr(&attrs.VisibilityTimeout, value)
	case "delaySeconds":
		return setIntAttr(&attrs.DelaySeconds, value)
	case "maximumMessageSize":
		return setIntAttr(&attrs.MaximumMessageSize, value)
	case "messageRetentionPeriod":
		return setIntAttr(&attrs.MessageRetentionPeriod, value)
	case "receiveMessageWaitTimeSeconds":
		return setIntAttr(&attrs.ReceiveMessageWaitTimeSeconds, value)
	case "kmsMasterKeyId":
		attrs.KmsMasterKeyID = value
		return nil
	case "kmsDataKeyReusePeriodSeconds":
		return setIntAttr(&attrs.KmsDataKeyReusePeriodSeconds, value)
	case "contentBasedDeduplication":
		attrs.ContentBasedDeduplication = value == "true"
		return nil
	case "policy":
		attrs.Policy = value
		return nil
	case "redrivePolicy":
		var rp queue.RedrivePolicy
		if err := json.Unmarshal([]byte(value), &rp); err != nil {
			return fmt.Errorf("invalid redrivePolicy: %w", err)
		}
		attrs.RedrivePolicy = &rp
		return nil
	default:
		return fmt.Errorf("unknown queue attribute %q", name)
	}
}

func setIntAttr(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer value %q", value)
	}
	*dst = n
	return nil
}
