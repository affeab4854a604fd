package topic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/filter"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ids"
	"github.com/kibertoad/fauxqs/internal/fauxqs/queue"
	"github.com/kibertoad/fauxqs/internal/worker"
)

// QueueResolver looks up the queue backing an "sqs" protocol
// subscription endpoint (a queue ARN), across regions.
type QueueResolver func(arn string) *queue.Queue

// EventSink mirrors queue.EventSink, letting topic.Store and queue.Store
// share a spy.Spy without either package importing the other's types.
type EventSink interface {
	RecordEvent(kind, region, resourceName, messageID, body string)
}

// PublishInput is the validated-before-fan-out input to Publish.
type PublishInput struct {
	Message                string
	MessageAttributes      map[string]queue.MessageAttributeValue
	MessageGroupID         string
	MessageDeduplicationID string
}

// PublishResult is returned by Publish.
type PublishResult struct {
	MessageID      string
	SequenceNumber string // FIFO only
}

// notifyJob adapts a non-sqs delivery into a worker.Job: there is no real
// transport, so executing it only records the delivery for the spy.
type notifyJob struct {
	id   string
	sink EventSink

	region, resourceName, messageID, body string
}

func (j *notifyJob) ID() string { return j.id }

// Execute runs on the worker pool's goroutine; there is no real
// transport to deliver to, so it only records the delivery for the spy
// once dispatch actually happens (as opposed to the synchronous record
// already made by Publish for subscriptions that skip the pool).
func (j *notifyJob) Execute(_ context.Context) error {
	if j.sink != nil {
		j.sink.RecordEvent("publish", j.region, j.resourceName, j.messageID, j.body)
	}
	return nil
}

// Publish fans a message out to every subscription whose filter policy
// matches, per spec.md §4.3. sqs-protocol subscriptions are delivered
// synchronously via the Queue Store; every other protocol is dispatched
// onto pool (if non-nil) as a no-op transport observed only by sink.
func (t *Topic) Publish(in PublishInput, resolveQueue QueueResolver, pool *worker.Pool, sink EventSink) (*PublishResult, error) {
	if t.Attrs.FifoTopic && in.MessageGroupID == "" {
		return nil, ferr.NewInvalidParameter("InvalidParameter", "FIFO topics must have MessageGroupId")
	}

	t.mu.Lock()
	if t.Attrs.FifoTopic {
		dedupKey := in.MessageDeduplicationID
		if dedupKey == "" {
			if !t.Attrs.ContentBasedDeduplication {
				t.mu.Unlock()
				return nil, ferr.NewInvalidParameter("InvalidParameter",
					"FIFO topics must set MessageDeduplicationId or ContentBasedDeduplication")
			}
			dedupKey = ids.SHA256Hex(in.Message)
		}
		now := time.Now()
		if _, ok := t.dedup[dedupKey]; ok {
			t.mu.Unlock()
			return &PublishResult{MessageID: ids.NewMessageID()}, nil
		}
		t.dedup[dedupKey] = dedupEntry{expiresAt: now.Add(dedupWindow)}
		for key, entry := range t.dedup {
			if now.After(entry.expiresAt) {
				delete(t.dedup, key)
			}
		}
	}
	subs := make([]*Subscription, 0, len(t.subscriptions))
	for _, sub := range t.subscriptions {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	messageID := ids.NewMessageID()
	flatAttrs := flattenAttributes(in.MessageAttributes)

	for _, sub := range subs {
		matchAttrs := flatAttrs
		if sub.Attrs.FilterPolicyScope == ScopeMessageBody {
			matchAttrs = flattenJSONBody(in.Message)
		}
		if !sub.Attrs.FilterPolicy.Matches(matchAttrs) {
			continue
		}

		body := in.Message
		if !sub.Attrs.RawMessageDelivery {
			body = buildEnvelope(messageID, t.Arn(), in.Message, in.MessageAttributes)
		}

		if sub.Protocol == ProtocolSQS {
			q := resolveQueue(sub.Endpoint)
			if q == nil {
				continue
			}
			groupID, dedupID := "", ""
			if sub.Attrs.RawMessageDelivery {
				groupID, dedupID = in.MessageGroupID, in.MessageDeduplicationID
			}
			_, _ = q.SendMessage(queue.SendInput{
				Body:                   body,
				Attributes:             in.MessageAttributes,
				MessageGroupID:         groupID,
				MessageDeduplicationID: dedupID,
			})
			continue
		}

		if pool == nil {
			if sink != nil {
				sink.RecordEvent("publish", t.Region, string(sub.Protocol)+":"+sub.Endpoint, messageID, body)
			}
			continue
		}
		{
			pool.Submit(&notifyJob{
				id:           messageID + ":" + sub.Arn,
				sink:         sink,
				region:       t.Region,
				resourceName: sub.Endpoint,
				messageID:    messageID,
				body:         body,
			})
		}
	}

	return &PublishResult{MessageID: messageID}, nil
}

func flattenAttributes(attrs map[string]queue.MessageAttributeValue) map[string]filter.Value {
	out := make(map[string]filter.Value, len(attrs))
	for name, v := range attrs {
		fv := filter.Value{IsSet: true}
		switch {
		case strings.HasPrefix(v.DataType, "Number"):
			var n float64
			if _, err := fmt.Sscanf(v.StringValue, "%g", &n); err == nil {
				fv.Numbers = []float64{n}
			}
		default:
			fv.Strings = []string{v.StringValue}
		}
		out[name] = fv
	}
	return out
}

func flattenJSONBody(body string) map[string]filter.Value {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil
	}
	out := make(map[string]filter.Value, len(parsed))
	for k, v := range parsed {
		switch val := v.(type) {
		case string:
			out[k] = filter.Value{Strings: []string{val}, IsSet: true}
		case float64:
			out[k] = filter.Value{Numbers: []float64{val}, IsSet: true}
		case []interface{}:
			fv := filter.Value{IsSet: true}
			for _, item := range val {
				switch iv := item.(type) {
				case string:
					fv.Strings = append(fv.Strings, iv)
				case float64:
					fv.Numbers = append(fv.Numbers, iv)
				}
			}
			out[k] = fv
		}
	}
	return out
}

type envelopeAttr struct {
	Type  string `json:"Type"`
	Value string `json:"Value"`
}

type envelope struct {
	Type              string                  `json:"Type"`
	MessageID         string                  `json:"MessageId"`
	TopicArn          string                  `json:"TopicArn"`
	Message           string                  `json:"Message"`
	Timestamp         string                  `json:"Timestamp"`
	MessageAttributes map[string]envelopeAttr `json:"MessageAttributes,omitempty"`
}

func buildEnvelope(messageID, topicArn, message string, attrs map[string]queue.MessageAttributeValue) string {
	e := envelope{
		Type:      "Notification",
		MessageID: messageID,
		TopicArn:  topicArn,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(attrs) > 0 {
		e.MessageAttributes = make(map[string]envelopeAttr, len(attrs))
		for name, v := range attrs {
			e.MessageAttributes[name] = envelopeAttr{Type: v.DataType, Value: v.StringValue}
		}
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return message
	}
	return string(buf)
}
