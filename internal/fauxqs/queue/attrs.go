package queue

import (
	"fmt"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
)

// attrRange describes the accepted [min,max] range for one integer
// attribute, per the table in spec.md §6.
type attrRange struct {
	name     string
	min, max int
}

var attrRanges = []attrRange{
	{"VisibilityTimeout", 0, 43200},
	{"DelaySeconds", 0, 900},
	{"MaximumMessageSize", 1024, 1048576},
	{"MessageRetentionPeriod", 60, 1209600},
	{"ReceiveMessageWaitTimeSeconds", 0, 20},
	{"KmsDataKeyReusePeriodSeconds", 60, 86400},
}

func checkRange(name string, value int) error {
	for _, r := range attrRanges {
		if r.name == name {
			if value < r.min || value > r.max {
				return ferr.NewInvalidParameter("InvalidAttributeValue",
					fmt.Sprintf("Invalid value for the parameter %s", name))
			}
			return nil
		}
	}
	return nil
}

// ValidateAttributes validates every range-bound attribute of a.
func ValidateAttributes(a Attributes) error {
	if err := checkRange("VisibilityTimeout", a.VisibilityTimeout); err != nil {
		return err
	}
	if err := checkRange("DelaySeconds", a.DelaySeconds); err != nil {
		return err
	}
	if err := checkRange("MaximumMessageSize", a.MaximumMessageSize); err != nil {
		return err
	}
	if err := checkRange("MessageRetentionPeriod", a.MessageRetentionPeriod); err != nil {
		return err
	}
	if err := checkRange("ReceiveMessageWaitTimeSeconds", a.ReceiveMessageWaitTimeSeconds); err != nil {
		return err
	}
	if a.KmsDataKeyReusePeriodSeconds != 0 {
		if err := checkRange("KmsDataKeyReusePeriodSeconds", a.KmsDataKeyReusePeriodSeconds); err != nil {
			return err
		}
	}
	if a.RedrivePolicy != nil && a.RedrivePolicy.MaxReceiveCount <= 0 {
		return ferr.NewInvalidParameter("InvalidAttributeValue", "Invalid value for the parameter RedrivePolicy")
	}
	return nil
}

// GetAttributes returns a snapshot of the queue's current attributes.
func (q *Queue) GetAttributes() Attributes {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.Attrs
}

// SetAttributes applies a partial attribute update, validating ranges
// before writing anything. updates maps attribute name to its new
// value; unknown names are rejected.
func (q *Queue) SetAttributes(updates map[string]interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := q.Attrs
	for name, raw := range updates {
		switch name {
		case "VisibilityTimeout":
			next.VisibilityTimeout = raw.(int)
		case "DelaySeconds":
			next.DelaySeconds = raw.(int)
		case "MaximumMessageSize":
			next.MaximumMessageSize = raw.(int)
		case "MessageRetentionPeriod":
			next.MessageRetentionPeriod = raw.(int)
		case "ReceiveMessageWaitTimeSeconds":
			next.ReceiveMessageWaitTimeSeconds = raw.(int)
		case "KmsMasterKeyId":
			next.KmsMasterKeyID = raw.(string)
		case "KmsDataKeyReusePeriodSeconds":
			next.KmsDataKeyReusePeriodSeconds = raw.(int)
		case "ContentBasedDeduplication":
			next.ContentBasedDeduplication = raw.(bool)
		case "RedrivePolicy":
			switch v := raw.(type) {
			case nil:
				next.RedrivePolicy = nil
			case *RedrivePolicy:
				next.RedrivePolicy = v
			}
		case "Policy":
			next.Policy = raw.(string)
		default:
			return ferr.NewInvalidParameter("InvalidAttributeName",
				fmt.Sprintf("Unknown attribute name %s", name))
		}
	}

	if err := ValidateAttributes(next); err != nil {
		return err
	}
	q.Attrs = next
	return nil
}
