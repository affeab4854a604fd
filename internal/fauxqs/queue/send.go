package queue

import (
	"time"
	"unicode/utf8"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ids"
)

const dedupWindow = 5 * time.Minute

// SendInput is the validated-before-mutation input to SendMessage.
type SendInput struct {
	Body                   string
	Attributes             map[string]MessageAttributeValue
	DelaySeconds           *int // nil = use queue default
	MessageGroupID         string
	MessageDeduplicationID string
}

// SendResult is returned by SendMessage and by each successful entry of
// SendMessageBatch.
type SendResult struct {
	MessageID              string
	MD5OfBody              string
	MD5OfMessageAttributes string
	SequenceNumber         string // FIFO only
}

// SendMessage validates and enqueues one message, per spec.md §4.2.
func (q *Queue) SendMessage(in SendInput) (*SendResult, error) {
	if err := validateBody(in.Body); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	totalSize := wireSize(in.Body, in.Attributes)
	if totalSize > q.Attrs.MaximumMessageSize {
		return nil, ferr.NewInvalidParameter("InvalidParameterValue",
			"One or more parameters are invalid. Reason: Message must be shorter than "+
				itoa(q.Attrs.MaximumMessageSize)+" bytes.")
	}

	delay := q.Attrs.DelaySeconds
	if in.DelaySeconds != nil {
		if q.Kind == FIFO {
			return nil, ferr.NewInvalidParameter("InvalidParameterValue",
				"Value for parameter DelaySeconds is invalid. Reason: The request include parameter that is not valid for this queue type.")
		}
		if *in.DelaySeconds < 0 || *in.DelaySeconds > 900 {
			return nil, ferr.NewInvalidParameter("InvalidParameterValue",
				"Value for parameter DelaySeconds is invalid. Reason: Must be between 0 and 900.")
		}
		delay = *in.DelaySeconds
	}

	if q.Kind == FIFO && in.MessageGroupID == "" {
		return nil, ferr.NewInvalidParameter("MissingParameter",
			"The request must contain the parameter MessageGroupId.")
	}

	now := time.Now()

	if q.Kind == FIFO {
		dedupKey := in.MessageDeduplicationID
		if dedupKey == "" {
			if !q.Attrs.ContentBasedDeduplication {
				return nil, ferr.NewInvalidParameter("InvalidParameterValue",
					"The queue should either have ContentBasedDeduplication enabled or MessageDeduplicationId provided explicitly")
			}
			dedupKey = ids.SHA256Hex(in.Body)
		}
		if existing, ok := q.fifo.dedup[dedupKey]; ok && now.Before(existing.expiresAt) {
			return &SendResult{
				MessageID:      existing.messageID,
				SequenceNumber: existing.sequenceNumber,
			}, nil
		}

		seq := q.fifo.nextSequenceNumber()
		msg := q.buildMessage(in, now, delay)
		msg.SequenceNumber = seq
		msg.MessageGroupID = in.MessageGroupID
		msg.DedupID = dedupKey

		q.fifo.dedup[dedupKey] = dedupEntry{
			messageID:      msg.ID,
			sequenceNumber: seq,
			expiresAt:      now.Add(dedupWindow),
		}

		q.placeMessageLocked(msg, delay)
		q.wakeWaitersLocked()
		q.record("publish", msg.ID, msg.Body)

		return &SendResult{
			MessageID:              msg.ID,
			MD5OfBody:              ids.BodyMD5(msg.Body),
			MD5OfMessageAttributes: attributesMD5(msg.Attributes),
			SequenceNumber:         seq,
		}, nil
	}

	msg := q.buildMessage(in, now, delay)
	q.placeMessageLocked(msg, delay)
	q.wakeWaitersLocked()
	q.record("publish", msg.ID, msg.Body)

	return &SendResult{
		MessageID:              msg.ID,
		MD5OfBody:              ids.BodyMD5(msg.Body),
		MD5OfMessageAttributes: attributesMD5(msg.Attributes),
	}, nil
}

func (q *Queue) buildMessage(in SendInput, now time.Time, delay int) *Message {
	return &Message{
		ID:                ids.NewMessageID(),
		Body:              in.Body,
		Attributes:        in.Attributes,
		SentTimestamp:     now,
		RetentionDeadline: now.Add(time.Duration(q.Attrs.MessageRetentionPeriod) * time.Second),
	}
}

// placeMessageLocked inserts msg into delayed or ready. Must be called
// with q.mu held.
func (q *Queue) placeMessageLocked(msg *Message, delaySeconds int) {
	if delaySeconds > 0 {
		deadline := msg.SentTimestamp.Add(time.Duration(delaySeconds) * time.Second)
		msg.DelayDeadline = &deadline
		q.delayed = append(q.delayed, msg)
		return
	}
	q.ready = append(q.ready, msg)
}

// BatchEntry is one entry of SendMessageBatch.
type BatchEntry struct {
	ID string
	SendInput
}

// BatchSendResult is one successful entry's result, tagged with its
// caller-supplied batch id.
type BatchSendResult struct {
	ID string
	SendResult
}

// BatchSendFailure is one failed entry, tagged with its batch id.
type BatchSendFailure struct {
	ID          string
	Code        string
	Message     string
	SenderFault bool
}

// SendMessageBatch validates batch-level constraints, then independently
// validates and sends each entry.
func (q *Queue) SendMessageBatch(entries []BatchEntry) ([]BatchSendResult, []BatchSendFailure, error) {
	if len(entries) == 0 {
		return nil, nil, ferr.NewBatchLevel("EmptyBatchRequest", "There are no messages in the batch request")
	}
	if len(entries) > 10 {
		return nil, nil, ferr.NewBatchLevel("TooManyEntriesInBatchRequest", "Maximum number of entries per request are 10.")
	}

	seen := make(map[string]bool, len(entries))
	total := 0
	for _, e := range entries {
		if !validBatchID(e.ID) {
			return nil, nil, ferr.NewBatchLevel("InvalidBatchEntryId",
				"A batch entry id can only contain alphanumeric characters, hyphens and underscores. It can be at most 80 letters long.")
		}
		if seen[e.ID] {
			return nil, nil, ferr.NewBatchLevel("BatchEntryIdsNotDistinct", "Two or more batch entries in the request have the same Id.")
		}
		seen[e.ID] = true
		total += wireSize(e.Body, e.Attributes)
	}
	if total > 262144 {
		return nil, nil, ferr.NewBatchLevel("BatchRequestTooLong",
			"Batch requests cannot be longer than 262144 bytes.")
	}

	var results []BatchSendResult
	var failures []BatchSendFailure
	for _, e := range entries {
		res, err := q.SendMessage(e.SendInput)
		if err != nil {
			failures = append(failures, BatchSendFailure{
				ID:          e.ID,
				Code:        errorCode(err),
				Message:     err.Error(),
				SenderFault: true,
			})
			continue
		}
		results = append(results, BatchSendResult{ID: e.ID, SendResult: *res})
	}
	return results, failures, nil
}

func validBatchID(id string) bool {
	if id == "" || len(id) > 80 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func errorCode(err error) string {
	switch {
	case ferr.IsInvalidParameter(err):
		return "InvalidParameterValue"
	default:
		return "InternalError"
	}
}

func validateBody(body string) error {
	for i, r := range body {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(body[i:])
			if size == 1 {
				return ferr.NewInvalidParameter("InvalidMessageContents", "Invalid binary character in the message body")
			}
		}
		if !allowedRune(r) {
			return ferr.NewInvalidParameter("InvalidMessageContents", "Invalid binary character in the message body")
		}
	}
	return nil
}

func allowedRune(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 0x0020 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	default:
		return false
	}
}

// wireSize computes body utf8 bytes + attribute-name bytes +
// attribute-datatype bytes + attribute-value bytes, per spec.md §4.2.
func wireSize(body string, attrs map[string]MessageAttributeValue) int {
	size := len(body)
	for name, v := range attrs {
		size += len(name) + len(v.DataType) + len(v.StringValue) + len(v.BinaryValue)
	}
	return size
}

func attributesMD5(attrs map[string]MessageAttributeValue) string {
	if len(attrs) == 0 {
		return ""
	}
	list := make([]ids.MessageAttribute, 0, len(attrs))
	for name, v := range attrs {
		list = append(list, ids.MessageAttribute{
			Name:        name,
			DataType:    v.DataType,
			StringValue: v.StringValue,
			BinaryValue: v.BinaryValue,
		})
	}
	return ids.AttributesMD5(list)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
