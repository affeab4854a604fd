package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ids"
	"github.com/kibertoad/fauxqs/internal/fauxqs/queue"
	"github.com/kibertoad/fauxqs/internal/fauxqs/region"
)

// wireAttr is the AWS SQS JSON-protocol wire shape for one message
// attribute.
type wireAttr struct {
	DataType    string `json:"DataType"`
	StringValue string `json:"StringValue,omitempty"`
	BinaryValue string `json:"BinaryValue,omitempty"` // base64
}

func decodeMessageAttrs(in map[string]wireAttr) map[string]queue.MessageAttributeValue {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]queue.MessageAttributeValue, len(in))
	for name, v := range in {
		mv := queue.MessageAttributeValue{DataType: v.DataType, StringValue: v.StringValue}
		if v.BinaryValue != "" {
			if b, err := base64.StdEncoding.DecodeString(v.BinaryValue); err == nil {
				mv.BinaryValue = b
			}
		}
		out[name] = mv
	}
	return out
}

func encodeMessageAttrs(in map[string]queue.MessageAttributeValue) map[string]wireAttr {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]wireAttr, len(in))
	for name, v := range in {
		wa := wireAttr{DataType: v.DataType, StringValue: v.StringValue}
		if len(v.BinaryValue) > 0 {
			wa.BinaryValue = base64.StdEncoding.EncodeToString(v.BinaryValue)
		}
		out[name] = wa
	}
	return out
}

// queueNameFromURL extracts the queue name from a queue URL's last path
// segment (".../000000000000/<name>").
func queueNameFromURL(queueURL string) string {
	queueURL = strings.TrimSuffix(queueURL, "/")
	idx := strings.LastIndex(queueURL, "/")
	if idx < 0 {
		return queueURL
	}
	return queueURL[idx+1:]
}

func (s *Server) queueURL(r *http.Request, reg, name string) string {
	host := s.cfg.Host
	if host == "" {
		host = r.Host
	}
	return region.QueueURL("http", reg, host, 0, name)
}

// redriveWire is the JSON-encoded-string wire shape SQS embeds in the
// RedrivePolicy attribute value.
type redriveWire struct {
	DeadLetterTargetArn string `json:"deadLetterTargetArn"`
	MaxReceiveCount     int    `json:"maxReceiveCount"`
}

// setWireAttribute sets the queue.Attributes field named by a wire
// attribute name from its string value, for the string-valued JSON
// protocol's attribute map.
func setWireAttribute(attrs *queue.Attributes, name, value string) error {
	asInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, ferr.NewInvalidParameter("InvalidAttributeValue",
				fmt.Sprintf("Invalid value for the parameter %s", name))
		}
		return n, nil
	}
	switch name {
	case "VisibilityTimeout":
		n, err := asInt()
		if err != nil {
			return err
		}
		attrs.VisibilityTimeout = n
	case "DelaySeconds":
		n, err := asInt()
		if err != nil {
			return err
		}
		attrs.DelaySeconds = n
	case "MaximumMessageSize":
		n, err := asInt()
		if err != nil {
			return err
		}
		attrs.MaximumMessageSize = n
	case "MessageRetentionPeriod":
		n, err := asInt()
		if err != nil {
			return err
		}
		attrs.MessageRetentionPeriod = n
	case "ReceiveMessageWaitTimeSeconds":
		n, err := asInt()
		if err != nil {
			return err
		}
		attrs.ReceiveMessageWaitTimeSeconds = n
	case "KmsDataKeyReusePeriodSeconds":
		n, err := asInt()
		if err != nil {
			return err
		}
		attrs.KmsDataKeyReusePeriodSeconds = n
	case "KmsMasterKeyId":
		attrs.KmsMasterKeyID = value
	case "ContentBasedDeduplication":
		attrs.ContentBasedDeduplication = value == "true"
	case "Policy":
		attrs.Policy = value
	case "RedrivePolicy":
		var rw redriveWire
		if err := json.Unmarshal([]byte(value), &rw); err != nil {
			return ferr.NewInvalidParameter("InvalidAttributeValue", "Invalid value for the parameter RedrivePolicy")
		}
		attrs.RedrivePolicy = &queue.RedrivePolicy{DeadLetterTargetArn: rw.DeadLetterTargetArn, MaxReceiveCount: rw.MaxReceiveCount}
	case "FifoQueue", "QueueArn", "ApproximateNumberOfMessages",
		"ApproximateNumberOfMessagesNotVisible", "ApproximateNumberOfMessagesDelayed",
		"CreatedTimestamp", "LastModifiedTimestamp":
		// read-only or derived from the name; ignored on input.
	default:
		return ferr.NewInvalidParameter("InvalidAttributeName", fmt.Sprintf("Unknown attribute name %s", name))
	}
	return nil
}

// attributesFromWire builds a queue.Attributes starting from the
// defaults, applying every entry of raw.
func attributesFromWire(raw map[string]string) (queue.Attributes, error) {
	attrs := queue.DefaultAttributes()
	for name, value := range raw {
		if err := setWireAttribute(&attrs, name, value); err != nil {
			return attrs, err
		}
	}
	if err := queue.ValidateAttributes(attrs); err != nil {
		return attrs, err
	}
	return attrs, nil
}

// attributeUpdatesFromWire converts a string-valued attribute map into
// the typed update map queue.Queue.SetAttributes expects.
func attributeUpdatesFromWire(raw map[string]string) (map[string]interface{}, error) {
	base := queue.DefaultAttributes()
	updates := make(map[string]interface{}, len(raw))
	for name, value := range raw {
		if err := setWireAttribute(&base, name, value); err != nil {
			return nil, err
		}
	}
	for name := range raw {
		switch name {
		case "VisibilityTimeout":
			updates[name] = base.VisibilityTimeout
		case "DelaySeconds":
			updates[name] = base.DelaySeconds
		case "MaximumMessageSize":
			updates[name] = base.MaximumMessageSize
		case "MessageRetentionPeriod":
			updates[name] = base.MessageRetentionPeriod
		case "ReceiveMessageWaitTimeSeconds":
			updates[name] = base.ReceiveMessageWaitTimeSeconds
		case "KmsDataKeyReusePeriodSeconds":
			updates[name] = base.KmsDataKeyReusePeriodSeconds
		case "KmsMasterKeyId":
			updates[name] = base.KmsMasterKeyID
		case "ContentBasedDeduplication":
			updates[name] = base.ContentBasedDeduplication
		case "Policy":
			updates[name] = base.Policy
		case "RedrivePolicy":
			updates[name] = base.RedrivePolicy
		}
	}
	return updates, nil
}

func attributesToWire(a queue.Attributes, arn string, counts func() (int, int, int)) map[string]string {
	ready, inflight, delayed := counts()
	out := map[string]string{
		"VisibilityTimeout":             strconv.Itoa(a.VisibilityTimeout),
		"DelaySeconds":                  strconv.Itoa(a.DelaySeconds),
		"MaximumMessageSize":            strconv.Itoa(a.MaximumMessageSize),
		"MessageRetentionPeriod":        strconv.Itoa(a.MessageRetentionPeriod),
		"ReceiveMessageWaitTimeSeconds": strconv.Itoa(a.ReceiveMessageWaitTimeSeconds),
		"KmsDataKeyReusePeriodSeconds":  strconv.Itoa(a.KmsDataKeyReusePeriodSeconds),
		"ContentBasedDeduplication":     strconv.FormatBool(a.ContentBasedDeduplication),
		"QueueArn":                      arn,
		"ApproximateNumberOfMessages":   strconv.Itoa(ready),
		"ApproximateNumberOfMessagesNotVisible": strconv.Itoa(inflight),
		"ApproximateNumberOfMessagesDelayed":    strconv.Itoa(delayed),
	}
	if a.KmsMasterKeyID != "" {
		out["KmsMasterKeyId"] = a.KmsMasterKeyID
	}
	if a.Policy != "" {
		out["Policy"] = a.Policy
	}
	if a.RedrivePolicy != nil {
		buf, _ := json.Marshal(redriveWire{DeadLetterTargetArn: a.RedrivePolicy.DeadLetterTargetArn, MaxReceiveCount: a.RedrivePolicy.MaxReceiveCount})
		out["RedrivePolicy"] = string(buf)
	}
	return out
}

func jsonField[T any](body map[string]json.RawMessage, key string, dst *T) {
	raw, ok := body[key]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func lookupQueue(body map[string]json.RawMessage, qs *queue.Store) (*queue.Queue, string, error) {
	var queueURL string
	jsonField(body, "QueueUrl", &queueURL)
	name := queueNameFromURL(queueURL)
	q, err := qs.GetQueue(name)
	return q, name, err
}

// handleSQS decodes the JSON body and dispatches to the region's Queue
// Store, per spec.md §6's JSON-protocol (application/x-amz-json-1.0)
// rule.
func (s *Server) handleSQS(w http.ResponseWriter, r *http.Request, reg, action string) {
	var body map[string]json.RawMessage
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	qs := s.engine.Router.QueueStore(reg)

	switch action {
	case "CreateQueue":
		s.sqsCreateQueue(w, r, body, qs, reg)
	case "GetQueueUrl":
		s.sqsGetQueueURL(w, r, body, qs, reg)
	case "DeleteQueue":
		s.sqsDeleteQueue(w, body, qs)
	case "ListQueues":
		s.sqsListQueues(w, r, body, qs, reg)
	case "SendMessage":
		s.sqsSendMessage(w, body, qs)
	case "SendMessageBatch":
		s.sqsSendMessageBatch(w, body, qs)
	case "ReceiveMessage":
		s.sqsReceiveMessage(w, r, body, qs)
	case "DeleteMessage":
		s.sqsDeleteMessage(w, body, qs)
	case "DeleteMessageBatch":
		s.sqsDeleteMessageBatch(w, body, qs)
	case "ChangeMessageVisibility":
		s.sqsChangeVisibility(w, body, qs)
	case "PurgeQueue":
		s.sqsPurgeQueue(w, body, qs)
	case "GetQueueAttributes":
		s.sqsGetAttributes(w, body, qs)
	case "SetQueueAttributes":
		s.sqsSetAttributes(w, body, qs)
	case "TagQueue":
		s.sqsTagQueue(w, body, qs)
	case "UntagQueue":
		s.sqsUntagQueue(w, body, qs)
	case "ListQueueTags":
		s.sqsListTags(w, body, qs)
	default:
		writeSQSError(w, ferr.NewInvalidParameter("InvalidAction", "Unknown SQS action "+action))
	}
}

func (s *Server) sqsCreateQueue(w http.ResponseWriter, r *http.Request, body map[string]json.RawMessage, qs *queue.Store, reg string) {
	var name string
	jsonField(body, "QueueName", &name)
	var rawAttrs map[string]string
	jsonField(body, "Attributes", &rawAttrs)
	attrs, err := attributesFromWire(rawAttrs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var tags map[string]string
	jsonField(body, "tags", &tags)

	if _, err := qs.CreateQueue(name, attrs, tags); err != nil {
		writeSQSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"QueueUrl": s.queueURL(r, reg, name)})
}

func (s *Server) sqsGetQueueURL(w http.ResponseWriter, r *http.Request, body map[string]json.RawMessage, qs *queue.Store, reg string) {
	var name string
	jsonField(body, "QueueName", &name)
	if _, err := qs.GetQueue(name); err != nil {
		writeSQSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"QueueUrl": s.queueURL(r, reg, name)})
}

func (s *Server) sqsDeleteQueue(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	_, name, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	if err := qs.DeleteQueue(name); err != nil {
		writeSQSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) sqsListQueues(w http.ResponseWriter, r *http.Request, body map[string]json.RawMessage, qs *queue.Store, reg string) {
	var prefix string
	jsonField(body, "QueueNamePrefix", &prefix)
	names := qs.ListQueues(prefix)
	urls := make([]string, 0, len(names))
	for _, n := range names {
		urls = append(urls, s.queueURL(r, reg, n))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"QueueUrls": urls})
}

func (s *Server) sqsSendMessage(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var in struct {
		MessageBody             string
		DelaySeconds            *int
		MessageAttributes       map[string]wireAttr
		MessageGroupId          string
		MessageDeduplicationId  string
	}
	jsonField(body, "MessageBody", &in.MessageBody)
	jsonField(body, "DelaySeconds", &in.DelaySeconds)
	jsonField(body, "MessageAttributes", &in.MessageAttributes)
	jsonField(body, "MessageGroupId", &in.MessageGroupId)
	jsonField(body, "MessageDeduplicationId", &in.MessageDeduplicationId)

	res, err := q.SendMessage(queue.SendInput{
		Body:                   in.MessageBody,
		Attributes:             decodeMessageAttrs(in.MessageAttributes),
		DelaySeconds:           in.DelaySeconds,
		MessageGroupID:         in.MessageGroupId,
		MessageDeduplicationID: in.MessageDeduplicationId,
	})
	if err != nil {
		writeSQSError(w, err)
		return
	}
	if s.engine.Metrics != nil {
		s.engine.Metrics.RecordSend(q.Region, q.Name)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"MessageId":              res.MessageID,
		"MD5OfMessageBody":       res.MD5OfBody,
		"MD5OfMessageAttributes": res.MD5OfMessageAttributes,
		"SequenceNumber":         res.SequenceNumber,
	})
}

func (s *Server) sqsSendMessageBatch(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var wireEntries []struct {
		Id                      string
		MessageBody             string
		DelaySeconds            *int
		MessageAttributes       map[string]wireAttr
		MessageGroupId          string
		MessageDeduplicationId  string
	}
	jsonField(body, "Entries", &wireEntries)

	entries := make([]queue.BatchEntry, 0, len(wireEntries))
	for _, e := range wireEntries {
		entries = append(entries, queue.BatchEntry{
			ID: e.Id,
			SendInput: queue.SendInput{
				Body:                   e.MessageBody,
				Attributes:             decodeMessageAttrs(e.MessageAttributes),
				DelaySeconds:           e.DelaySeconds,
				MessageGroupID:         e.MessageGroupId,
				MessageDeduplicationID: e.MessageDeduplicationId,
			},
		})
	}

	results, failures, err := q.SendMessageBatch(entries)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	successful := make([]map[string]string, 0, len(results))
	for _, r := range results {
		successful = append(successful, map[string]string{
			"Id":                     r.ID,
			"MessageId":              r.MessageID,
			"MD5OfMessageBody":       r.MD5OfBody,
			"MD5OfMessageAttributes": r.MD5OfMessageAttributes,
			"SequenceNumber":         r.SequenceNumber,
		})
	}
	failed := make([]map[string]interface{}, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, map[string]interface{}{
			"Id":          f.ID,
			"Code":        f.Code,
			"Message":     f.Message,
			"SenderFault": f.SenderFault,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"Successful": successful, "Failed": failed})
}

func (s *Server) sqsReceiveMessage(w http.ResponseWriter, r *http.Request, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var in struct {
		MaxNumberOfMessages int
		WaitTimeSeconds     int
		VisibilityTimeout   *int
		AttributeNames      []string
	}
	jsonField(body, "MaxNumberOfMessages", &in.MaxNumberOfMessages)
	jsonField(body, "WaitTimeSeconds", &in.WaitTimeSeconds)
	jsonField(body, "VisibilityTimeout", &in.VisibilityTimeout)
	jsonField(body, "AttributeNames", &in.AttributeNames)

	resolveDLQ := qs.ResolveDLQByArn
	msgs, err := q.ReceiveMessage(r.Context(), s.engine, resolveDLQ, queue.ReceiveInput{
		MaxNumberOfMessages: in.MaxNumberOfMessages,
		WaitTimeSeconds:     in.WaitTimeSeconds,
		VisibilityTimeout:   in.VisibilityTimeout,
		AttributeNames:      in.AttributeNames,
	})
	if err != nil {
		writeSQSError(w, err)
		return
	}
	if s.engine.Metrics != nil {
		for range msgs {
			s.engine.Metrics.RecordReceive(q.Region, q.Name)
		}
	}

	out := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]interface{}{
			"MessageId":         m.ID,
			"ReceiptHandle":     m.ReceiptHandle,
			"Body":              m.Body,
			"MD5OfBody":         ids.BodyMD5(m.Body),
			"MessageAttributes": encodeMessageAttrs(m.Attributes),
			"Attributes": map[string]string{
				"SentTimestamp":          strconv.FormatInt(m.SentTimestamp.UnixMilli(), 10),
				"ApproximateReceiveCount": strconv.Itoa(m.ReceiveCount),
				"SequenceNumber":         m.SequenceNumber,
				"MessageGroupId":         m.MessageGroupID,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"Messages": out})
}

func (s *Server) sqsDeleteMessage(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var handle string
	jsonField(body, "ReceiptHandle", &handle)
	if err := q.DeleteMessage(handle); err != nil {
		writeSQSError(w, err)
		return
	}
	if s.engine.Metrics != nil {
		s.engine.Metrics.RecordDelete(q.Region, q.Name)
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) sqsDeleteMessageBatch(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var entries []struct {
		Id            string
		ReceiptHandle string
	}
	jsonField(body, "Entries", &entries)
	handles := make(map[string]string, len(entries))
	for _, e := range entries {
		handles[e.Id] = e.ReceiptHandle
	}
	ok, failed := q.DeleteMessageBatch(handles)
	successful := make([]map[string]string, 0, len(ok))
	for _, id := range ok {
		successful = append(successful, map[string]string{"Id": id})
	}
	failedOut := make([]map[string]interface{}, 0, len(failed))
	for id, ferrErr := range failed {
		failedOut = append(failedOut, map[string]interface{}{
			"Id": id, "Code": "ReceiptHandleIsInvalid", "Message": ferrErr.Error(), "SenderFault": true,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"Successful": successful, "Failed": failedOut})
}

func (s *Server) sqsChangeVisibility(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var handle string
	var timeout int
	jsonField(body, "ReceiptHandle", &handle)
	jsonField(body, "VisibilityTimeout", &timeout)
	if err := q.ChangeMessageVisibility(handle, timeout); err != nil {
		writeSQSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) sqsPurgeQueue(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	q.PurgeQueue()
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) sqsGetAttributes(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	attrs := q.GetAttributes()
	out := attributesToWire(attrs, q.Arn(), q.Counts)
	if s.engine.Metrics != nil {
		ready, inflight, delayed := q.Counts()
		s.engine.Metrics.SetQueueDepth(q.Region, q.Name, ready, inflight, delayed)
	}
	writeJSON(w, http.StatusOK, map[string]map[string]string{"Attributes": out})
}

func (s *Server) sqsSetAttributes(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var rawAttrs map[string]string
	jsonField(body, "Attributes", &rawAttrs)
	updates, err := attributeUpdatesFromWire(rawAttrs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	if err := q.SetAttributes(updates); err != nil {
		writeSQSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) sqsTagQueue(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var tags map[string]string
	jsonField(body, "Tags", &tags)
	if q.Tags == nil {
		q.Tags = make(map[string]string)
	}
	for k, v := range tags {
		q.Tags[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) sqsUntagQueue(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	var keys []string
	jsonField(body, "TagKeys", &keys)
	for _, k := range keys {
		delete(q.Tags, k)
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) sqsListTags(w http.ResponseWriter, body map[string]json.RawMessage, qs *queue.Store) {
	q, _, err := lookupQueue(body, qs)
	if err != nil {
		writeSQSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]map[string]string{"Tags": q.Tags})
}
