package api

import (
	"encoding/xml"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/kibertoad/fauxqs/internal/fauxqs/engine"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/queue"
	"github.com/kibertoad/fauxqs/internal/fauxqs/topic"
)

// snsAttrPattern matches the query-protocol's indexed message-attribute
// form fields: "MessageAttributes.entry.<n>.Name" /
// "MessageAttributes.entry.<n>.Value.StringValue" etc.
var snsAttrPattern = regexp.MustCompile(`^MessageAttributes\.entry\.(\d+)\.(Name|Value\.DataType|Value\.StringValue|Value\.BinaryValue)$`)

func parseFormMessageAttributes(form map[string][]string) map[string]queue.MessageAttributeValue {
	type entry struct{ name, dataType, stringValue string }
	entries := make(map[string]*entry)
	for key, values := range form {
		m := snsAttrPattern.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		idx := m[1]
		e, ok := entries[idx]
		if !ok {
			e = &entry{}
			entries[idx] = e
		}
		switch m[2] {
		case "Name":
			e.name = values[0]
		case "Value.DataType":
			e.dataType = values[0]
		case "Value.StringValue":
			e.stringValue = values[0]
		}
	}
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]queue.MessageAttributeValue, len(entries))
	for _, e := range entries {
		if e.name == "" {
			continue
		}
		out[e.name] = queue.MessageAttributeValue{DataType: e.dataType, StringValue: e.stringValue}
	}
	return out
}

func topicNameFromArn(arn string) string {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 {
		return arn
	}
	return arn[idx+1:]
}

// handleSNS dispatches one query-protocol request (application/x-www-form-
// urlencoded, Action=<Name>) against the region's Topic Store.
func (s *Server) handleSNS(w http.ResponseWriter, r *http.Request, reg, action string) {
	ts := s.engine.Router.TopicStore(reg)
	form := r.Form

	switch action {
	case "CreateTopic":
		s.snsCreateTopic(w, form, ts, reg)
	case "DeleteTopic":
		s.snsDeleteTopic(w, form, ts)
	case "ListTopics":
		s.snsListTopics(w, ts)
	case "GetTopicAttributes":
		s.snsGetTopicAttributes(w, form, ts)
	case "SetTopicAttributes":
		s.snsSetTopicAttributes(w, form, ts)
	case "Subscribe":
		s.snsSubscribe(w, form, ts)
	case "Unsubscribe":
		s.snsUnsubscribe(w, form, ts)
	case "ConfirmSubscription":
		s.snsConfirmSubscription(w, form, ts)
	case "ListSubscriptionsByTopic":
		s.snsListSubscriptionsByTopic(w, form, ts)
	case "Publish":
		s.snsPublish(w, form, ts)
	case "TagResource":
		s.snsTagResource(w, form, ts)
	case "UntagResource":
		s.snsUntagResource(w, form, ts)
	case "ListTagsForResource":
		s.snsListTagsForResource(w, form, ts)
	default:
		writeSNSError(w, ferr.NewInvalidParameter("InvalidAction", "Unknown SNS action "+action))
	}
}

type metadataEnvelope struct {
	RequestID string `xml:"RequestId"`
}

func (s *Server) snsCreateTopic(w http.ResponseWriter, form map[string][]string, ts *topic.Store, reg string) {
	name := formValue(form, "Name")
	attrs := topic.Attributes{
		DisplayName:               attributeEntryValue(form, "DisplayName"),
		ContentBasedDeduplication: attributeEntryValue(form, "ContentBasedDeduplication") == "true",
	}

	t, err := ts.CreateTopic(name, attrs, nil)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	type resp struct {
		XMLName   xml.Name `xml:"CreateTopicResponse"`
		TopicArn  string   `xml:"CreateTopicResult>TopicArn"`
		RequestID string   `xml:"ResponseMetadata>RequestId"`
	}
	writeXML(w, http.StatusOK, resp{TopicArn: t.Arn(), RequestID: newRequestID()})
}

func (s *Server) snsDeleteTopic(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "TopicArn"))
	if err := ts.DeleteTopic(name); err != nil {
		writeSNSError(w, err)
		return
	}
	writeSimpleSNSResponse(w, "DeleteTopicResponse")
}

func (s *Server) snsListTopics(w http.ResponseWriter, ts *topic.Store) {
	arns := ts.ListTopics()
	type member struct {
		TopicArn string `xml:"TopicArn"`
	}
	type resp struct {
		XMLName   xml.Name `xml:"ListTopicsResponse"`
		Topics    []member `xml:"ListTopicsResult>Topics>member"`
		RequestID string   `xml:"ResponseMetadata>RequestId"`
	}
	members := make([]member, 0, len(arns))
	for _, a := range arns {
		members = append(members, member{TopicArn: a})
	}
	writeXML(w, http.StatusOK, resp{Topics: members, RequestID: newRequestID()})
}

func (s *Server) snsGetTopicAttributes(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "TopicArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	type entry struct {
		Key   string `xml:"key"`
		Value string `xml:"value"`
	}
	type resp struct {
		XMLName   xml.Name `xml:"GetTopicAttributesResponse"`
		Entries   []entry  `xml:"GetTopicAttributesResult>Attributes>entry"`
		RequestID string   `xml:"ResponseMetadata>RequestId"`
	}
	entries := []entry{
		{Key: "TopicArn", Value: t.Arn()},
		{Key: "DisplayName", Value: t.Attrs.DisplayName},
		{Key: "FifoTopic", Value: strconv.FormatBool(t.Attrs.FifoTopic)},
		{Key: "ContentBasedDeduplication", Value: strconv.FormatBool(t.Attrs.ContentBasedDeduplication)},
		{Key: "SubscriptionsConfirmed", Value: strconv.Itoa(len(t.Subscriptions()))},
	}
	writeXML(w, http.StatusOK, resp{Entries: entries, RequestID: newRequestID()})
}

func (s *Server) snsSetTopicAttributes(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "TopicArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	attrName := formValue(form, "AttributeName")
	attrValue := formValue(form, "AttributeValue")
	switch attrName {
	case "DisplayName":
		t.Attrs.DisplayName = attrValue
	case "ContentBasedDeduplication":
		t.Attrs.ContentBasedDeduplication = attrValue == "true"
	case "Policy":
		t.Attrs.Policy = attrValue
	}
	writeSimpleSNSResponse(w, "SetTopicAttributesResponse")
}

func (s *Server) snsSubscribe(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "TopicArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	protocol := topic.Protocol(formValue(form, "Protocol"))
	endpoint := formValue(form, "Endpoint")
	filterPolicy := attributeEntryValue(form, "FilterPolicy")
	scope := topic.ScopeMessageAttributes
	if attributeEntryValue(form, "FilterPolicyScope") == "MessageBody" {
		scope = topic.ScopeMessageBody
	}
	attrs := topic.SubscriptionAttributes{
		RawMessageDelivery: attributeEntryValue(form, "RawMessageDelivery") == "true",
		FilterPolicyScope:  scope,
	}

	sub, err := t.Subscribe(protocol, endpoint, filterPolicy, attrs)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	type resp struct {
		XMLName        xml.Name `xml:"SubscribeResponse"`
		SubscriptionArn string  `xml:"SubscribeResult>SubscriptionArn"`
		RequestID      string   `xml:"ResponseMetadata>RequestId"`
	}
	writeXML(w, http.StatusOK, resp{SubscriptionArn: sub.Arn, RequestID: newRequestID()})
}

func (s *Server) snsUnsubscribe(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	arn := formValue(form, "SubscriptionArn")
	idx := subscriptionTopicName(arn)
	t, err := ts.GetTopic(idx)
	if err == nil {
		t.Unsubscribe(arn)
	}
	writeSimpleSNSResponse(w, "UnsubscribeResponse")
}

func (s *Server) snsConfirmSubscription(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "TopicArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	arn := t.ConfirmSubscription(formValue(form, "Token"))
	type resp struct {
		XMLName        xml.Name `xml:"ConfirmSubscriptionResponse"`
		SubscriptionArn string  `xml:"ConfirmSubscriptionResult>SubscriptionArn"`
		RequestID      string   `xml:"ResponseMetadata>RequestId"`
	}
	writeXML(w, http.StatusOK, resp{SubscriptionArn: arn, RequestID: newRequestID()})
}

func (s *Server) snsListSubscriptionsByTopic(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "TopicArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	type member struct {
		SubscriptionArn string `xml:"SubscriptionArn"`
		TopicArn        string `xml:"TopicArn"`
		Protocol        string `xml:"Protocol"`
		Endpoint        string `xml:"Endpoint"`
		Owner           string `xml:"Owner"`
	}
	type resp struct {
		XMLName       xml.Name `xml:"ListSubscriptionsByTopicResponse"`
		Subscriptions []member `xml:"ListSubscriptionsByTopicResult>Subscriptions>member"`
		RequestID     string   `xml:"ResponseMetadata>RequestId"`
	}
	members := make([]member, 0)
	for _, sub := range t.Subscriptions() {
		members = append(members, member{
			SubscriptionArn: sub.Arn,
			TopicArn:        sub.TopicArn,
			Protocol:        string(sub.Protocol),
			Endpoint:        sub.Endpoint,
			Owner:           sub.Principal,
		})
	}
	writeXML(w, http.StatusOK, resp{Subscriptions: members, RequestID: newRequestID()})
}

func (s *Server) snsPublish(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "TopicArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}

	in := topic.PublishInput{
		Message:                formValue(form, "Message"),
		MessageAttributes:      parseFormMessageAttributes(form),
		MessageGroupID:         formValue(form, "MessageGroupId"),
		MessageDeduplicationID: formValue(form, "MessageDeduplicationId"),
	}

	res, err := t.Publish(in, engine.ResolveSQSSubscriptionQueue(s.engine.Router), s.engine.Pool, s.eventSink())
	if err != nil {
		writeSNSError(w, err)
		return
	}
	type resp struct {
		XMLName   xml.Name `xml:"PublishResponse"`
		MessageId string   `xml:"PublishResult>MessageId"`
		RequestID string   `xml:"ResponseMetadata>RequestId"`
	}
	writeXML(w, http.StatusOK, resp{MessageId: res.MessageID, RequestID: newRequestID()})
}

func (s *Server) snsTagResource(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "ResourceArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	tags := make(map[string]string)
	for i := 1; ; i++ {
		key := formValue(form, "Tags.member."+strconv.Itoa(i)+".Key")
		if key == "" {
			break
		}
		tags[key] = formValue(form, "Tags.member."+strconv.Itoa(i)+".Value")
	}
	t.Tag(tags)
	writeSimpleSNSResponse(w, "TagResourceResponse")
}

func (s *Server) snsUntagResource(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "ResourceArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	var keys []string
	for i := 1; ; i++ {
		key := formValue(form, "TagKeys.member."+strconv.Itoa(i))
		if key == "" {
			break
		}
		keys = append(keys, key)
	}
	t.Untag(keys)
	writeSimpleSNSResponse(w, "UntagResourceResponse")
}

func (s *Server) snsListTagsForResource(w http.ResponseWriter, form map[string][]string, ts *topic.Store) {
	name := topicNameFromArn(formValue(form, "ResourceArn"))
	t, err := ts.GetTopic(name)
	if err != nil {
		writeSNSError(w, err)
		return
	}
	type tag struct {
		Key   string `xml:"Key"`
		Value string `xml:"Value"`
	}
	type resp struct {
		XMLName   xml.Name `xml:"ListTagsForResourceResponse"`
		Tags      []tag    `xml:"ListTagsForResourceResult>Tags>member"`
		RequestID string   `xml:"ResponseMetadata>RequestId"`
	}
	var tags []tag
	for k, v := range t.ListTags() {
		tags = append(tags, tag{Key: k, Value: v})
	}
	writeXML(w, http.StatusOK, resp{Tags: tags, RequestID: newRequestID()})
}

func writeSimpleSNSResponse(w http.ResponseWriter, rootName string) {
	type resp struct {
		XMLName   xml.Name
		RequestID string `xml:"ResponseMetadata>RequestId"`
	}
	writeXML(w, http.StatusOK, resp{XMLName: xml.Name{Local: rootName}, RequestID: newRequestID()})
}

func formValue(form map[string][]string, key string) string {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// attributeEntryValue looks up a named Attributes.entry.N.{key,value}
// pair (the query protocol's map encoding) by key name, regardless of
// its numeric index.
func attributeEntryValue(form map[string][]string, name string) string {
	for i := 1; ; i++ {
		keyField := "Attributes.entry." + strconv.Itoa(i) + ".key"
		vs, ok := form[keyField]
		if !ok {
			return ""
		}
		if len(vs) > 0 && vs[0] == name {
			return formValue(form, "Attributes.entry."+strconv.Itoa(i)+".value")
		}
	}
}

func subscriptionTopicName(subscriptionArn string) string {
	// "arn:aws:sns:<region>:<account>:<topic>:<uuid>" -> "<topic>"
	parts := strings.Split(subscriptionArn, ":")
	if len(parts) < 2 {
		return subscriptionArn
	}
	return parts[len(parts)-2]
}

func (s *Server) eventSink() topic.EventSink {
	if s.engine.Spy == nil {
		return nil
	}
	return s.engine.Spy
}
