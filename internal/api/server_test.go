package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibertoad/fauxqs/internal/fauxqs/engine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng := engine.New(engine.Options{DefaultRegion: "us-east-1"})
	return NewServer(eng, Config{Host: "localhost"})
}

func sqsRequest(t *testing.T, s *Server, action string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-amz-json-1.0")
	req.Header.Set("X-Amz-Target", "AmazonSQS."+action)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func snsRequest(t *testing.T, s *Server, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSQS_CreateQueue_SendReceiveDelete(t *testing.T) {
	s := newTestServer(t)

	rec := sqsRequest(t, s, "CreateQueue", `{"QueueName":"my-queue"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "QueueUrl")

	rec = sqsRequest(t, s, "SendMessage", `{"QueueUrl":"http://localhost/000000000000/my-queue","MessageBody":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "MessageId")

	rec = sqsRequest(t, s, "ReceiveMessage", `{"QueueUrl":"http://localhost/000000000000/my-queue","MaxNumberOfMessages":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "hello")
}

func TestSQS_GetQueueURL_UnknownQueue(t *testing.T) {
	s := newTestServer(t)
	rec := sqsRequest(t, s, "GetQueueUrl", `{"QueueName":"does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "__type")
}

func TestSNS_CreateTopicAndPublish(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"Action": {"CreateTopic"}, "Name": {"my-topic"}}
	rec := snsRequest(t, s, form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "TopicArn")

	form = url.Values{
		"Action":   {"Publish"},
		"TopicArn": {"arn:aws:sns:us-east-1:000000000000:my-topic"},
		"Message":  {"hi there"},
	}
	rec = snsRequest(t, s, form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "MessageId")
}

func TestSTS_GetCallerIdentity(t *testing.T) {
	s := newTestServer(t)
	form := url.Values{"Action": {"GetCallerIdentity"}}
	rec := snsRequest(t, s, form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "000000000000")
}

func TestS3_CreateBucketPutGetObject(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/my-bucket", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/my-bucket/hello.txt", strings.NewReader("hello world"))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	etag := rec.Header().Get("ETag")
	assert.NotEmpty(t, etag)

	req = httptest.NewRequest(http.MethodGet, "/my-bucket/hello.txt", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
}

func TestS3_GetObject_NotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPut, "/my-bucket", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/my-bucket/missing.txt", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInspect_ListQueuesAndDetail(t *testing.T) {
	s := newTestServer(t)

	rec := sqsRequest(t, s, "CreateQueue", `{"QueueName":"inspect-me"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/_fauxqs/queues", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inspect-me")

	req = httptest.NewRequest(http.MethodGet, "/_fauxqs/queues/inspect-me", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"ready\"")

	req = httptest.NewRequest(http.MethodGet, "/_fauxqs/queues/does-not-exist", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
