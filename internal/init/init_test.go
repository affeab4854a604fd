package init

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibertoad/fauxqs/internal/fauxqs/engine"
)

func TestLoad_InlineYAML(t *testing.T) {
	raw := `
queues:
  - name: orders
    attributes:
      visibilityTimeout: "45"
topics:
  - name: notifications
    subscriptions:
      - protocol: https
        endpoint: https://example.com/hook
buckets:
  - name: uploads
`
	spec, err := Load(raw)
	require.NoError(t, err)
	require.Len(t, spec.Queues, 1)
	assert.Equal(t, "orders", spec.Queues[0].Name)
	assert.Equal(t, "45", spec.Queues[0].Attrs["visibilityTimeout"])
	require.Len(t, spec.Topics, 1)
	assert.Equal(t, "notifications", spec.Topics[0].Name)
	require.Len(t, spec.Buckets, 1)
	assert.Equal(t, "uploads", spec.Buckets[0].Name)
}

func TestLoad_Empty(t *testing.T) {
	spec, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, spec.Queues)
	assert.Empty(t, spec.Topics)
	assert.Empty(t, spec.Buckets)
}

func TestLoad_RejectsMissingQueueName(t *testing.T) {
	raw := "queues:\n  - region: us-east-1\n"
	_, err := Load(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestLoad_RejectsUnknownSubscriptionProtocol(t *testing.T) {
	raw := `
topics:
  - name: notifications
    subscriptions:
      - protocol: carrier-pigeon
        endpoint: loft-1
`
	_, err := Load(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol")
}

func TestApply_CreatesQueuesTopicsAndBuckets(t *testing.T) {
	eng := engine.New(engine.Options{DefaultRegion: "us-east-1"})

	spec := &Spec{
		Queues: []QueueSpec{
			{Name: "orders", Attrs: map[string]string{"visibilityTimeout": "60"}},
		},
		Topics: []TopicSpec{
			{
				Name: "notifications",
				Subscriptions: []SubscriptionSpec{
					{Protocol: "https", Endpoint: "https://example.com/hook"},
				},
			},
		},
		Buckets: []BucketSpec{
			{Name: "uploads"},
		},
	}

	require.NoError(t, Apply(eng, spec, "us-east-1"))

	q, err := eng.Router.QueueStore("us-east-1").GetQueue("orders")
	require.NoError(t, err)
	assert.Equal(t, 60, q.Attrs.VisibilityTimeout)

	topic, err := eng.Router.TopicStore("us-east-1").GetTopic("notifications")
	require.NoError(t, err)
	assert.Len(t, topic.Subscriptions(), 1)

	_, err = eng.Router.BucketStore("us-east-1").GetBucket("uploads")
	require.NoError(t, err)
}

func TestApply_InvalidRedrivePolicyFails(t *testing.T) {
	eng := engine.New(engine.Options{DefaultRegion: "us-east-1"})
	spec := &Spec{
		Queues: []QueueSpec{
			{Name: "orders", Attrs: map[string]string{"redrivePolicy": "{not-json"}},
		},
	}
	err := Apply(eng, spec, "us-east-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders")
}
