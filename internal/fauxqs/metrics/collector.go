// Package metrics exposes prometheus counters/gauges/histograms over
// engine state, adapted from the teacher's internal/metrics.Collector
// (the async DB-backed metric queue has no counterpart here — fauxqs
// keeps no persistent metric store, so every metric is a direct
// prometheus instrument).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every prometheus instrument fauxqs exposes on
// /metrics.
type Collector struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	messagesDeleted  *prometheus.CounterVec
	messagesRedriven *prometheus.CounterVec

	queueDepthReady    *prometheus.GaugeVec
	queueDepthInflight *prometheus.GaugeVec
	queueDepthDelayed  *prometheus.GaugeVec

	publishFanoutDuration *prometheus.HistogramVec
	bucketObjects         *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector registers every instrument against reg (use
// prometheus.NewRegistry() per engine instance so tests don't collide on
// the global default registry).
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fauxqs_messages_sent_total",
			Help: "Total number of messages sent to a queue.",
		}, []string{"region", "queue"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fauxqs_messages_received_total",
			Help: "Total number of messages delivered by ReceiveMessage.",
		}, []string{"region", "queue"}),

		messagesDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fauxqs_messages_deleted_total",
			Help: "Total number of messages removed by DeleteMessage.",
		}, []string{"region", "queue"}),

		messagesRedriven: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fauxqs_messages_redriven_total",
			Help: "Total number of messages moved to a dead-letter queue.",
		}, []string{"region", "source_queue", "target_queue"}),

		queueDepthReady: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fauxqs_queue_ready_messages",
			Help: "Approximate number of ready messages in a queue.",
		}, []string{"region", "queue"}),

		queueDepthInflight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fauxqs_queue_inflight_messages",
			Help: "Approximate number of in-flight messages in a queue.",
		}, []string{"region", "queue"}),

		queueDepthDelayed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fauxqs_queue_delayed_messages",
			Help: "Approximate number of delayed messages in a queue.",
		}, []string{"region", "queue"}),

		publishFanoutDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fauxqs_publish_fanout_duration_seconds",
			Help:    "Time to fan a Publish call out to every matching subscription.",
			Buckets: prometheus.DefBuckets,
		}, []string{"region", "topic"}),

		bucketObjects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fauxqs_bucket_objects",
			Help: "Number of objects currently stored in a bucket.",
		}, []string{"region", "bucket"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fauxqs_http_requests_total",
			Help: "Total number of HTTP requests handled.",
		}, []string{"service", "action", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fauxqs_http_duration_seconds",
			Help:    "HTTP request handling duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "action"}),
	}
}

func (c *Collector) RecordSend(region, queueName string)    { c.messagesSent.WithLabelValues(region, queueName).Inc() }
func (c *Collector) RecordReceive(region, queueName string) { c.messagesReceived.WithLabelValues(region, queueName).Inc() }
func (c *Collector) RecordDelete(region, queueName string)  { c.messagesDeleted.WithLabelValues(region, queueName).Inc() }

func (c *Collector) RecordRedrive(region, sourceQueue, targetQueue string) {
	c.messagesRedriven.WithLabelValues(region, sourceQueue, targetQueue).Inc()
}

// SetQueueDepth updates the three gauge vectors for one queue snapshot.
func (c *Collector) SetQueueDepth(region, queueName string, ready, inflight, delayed int) {
	c.queueDepthReady.WithLabelValues(region, queueName).Set(float64(ready))
	c.queueDepthInflight.WithLabelValues(region, queueName).Set(float64(inflight))
	c.queueDepthDelayed.WithLabelValues(region, queueName).Set(float64(delayed))
}

func (c *Collector) ObservePublishFanout(region, topicName string, d time.Duration) {
	c.publishFanoutDuration.WithLabelValues(region, topicName).Observe(d.Seconds())
}

func (c *Collector) SetBucketObjects(region, bucketName string, count int) {
	c.bucketObjects.WithLabelValues(region, bucketName).Set(float64(count))
}

func (c *Collector) RecordHTTPRequest(service, action, status string) {
	c.httpRequests.WithLabelValues(service, action, status).Inc()
}

func (c *Collector) ObserveHTTPDuration(service, action string, d time.Duration) {
	c.httpDuration.WithLabelValues(service, action).Observe(d.Seconds())
}
