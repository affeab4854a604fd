// Package region implements the Region Router: it dispatches each wire
// request to a per-(service, region) store, extracting the region from
// an AWS SigV4 Credential field when present and falling back to a
// configured default otherwise, per spec.md §4.7.
package region

import (
	"regexp"
	"sort"
	"sync"

	"github.com/kibertoad/fauxqs/internal/fauxqs/bucket"
	"github.com/kibertoad/fauxqs/internal/fauxqs/queue"
	"github.com/kibertoad/fauxqs/internal/fauxqs/topic"
)

// EventSink is the common shape queue.Store and bucket.Store each accept
// to wire up the message spy (topic.Publish takes one per call).
type EventSink interface {
	RecordEvent(kind, region, resourceName, messageID, body string)
}

// Router owns one queue.Store, topic.Store and bucket.Store per region,
// created lazily on first reference — no region is ever pre-declared.
type Router struct {
	defaultRegion string
	sink          EventSink

	mu      sync.RWMutex
	queues  map[string]*queue.Store
	topics  map[string]*topic.Store
	buckets map[string]*bucket.Store
}

// New creates a Router that falls back to defaultRegion when a request
// carries no resolvable SigV4 credential.
func New(defaultRegion string) *Router {
	return &Router{
		defaultRegion: defaultRegion,
		queues:        make(map[string]*queue.Store),
		topics:        make(map[string]*topic.Store),
		buckets:       make(map[string]*bucket.Store),
	}
}

// SetEventSink attaches a shared EventSink; every queue and bucket store
// created from now on (and retroactively, every one that already exists)
// reports to it. Topic stores are not given the sink.
func (r *Router) SetEventSink(sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
	for _, s := range r.queues {
		s.SetEventSink(sink)
	}
	for _, s := range r.buckets {
		s.SetEventSink(sink)
	}
}

// DefaultRegion returns the configured fallback region.
func (r *Router) DefaultRegion() string { return r.defaultRegion }

// QueueStore returns (creating if necessary) the Queue Store for region.
func (r *Router) QueueStore(region string) *queue.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.queues[region]
	if !ok {
		s = queue.NewStore(region)
		if r.sink != nil {
			s.SetEventSink(r.sink)
		}
		r.queues[region] = s
	}
	return s
}

// TopicStore returns (creating if necessary) the Topic Store for region.
func (r *Router) TopicStore(region string) *topic.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.topics[region]
	if !ok {
		s = topic.NewStore(region)
		r.topics[region] = s
	}
	return s
}

// BucketStore returns (creating if necessary) the Bucket Store for region.
func (r *Router) BucketStore(region string) *bucket.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.buckets[region]
	if !ok {
		s = bucket.NewStore(region)
		if r.sink != nil {
			s.SetEventSink(r.sink)
		}
		r.buckets[region] = s
	}
	return s
}

// Regions returns every region that has at least one store created,
// for the timer wheel to sweep in a fixed order.
func (r *Router) Regions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for reg := range r.queues {
		seen[reg] = true
	}
	for reg := range r.buckets {
		seen[reg] = true
	}
	for reg := range r.topics {
		seen[reg] = true
	}
	out := make([]string, 0, len(seen))
	for reg := range seen {
		out = append(out, reg)
	}
	sort.Strings(out)
	return out
}

var credentialRegionPattern = regexp.MustCompile(`Credential=[^/]+/\d{8}/([^/]+)/([^/]+)/aws4_request`)

// ExtractRegion parses the region segment out of a SigV4
// Authorization header's Credential field
// ("Credential=.../<date>/<region>/<service>/aws4_request"), per
// spec.md §4.7 rule 1. Returns "" if no signature is present.
func ExtractRegion(authorizationHeader string) string {
	m := credentialRegionPattern.FindStringSubmatch(authorizationHeader)
	if m == nil {
		return ""
	}
	return m[1]
}

// Resolve applies §4.7's two-step rule: prefer the signed region, fall
// back to the router's configured default.
func (r *Router) Resolve(authorizationHeader string) string {
	if reg := ExtractRegion(authorizationHeader); reg != "" {
		return reg
	}
	return r.defaultRegion
}
