package api

import (
	"net/http"
	"strings"

	"github.com/kibertoad/fauxqs/internal/fauxqs/queue"
)

// handleInspect answers the read-only inspection endpoints of spec.md
// §4.6 / §6: GET /_fauxqs/queues and GET /_fauxqs/queues/:name. These
// never move messages between states, renew visibility, or consume a
// receive token.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) dispatched {
	path := strings.TrimPrefix(r.URL.Path, "/_fauxqs/")

	if path == "queues" && r.Method == http.MethodGet {
		s.inspectListQueues(w, r)
		return dispatched{"inspect", "ListQueues"}
	}

	if name, ok := strings.CutPrefix(path, "queues/"); ok && r.Method == http.MethodGet {
		s.inspectQueueDetail(w, r, name)
		return dispatched{"inspect", "QueueDetail"}
	}

	writePlainJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	return dispatched{"inspect", "unknown"}
}

type inspectQueueSummary struct {
	Name                     string `json:"name"`
	URL                      string `json:"url"`
	Arn                      string `json:"arn"`
	ApproximateMessageCount  int    `json:"approximateMessageCount"`
	ApproximateInflightCount int    `json:"approximateInflightCount"`
	ApproximateDelayedCount  int    `json:"approximateDelayedCount"`
}

func (s *Server) inspectListQueues(w http.ResponseWriter, r *http.Request) {
	reg := s.engine.Router.Resolve(r.Header.Get("Authorization"))
	qs := s.engine.Router.QueueStore(reg)

	out := make([]inspectQueueSummary, 0)
	for _, q := range qs.AllQueuesSorted() {
		ready, inflight, delayed := q.Counts()
		out = append(out, inspectQueueSummary{
			Name:                     q.Name,
			URL:                      s.queueURL(r, reg, q.Name),
			Arn:                      q.Arn(),
			ApproximateMessageCount:  ready,
			ApproximateInflightCount: inflight,
			ApproximateDelayedCount:  delayed,
		})
	}
	writePlainJSON(w, http.StatusOK, out)
}

type inspectMessage struct {
	ID         string            `json:"id"`
	Body       string            `json:"body"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type inspectQueueDetailBody struct {
	Name     string           `json:"name"`
	Ready    []inspectMessage `json:"ready"`
	Delayed  []inspectMessage `json:"delayed"`
	Inflight []inspectMessage `json:"inflight"`
}

func (s *Server) inspectQueueDetail(w http.ResponseWriter, r *http.Request, name string) {
	reg := s.engine.Router.Resolve(r.Header.Get("Authorization"))
	qs := s.engine.Router.QueueStore(reg)

	q, err := qs.GetQueue(name)
	if err != nil {
		writePlainJSON(w, http.StatusNotFound, map[string]string{"error": "no such queue"})
		return
	}

	snap := q.Snapshot()
	writePlainJSON(w, http.StatusOK, inspectQueueDetailBody{
		Name:     name,
		Ready:    toInspectMessages(snap.Ready),
		Delayed:  toInspectMessages(snap.Delayed),
		Inflight: toInspectMessages(snap.Inflight),
	})
}

func toInspectMessages(msgs []*queue.Message) []inspectMessage {
	out := make([]inspectMessage, 0, len(msgs))
	for _, m := range msgs {
		attrs := make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			attrs[k] = v.StringValue
		}
		out = append(out, inspectMessage{ID: m.ID, Body: m.Body, Attributes: attrs})
	}
	return out
}
