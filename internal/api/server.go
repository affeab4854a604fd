// Package api is the HTTP transport: a single catch-all handler applying
// spec.md §6's three dispatch rules (health, inspection, then
// content-type/URL-shape protocol sniffing for SQS/SNS/S3/STS), mirroring
// the teacher's v1.Server.RegisterRoutes pattern of one mux fed by
// per-concern handlers, except dispatch here is driven by the request
// itself rather than by a path template.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kibertoad/fauxqs/internal/fauxqs/engine"
)

// Config configures the transport layer's own concerns (independent of
// the engine): the host embedded in queue URLs/virtual-hosted S3 when no
// request-derived host is available, and whether every request is
// logged.
type Config struct {
	Host          string
	RequestLogger bool
}

// Server answers every fauxqs HTTP request against one Engine.
type Server struct {
	engine *engine.Engine
	cfg    Config
}

// NewServer builds a Server bound to eng.
func NewServer(eng *engine.Engine, cfg Config) *Server {
	return &Server{engine: eng, cfg: cfg}
}

// Handler returns the http.Handler to pass to http.Server, wrapping
// dispatch with request logging and HTTP metrics, mirroring the
// teacher's RegisterRoutes wrapping (responseWriter + Collector calls).
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		action := s.dispatch(wrapped, r)

		duration := time.Since(start)
		if s.engine.Metrics != nil {
			s.engine.Metrics.RecordHTTPRequest(action.service, action.name, strconv.Itoa(wrapped.statusCode))
			s.engine.Metrics.ObserveHTTPDuration(action.service, action.name, duration)
		}
		if s.cfg.RequestLogger {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("service", action.service).
				Str("action", action.name).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Msg("request")
		}
	})
}

// dispatched identifies which protocol/action a request resolved to, for
// metrics labeling.
type dispatched struct {
	service string
	name    string
}

// dispatch applies spec.md §6's three rules in order and returns the
// resolved (service, action) pair for metrics/logging.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) dispatched {
	if r.Method == http.MethodGet && r.URL.Path == "/health" {
		writePlainJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return dispatched{"health", "check"}
	}

	if strings.HasPrefix(r.URL.Path, "/_fauxqs/") {
		return s.handleInspect(w, r)
	}

	region := s.engine.Router.Resolve(r.Header.Get("Authorization"))

	if target := r.Header.Get("X-Amz-Target"); strings.HasPrefix(target, "AmazonSQS.") {
		action := strings.TrimPrefix(target, "AmazonSQS.")
		s.handleSQS(w, r, region, action)
		return dispatched{"sqs", action}
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeSNSError(w, invalidForm(err))
			return dispatched{"sns", "unknown"}
		}
		action := r.Form.Get("Action")
		if action == "GetCallerIdentity" {
			s.handleSTS(w, r)
			return dispatched{"sts", action}
		}
		s.handleSNS(w, r, region, action)
		return dispatched{"sns", action}
	}

	name := s.handleS3(w, r, region)
	return dispatched{"s3", name}
}
