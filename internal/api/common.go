package api

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
)

func invalidForm(err error) error {
	return ferr.NewInvalidParameter("InvalidParameterValue", "could not parse request: "+err.Error())
}

// responseWriter wraps http.ResponseWriter to capture the status code for
// metrics, mirroring the teacher's v1.Server.responseWriter.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func newRequestID() string { return uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writePlainJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}

// queryInt parses a form/query value as an int, returning def on absence
// or parse failure.
func queryInt(values map[string][]string, key string, def int) int {
	vs, ok := values[key]
	if !ok || len(vs) == 0 || vs[0] == "" {
		return def
	}
	n, err := strconv.Atoi(vs[0])
	if err != nil {
		return def
	}
	return n
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
