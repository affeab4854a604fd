package api

import (
	"encoding/xml"
	"errors"
	"net/http"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
)

// errStatusAndCode maps a ferr error to an HTTP status and a service-
// agnostic error code, per spec.md §7. Each protocol then wraps the pair
// in its own wire shape (SQS __type JSON, SNS/S3 XML Error).
func errStatusAndCode(err error) (status int, code, message string) {
	switch {
	case ferr.IsNotFound(err):
		return http.StatusNotFound, "NotFound", err.Error()
	case ferr.IsInvalidParameter(err):
		var e *ferr.InvalidParameterError
		code := "InvalidParameterValue"
		if errors.As(err, &e) {
			code = e.Code
		}
		return http.StatusBadRequest, code, err.Error()
	case ferr.IsConflict(err):
		var e *ferr.ConflictError
		code := "Conflict"
		if errors.As(err, &e) {
			code = e.Code
		}
		return http.StatusConflict, code, err.Error()
	case ferr.IsPreconditionFailed(err):
		return http.StatusPreconditionFailed, "PreconditionFailed", err.Error()
	case ferr.IsNotModified(err):
		return http.StatusNotModified, "NotModified", ""
	case ferr.IsRangeNotSatisfiable(err):
		return http.StatusRequestedRangeNotSatisfiable, "InvalidRange", err.Error()
	case ferr.IsBatchLevel(err):
		var e *ferr.BatchLevelError
		code := "BatchLevelError"
		if errors.As(err, &e) {
			code = e.Code
		}
		return http.StatusBadRequest, code, err.Error()
	default:
		return http.StatusInternalServerError, "InternalError", "An internal error occurred"
	}
}

// sqsErrorBody is the AWS SQS JSON-protocol error shape.
type sqsErrorBody struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func writeSQSError(w http.ResponseWriter, err error) {
	status, code, message := errStatusAndCode(err)
	writeJSON(w, status, sqsErrorBody{Type: "com.amazonaws.sqs#" + code, Message: message})
}

// snsErrorResponse is the AWS query-protocol (SNS/STS) XML error shape.
type snsErrorDetail struct {
	Type    string `xml:"Type"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

type snsErrorResponse struct {
	XMLName   xml.Name       `xml:"ErrorResponse"`
	Error     snsErrorDetail `xml:"Error"`
	RequestID string         `xml:"RequestId"`
}

func writeSNSError(w http.ResponseWriter, err error) {
	status, code, message := errStatusAndCode(err)
	errType := "Sender"
	if status >= 500 {
		errType = "Receiver"
	}
	writeXML(w, status, snsErrorResponse{
		Error:     snsErrorDetail{Type: errType, Code: code, Message: message},
		RequestID: newRequestID(),
	})
}

// s3ErrorResponse is the AWS S3 XML error shape.
type s3ErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}

func writeS3Error(w http.ResponseWriter, resource string, err error) {
	status, code, message := errStatusAndCode(err)
	if status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}
	var nf *ferr.NotFoundError
	if errors.As(err, &nf) && nf.Resource == "upload" {
		code = "NoSuchUpload"
	}
	writeXML(w, status, s3ErrorResponse{
		Code:      code,
		Message:   message,
		Resource:  resource,
		RequestID: newRequestID(),
	})
}
