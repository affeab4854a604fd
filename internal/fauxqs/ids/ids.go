// Package ids generates message ids, receipt handles, ARNs and ETags,
// and computes the MD5 digests AWS clients expect for message bodies
// and attribute blobs.
package ids

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// NewMessageID mints a fresh SQS/SNS message id.
func NewMessageID() string {
	return uuid.NewString()
}

// NewReceiptHandle mints an opaque receipt handle. Handles are random
// and carry no decodable structure — the in-flight entry they name is
// looked up by value, matching AWS's own opaque handles.
func NewReceiptHandle() string {
	return base64.RawURLEncoding.EncodeToString([]byte(uuid.NewString() + uuid.NewString()))
}

// NewUploadID mints a fresh S3 multipart upload id. Distinct even when
// CreateMultipartUpload is called twice for the same key.
func NewUploadID() string {
	return uuid.NewString()
}

// NewSubscriptionToken mints an opaque confirmation token for
// ConfirmSubscription flows that don't auto-confirm.
func NewSubscriptionToken() string {
	return uuid.NewString()
}

// MessageAttribute is the minimal shape ids needs to compute the
// attribute-blob MD5; queue/topic define their own richer attribute type
// and convert to this at the point of hashing.
type MessageAttribute struct {
	Name        string
	DataType    string
	StringValue string
	BinaryValue []byte
}

// BodyMD5 returns the hex MD5 digest of body, per AWS's MD5OfBody.
func BodyMD5(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// AttributesMD5 returns the hex MD5 digest of the sorted attribute blob,
// per AWS's MD5OfMessageAttributes. The wire format, per name in
// ascending order, is:
//
//	len(name) || name || len(dataType) || dataType || transportType || len(value) || value
//
// where transportType is 1 for string values and 2 for binary values,
// and all lengths are 4-byte big-endian.
func AttributesMD5(attrs []MessageAttribute) string {
	if len(attrs) == 0 {
		return ""
	}
	sorted := make([]MessageAttribute, len(attrs))
	copy(sorted, attrs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	buf := make([]byte, 0, 256)
	for _, a := range sorted {
		buf = appendLengthPrefixed(buf, []byte(a.Name))
		buf = appendLengthPrefixed(buf, []byte(a.DataType))
		if len(a.BinaryValue) > 0 || a.DataType == "Binary" || hasBinaryPrefix(a.DataType) {
			buf = append(buf, 0x02)
			buf = appendLengthPrefixed(buf, a.BinaryValue)
		} else {
			buf = append(buf, 0x01)
			buf = appendLengthPrefixed(buf, []byte(a.StringValue))
		}
	}
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:])
}

func hasBinaryPrefix(dataType string) bool {
	return len(dataType) >= 6 && dataType[:6] == "Binary"
}

func appendLengthPrefixed(buf, value []byte) []byte {
	n := uint32(len(value))
	buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(buf, value...)
}

// SHA256Hex returns the hex SHA-256 digest of s, used for FIFO
// content-based deduplication.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ETag returns a quoted hex-MD5 ETag for a single-part S3 object body.
func ETag(body []byte) string {
	sum := md5.Sum(body)
	return fmt.Sprintf("%q", hex.EncodeToString(sum[:]))
}

// MultipartETag returns the quoted ETag for a completed multipart
// upload: hex-MD5 of the concatenation of each part's raw (binary) MD5
// digest, suffixed with "-<partCount>".
func MultipartETag(partMD5s [][16]byte) string {
	buf := make([]byte, 0, len(partMD5s)*16)
	for _, d := range partMD5s {
		buf = append(buf, d[:]...)
	}
	sum := md5.Sum(buf)
	return fmt.Sprintf("%q", hex.EncodeToString(sum[:])+fmt.Sprintf("-%d", len(partMD5s)))
}

// RawMD5 returns the raw (unhexed, unquoted) MD5 digest of body, for
// feeding into MultipartETag.
func RawMD5(body []byte) [16]byte {
	return md5.Sum(body)
}
