package bucket

import (
	"strconv"
	"strings"
	"time"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ids"
)

// PutObject overwrites any prior object at key, including all prior
// metadata (invariant: PutObject is a full replace, never a merge).
func (b *Bucket) PutObject(key string, body []byte, contentType string, metadata map[string]string) *Object {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj := &Object{
		Key:          key,
		Body:         body,
		ContentType:  contentType,
		Metadata:     normalizeMetadata(metadata),
		ETag:         ids.ETag(body),
		LastModified: time.Now(),
	}
	b.objects[key] = obj
	b.insertKeyLocked(key)
	return obj
}

// GetObject returns the current object at key, or NotFoundError.
func (b *Bucket) GetObject(key string) (*Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, ferr.NewNotFound("key", "The specified key does not exist.")
	}
	return obj, nil
}

// DeleteObject removes key if present; absent keys are a no-op 204 per
// spec.md §4.5 (the bucket itself must exist — checked by the caller via
// GetBucket).
func (b *Bucket) DeleteObject(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.removeKeyLocked(key)
}

// DeleteObjectResult is one outcome of a DeleteObjects batch call.
type DeleteObjectResult struct {
	Key     string
	Deleted bool
}

// DeleteObjects removes every listed key, unconditionally succeeding
// for each (matching DeleteObject's absent-key no-op semantics).
func (b *Bucket) DeleteObjects(keys []string) []DeleteObjectResult {
	out := make([]DeleteObjectResult, 0, len(keys))
	for _, k := range keys {
		b.DeleteObject(k)
		out = append(out, DeleteObjectResult{Key: k, Deleted: true})
	}
	return out
}

// ConditionalCheck validates the If-Match / If-None-Match /
// If-Unmodified-Since / If-Modified-Since headers against obj, in the
// RFC 7232 precedence order: If-Match, then If-Unmodified-Since, then
// If-None-Match, then If-Modified-Since.
type ConditionalCheck struct {
	IfMatch           string
	IfNoneMatch       string
	IfUnmodifiedSince *time.Time
	IfModifiedSince   *time.Time
}

// Evaluate applies c against obj and returns a PreconditionFailedError
// (412), a NotModifiedError (304), or nil.
func (c ConditionalCheck) Evaluate(obj *Object) error {
	if c.IfMatch != "" {
		if !etagMatches(c.IfMatch, obj.ETag) {
			return ferr.NewPreconditionFailed("At least one of the pre-conditions you specified did not hold")
		}
	}
	if c.IfMatch == "" && c.IfUnmodifiedSince != nil {
		if obj.LastModified.After(*c.IfUnmodifiedSince) {
			return ferr.NewPreconditionFailed("At least one of the pre-conditions you specified did not hold")
		}
	}
	if c.IfNoneMatch != "" {
		if etagMatches(c.IfNoneMatch, obj.ETag) {
			return ferr.NewNotModified()
		}
	}
	if c.IfModifiedSince != nil {
		if !obj.LastModified.After(*c.IfModifiedSince) {
			return ferr.NewNotModified()
		}
	}
	return nil
}

func etagMatches(header, etag string) bool {
	if header == "*" {
		return true
	}
	for _, part := range strings.Split(header, ",") {
		if strings.TrimSpace(part) == etag {
			return true
		}
	}
	return false
}

// ByteRange is a parsed Range header.
type ByteRange struct {
	Start, End int64 // inclusive, resolved against the object's size
}

// ParseRange parses the three forms from spec.md §4.5: "bytes=a-b",
// "bytes=a-" and "bytes=-n". size is the object's total length.
func ParseRange(header string, size int64) (*ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, ferr.NewRangeNotSatisfiable("Invalid Range header", size)
	}
	spec := strings.TrimPrefix(header, prefix)
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, ferr.NewRangeNotSatisfiable("Invalid Range header", size)
	}

	if parts[0] == "" {
		// "bytes=-n": last n bytes.
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return nil, ferr.NewRangeNotSatisfiable("Invalid Range header", size)
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return nil, ferr.NewRangeNotSatisfiable("Invalid Range header", size)
	}
	if start >= size {
		return nil, ferr.NewRangeNotSatisfiable(
			"The requested range is not satisfiable", size)
	}

	if parts[1] == "" {
		return &ByteRange{Start: start, End: size - 1}, nil
	}

	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return nil, ferr.NewRangeNotSatisfiable("Invalid Range header", size)
	}
	if end >= size {
		end = size - 1
	}
	return &ByteRange{Start: start, End: end}, nil
}
