package bucket

import (
	"strings"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
)

// MetadataDirective selects how CopyObject treats metadata/content-type.
type MetadataDirective string

const (
	DirectiveCopy    MetadataDirective = "COPY"
	DirectiveReplace MetadataDirective = "REPLACE"
)

// ParseCopySource splits an `x-amz-copy-source` header value of the form
// "<bucket>/<key>" (optionally URL-decoded and leading-slashed by the
// transport layer before reaching here).
func ParseCopySource(copySource string) (bucket, key string, err error) {
	s := strings.TrimPrefix(copySource, "/")
	idx := strings.Index(s, "/")
	if idx < 0 {
		return "", "", ferr.NewInvalidParameter("InvalidArgument", "copy source must be <bucket>/<key>")
	}
	return s[:idx], s[idx+1:], nil
}

// CopyObject copies src into this bucket at dstKey. directive COPY
// (default) preserves src's metadata and content-type; REPLACE uses
// newMetadata/newContentType instead (an empty newMetadata clears it).
func (b *Bucket) CopyObject(dstKey string, src *Object, directive MetadataDirective, newContentType string, newMetadata map[string]string) *Object {
	contentType := src.ContentType
	metadata := src.Metadata
	if directive == DirectiveReplace {
		contentType = newContentType
		metadata = newMetadata
	}
	return b.PutObject(dstKey, append([]byte(nil), src.Body...), contentType, metadata)
}
