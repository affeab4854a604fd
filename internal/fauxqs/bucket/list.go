package bucket

import "strings"

// ListInput is the shared input shape for ListObjects (V1) and
// ListObjectsV2.
type ListInput struct {
	Prefix            string
	Delimiter         string
	MaxKeys           int
	Marker            string // V1: last key/prefix returned, exclusive
	ContinuationToken string // V2: opaque, equivalent to Marker
	StartAfter        string // V2 only: skip keys <= this value
}

// ListResult is the shared output shape.
type ListResult struct {
	Keys          []*Object
	CommonPrefixes []string
	IsTruncated   bool
	NextMarker    string // set whenever IsTruncated, including prefix-only pages
}

// List implements both ListObjects and ListObjectsV2's semantics: keys
// sorted lexicographically, filtered by prefix, grouped into
// CommonPrefixes by delimiter, paginated by MaxKeys (default 1000).
func (b *Bucket) List(in ListInput) ListResult {
	b.mu.Lock()
	keys := append([]string(nil), b.keys...)
	objects := make(map[string]*Object, len(b.objects))
	for k, v := range b.objects {
		objects[k] = v
	}
	b.mu.Unlock()

	maxKeys := in.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	after := in.Marker
	if in.ContinuationToken != "" {
		after = in.ContinuationToken
	}
	if in.StartAfter != "" && after == "" {
		after = in.StartAfter
	}

	var result ListResult
	seenPrefixes := make(map[string]bool)
	lastEmitted := ""

	for _, key := range keys {
		if in.Prefix != "" && !strings.HasPrefix(key, in.Prefix) {
			continue
		}
		if after != "" && key <= after {
			continue
		}

		entryName := key
		isPrefix := false
		if in.Delimiter != "" {
			rest := key[len(in.Prefix):]
			if idx := strings.Index(rest, in.Delimiter); idx >= 0 {
				entryName = in.Prefix + rest[:idx+len(in.Delimiter)]
				isPrefix = true
			}
		}

		if isPrefix {
			if seenPrefixes[entryName] || entryName == after {
				continue
			}
		}

		if len(result.Keys)+len(result.CommonPrefixes) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = lastEmitted
			break
		}

		if isPrefix {
			seenPrefixes[entryName] = true
			result.CommonPrefixes = append(result.CommonPrefixes, entryName)
		} else {
			result.Keys = append(result.Keys, objects[key])
		}
		lastEmitted = entryName
	}

	return result
}
