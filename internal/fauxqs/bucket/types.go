// Package bucket implements the per-region Bucket Store: object
// put/get/head/delete/copy/list and multipart upload semantics, per
// spec.md §4.5.
package bucket

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Object is a single S3 object version (fauxqs keeps only one version
// per key, per spec.md §3).
type Object struct {
	Key         string
	Body        []byte
	ContentType string
	Metadata    map[string]string // lowercased keys, per S3 convention
	ETag        string            // quoted hex MD5, or multipart ETag
	LastModified time.Time
}

// Part is one uploaded part of a MultipartUpload.
type Part struct {
	ETag string
	Body []byte
}

// MultipartUpload is an in-progress multipart upload. Invisible to
// Get/Head/List until CompleteMultipartUpload promotes it to an Object.
type MultipartUpload struct {
	UploadID    string
	Key         string
	ContentType string
	Metadata    map[string]string
	CreatedAt   time.Time

	parts map[int]Part
}

// Bucket is one S3 bucket.
type Bucket struct {
	mu sync.Mutex

	Name      string
	Region    string
	CreatedAt time.Time

	keys    []string // sorted key order, kept in sync with objects
	objects map[string]*Object

	uploads map[string]*MultipartUpload
}

func newBucket(name, region string) *Bucket {
	return &Bucket{
		Name:      name,
		Region:    region,
		CreatedAt: time.Now(),
		objects:   make(map[string]*Object),
		uploads:   make(map[string]*MultipartUpload),
	}
}

// ObjectCount returns the number of objects currently stored.
func (b *Bucket) ObjectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// ActiveUploadCount returns the number of in-progress multipart uploads.
func (b *Bucket) ActiveUploadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

func (b *Bucket) insertKeyLocked(key string) {
	idx := sort.SearchStrings(b.keys, key)
	if idx < len(b.keys) && b.keys[idx] == key {
		return
	}
	b.keys = append(b.keys, "")
	copy(b.keys[idx+1:], b.keys[idx:])
	b.keys[idx] = key
}

func (b *Bucket) removeKeyLocked(key string) {
	idx := sort.SearchStrings(b.keys, key)
	if idx < len(b.keys) && b.keys[idx] == key {
		b.keys = append(b.keys[:idx], b.keys[idx+1:]...)
	}
}

func normalizeMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
