package bucket

import (
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
)

// OwnerID / OwnerDisplayName are the fixed placeholder bucket owner
// fauxqs reports, since there is no IAM concept.
const (
	OwnerID          = "000000000000"
	OwnerDisplayName = "local"
)

// EventSink receives spy events from the bucket store.
type EventSink interface {
	RecordEvent(kind, region, resourceName, messageID, body string)
}

// Store is the per-region collection of buckets. One Store exists per
// region; the region.Router creates one lazily on first reference.
type Store struct {
	region string
	sink   EventSink

	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// NewStore creates an empty Store for the given region.
func NewStore(region string) *Store {
	return &Store{region: region, buckets: make(map[string]*Bucket)}
}

// SetEventSink attaches a spy.Spy (or any EventSink) to this store.
func (s *Store) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Store) record(kind, resourceName, key string) {
	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()
	if sink != nil {
		sink.RecordEvent(kind, s.region, resourceName, "", key)
	}
}

// Region returns the region this store serves.
func (s *Store) Region() string { return s.region }

// CreateBucket creates a new bucket, idempotent for the same (fixed)
// owner per spec.md §4.5.
func (s *Store) CreateBucket(name string) (*Bucket, error) {
	if err := validateBucketName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.buckets[name]; ok {
		return existing, nil
	}

	b := newBucket(name, s.region)
	s.buckets[name] = b
	return b, nil
}

// GetBucket looks up a bucket by name.
func (s *Store) GetBucket(name string) (*Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[name]
	if !ok {
		return nil, ferr.NewNotFound("bucket", "The specified bucket does not exist")
	}
	return b, nil
}

// DeleteBucket removes a bucket, failing if it still has objects or
// active multipart uploads (invariant 5).
func (s *Store) DeleteBucket(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		return ferr.NewNotFound("bucket", "The specified bucket does not exist")
	}
	if b.ObjectCount() > 0 {
		return ferr.NewConflict("BucketNotEmpty", "The bucket you tried to delete is not empty")
	}
	if b.ActiveUploadCount() > 0 {
		return ferr.NewConflict("BucketNotEmpty", "The bucket you tried to delete has active multipart uploads")
	}
	delete(s.buckets, name)
	return nil
}

// ListBuckets returns every bucket in this region, alphabetical by name.
func (s *Store) ListBuckets() []*Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Bucket, 0, len(names))
	for _, name := range names {
		out = append(out, s.buckets[name])
	}
	return out
}

func validateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return ferr.NewInvalidParameter("InvalidBucketName", "The specified bucket is not valid.")
	}
	for _, r := range name {
		if !(r == '.' || r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return ferr.NewInvalidParameter("InvalidBucketName", "The specified bucket is not valid.")
		}
	}
	first, last := name[0], name[len(name)-1]
	if !isAlnum(first) || !isAlnum(last) {
		return ferr.NewInvalidParameter("InvalidBucketName", "The specified bucket is not valid.")
	}
	if strings.Contains(name, "..") || strings.Contains(name, ".-") || strings.Contains(name, "-.") {
		return ferr.NewInvalidParameter("InvalidBucketName", "The specified bucket is not valid.")
	}
	if net.ParseIP(name) != nil {
		return ferr.NewInvalidParameter("InvalidBucketName", "The specified bucket is not valid.")
	}
	return nil
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
