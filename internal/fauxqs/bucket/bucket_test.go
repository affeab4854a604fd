package bucket

import (
	"testing"
	"time"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateBucket_NameValidation(t *testing.T) {
	s := NewStore("us-east-1")

	_, err := s.CreateBucket("ab")
	require.Error(t, err)

	_, err = s.CreateBucket("Has-Upper")
	require.Error(t, err)

	_, err = s.CreateBucket("192.168.1.1")
	require.Error(t, err)

	_, err = s.CreateBucket("bad..name")
	require.Error(t, err)

	b, err := s.CreateBucket("valid-bucket")
	require.NoError(t, err)
	assert.Equal(t, "valid-bucket", b.Name)
}

func TestStore_CreateBucket_Idempotent(t *testing.T) {
	s := NewStore("us-east-1")
	b1, err := s.CreateBucket("mybucket")
	require.NoError(t, err)
	b2, err := s.CreateBucket("mybucket")
	require.NoError(t, err)
	assert.Same(t, b1, b2)
}

func TestStore_DeleteBucket_RequiresEmpty(t *testing.T) {
	s := NewStore("us-east-1")
	b, err := s.CreateBucket("mybucket")
	require.NoError(t, err)

	b.PutObject("k", []byte("v"), "text/plain", nil)
	err = s.DeleteBucket("mybucket")
	require.Error(t, err)

	b.DeleteObject("k")
	err = s.DeleteBucket("mybucket")
	require.NoError(t, err)
}

func TestBucket_PutGetObject_RoundTrip(t *testing.T) {
	s := NewStore("us-east-1")
	b, _ := s.CreateBucket("mybucket")

	obj := b.PutObject("hello.txt", []byte("Hello, World!"), "text/plain", map[string]string{"Owner": "alice"})
	assert.Equal(t, `"65a8e27d8879283831b664bd8b7f0ad4"`, obj.ETag)
	assert.Equal(t, "alice", obj.Metadata["owner"])

	got, err := b.GetObject("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, World!"), got.Body)
	assert.Equal(t, "text/plain", got.ContentType)
}

func TestBucket_PutObject_OverwritesMetadata(t *testing.T) {
	s := NewStore("us-east-1")
	b, _ := s.CreateBucket("mybucket")

	b.PutObject("k", []byte("v1"), "text/plain", map[string]string{"a": "1"})
	obj := b.PutObject("k", []byte("v2"), "application/json", nil)

	assert.Equal(t, []byte("v2"), obj.Body)
	assert.Empty(t, obj.Metadata)
}

func TestParseRange_MiddleAndSuffixAndPrefix(t *testing.T) {
	const size = 13 // "Hello, World!"

	r, err := ParseRange("bytes=7-", size)
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.Start)
	assert.Equal(t, int64(12), r.End)

	r, err = ParseRange("bytes=-6", size)
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.Start)
	assert.Equal(t, int64(12), r.End)

	_, err = ParseRange("bytes=100-200", size)
	require.Error(t, err)
	assert.True(t, ferr.IsRangeNotSatisfiable(err))
}

func TestConditionalCheck_PrecedenceIfMatchOverIfUnmodifiedSince(t *testing.T) {
	s := NewStore("us-east-1")
	b, _ := s.CreateBucket("mybucket")
	obj := b.PutObject("k", []byte("v"), "text/plain", nil)

	// If-Match fails even though If-Unmodified-Since would pass, since
	// If-Match is evaluated first.
	future := obj.LastModified.Add(time.Hour)
	check := ConditionalCheck{IfMatch: `"deadbeef"`, IfUnmodifiedSince: &future}
	err := check.Evaluate(obj)
	require.Error(t, err)

	// A matching If-Match wins over an If-Unmodified-Since that would fail.
	past := obj.LastModified.Add(-time.Hour)
	check = ConditionalCheck{IfMatch: obj.ETag, IfUnmodifiedSince: &past}
	require.NoError(t, check.Evaluate(obj))
}

func TestMultipart_CompleteRequiresAscendingOrderAndMinSize(t *testing.T) {
	s := NewStore("us-east-1")
	b, _ := s.CreateBucket("mybucket")

	u := b.CreateMultipartUpload("big.bin", "application/octet-stream", nil)

	part1 := make([]byte, minPartSize)
	for i := range part1 {
		part1[i] = 'a'
	}
	etag1, err := b.UploadPart(u.UploadID, 1, part1)
	require.NoError(t, err)

	etag2, err := b.UploadPart(u.UploadID, 2, []byte("World!"))
	require.NoError(t, err)

	obj, err := b.CompleteMultipartUpload(u.UploadID, []CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(minPartSize+6), int64(len(obj.Body)))
	assert.Regexp(t, `-2"$`, obj.ETag)

	_, err = b.CompleteMultipartUpload(u.UploadID, []CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.Error(t, err)
}

func TestMultipart_NonLastPartBelowMinimumRejected(t *testing.T) {
	s := NewStore("us-east-1")
	b, _ := s.CreateBucket("mybucket")
	u := b.CreateMultipartUpload("big.bin", "application/octet-stream", nil)

	small := make([]byte, minPartSize-1)
	etag1, _ := b.UploadPart(u.UploadID, 1, small)
	etag2, _ := b.UploadPart(u.UploadID, 2, []byte("tail"))

	_, err := b.CompleteMultipartUpload(u.UploadID, []CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.Error(t, err)
}

func TestBucket_List_DelimiterGroupsCommonPrefixes(t *testing.T) {
	s := NewStore("us-east-1")
	b, _ := s.CreateBucket("mybucket")

	for _, k := range []string{"a/1.txt", "a/2.txt", "b/1.txt", "root.txt"} {
		b.PutObject(k, []byte("x"), "text/plain", nil)
	}

	res := b.List(ListInput{Delimiter: "/"})
	assert.Equal(t, []string{"a/", "b/"}, res.CommonPrefixes)
	require.Len(t, res.Keys, 1)
	assert.Equal(t, "root.txt", res.Keys[0].Key)
}
