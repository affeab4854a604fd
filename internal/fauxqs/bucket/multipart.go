package bucket

import (
	"sort"
	"time"

	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ids"
)

const minPartSize = 5 * 1024 * 1024 // 5 MiB

// CreateMultipartUpload starts a new upload, distinct even when called
// twice for the same key. Metadata/content-type are frozen at this
// call (invariant: MultipartUpload "has ... content-type and metadata
// frozen at initiation").
func (b *Bucket) CreateMultipartUpload(key, contentType string, metadata map[string]string) *MultipartUpload {
	b.mu.Lock()
	defer b.mu.Unlock()

	u := &MultipartUpload{
		UploadID:    ids.NewUploadID(),
		Key:         key,
		ContentType: contentType,
		Metadata:    normalizeMetadata(metadata),
		CreatedAt:   time.Now(),
		parts:       make(map[int]Part),
	}
	b.uploads[u.UploadID] = u
	return u
}

// UploadPart validates uploadID and stores partNumber's body, returning
// its ETag (quoted hex MD5 of the part bytes).
func (b *Bucket) UploadPart(uploadID string, partNumber int, body []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.uploads[uploadID]
	if !ok {
		return "", ferr.NewNotFound("upload", "The specified upload does not exist.")
	}

	etag := ids.ETag(body)
	u.parts[partNumber] = Part{ETag: etag, Body: body}
	return etag, nil
}

// CompletedPart is one entry of the parts list supplied to
// CompleteMultipartUpload, as the client asserts it.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// CompleteMultipartUpload validates that every referenced part exists
// with a matching ETag, parts are in strictly ascending order, every
// non-last part is >= 5 MiB, then concatenates the parts into a single
// object and removes the upload. A second completion of the same upload
// id fails with NoSuchUpload, per spec.md §4.5.
func (b *Bucket) CompleteMultipartUpload(uploadID string, parts []CompletedPart) (*Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.uploads[uploadID]
	if !ok {
		return nil, ferr.NewNotFound("upload", "The specified multipart upload does not exist. The upload ID may be invalid, or the upload may have been aborted or completed.")
	}

	if len(parts) == 0 {
		return nil, ferr.NewInvalidParameter("InvalidRequest", "You must specify at least one part")
	}

	sortedParts := append([]CompletedPart(nil), parts...)
	sort.Slice(sortedParts, func(i, j int) bool { return sortedParts[i].PartNumber < sortedParts[j].PartNumber })

	prevNumber := -1
	var body []byte
	var partMD5s [][16]byte
	for i, cp := range sortedParts {
		if cp.PartNumber <= prevNumber {
			return nil, ferr.NewInvalidParameter("InvalidPartOrder",
				"The list of parts was not in ascending order")
		}
		prevNumber = cp.PartNumber

		part, ok := u.parts[cp.PartNumber]
		if !ok || part.ETag != cp.ETag {
			return nil, ferr.NewInvalidParameter("InvalidPart",
				"One or more of the specified parts could not be found")
		}

		if i < len(sortedParts)-1 && len(part.Body) < minPartSize {
			return nil, ferr.NewInvalidParameter("EntityTooSmall",
				"Your proposed upload is smaller than the minimum allowed size")
		}

		body = append(body, part.Body...)
		partMD5s = append(partMD5s, ids.RawMD5(part.Body))
	}

	delete(b.uploads, uploadID)

	obj := &Object{
		Key:          u.Key,
		Body:         body,
		ContentType:  u.ContentType,
		Metadata:     u.Metadata,
		ETag:         ids.MultipartETag(partMD5s),
		LastModified: time.Now(),
	}
	b.objects[u.Key] = obj
	b.insertKeyLocked(u.Key)
	return obj, nil
}

// AbortMultipartUpload removes uploadID; subsequent UploadPart/Complete
// calls against it fail.
func (b *Bucket) AbortMultipartUpload(uploadID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.uploads[uploadID]; !ok {
		return ferr.NewNotFound("upload", "The specified upload does not exist.")
	}
	delete(b.uploads, uploadID)
	return nil
}

// GetUpload looks up an in-progress upload by id, for part listing.
func (b *Bucket) GetUpload(uploadID string) (*MultipartUpload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.uploads[uploadID]
	if !ok {
		return nil, ferr.NewNotFound("upload", "The specified upload does not exist.")
	}
	return u, nil
}
