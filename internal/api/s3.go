package api

import (
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kibertoad/fauxqs/internal/fauxqs/bucket"
	"github.com/kibertoad/fauxqs/internal/fauxqs/ferr"
)

// splitBucketKey extracts (bucket, key) from a request, honoring both
// S3's path style (/<bucket>/<key>) and virtual-hosted style
// (<bucket>.s3.<host>/<key>), per spec.md §6.
func splitBucketKey(r *http.Request) (string, string) {
	host := r.Host
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ".s3."); idx >= 0 {
		bucketName := host[:idx]
		key := strings.TrimPrefix(r.URL.Path, "/")
		return bucketName, key
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		return "", ""
	}
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func objectMetadataFromHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for key := range h {
		if strings.HasPrefix(strings.ToLower(key), "x-amz-meta-") {
			out[strings.TrimPrefix(strings.ToLower(key), "x-amz-meta-")] = h.Get(key)
		}
	}
	return out
}

func writeObjectMetaHeaders(w http.ResponseWriter, meta map[string]string) {
	for k, v := range meta {
		w.Header().Set("x-amz-meta-"+k, v)
	}
}

// handleS3 dispatches one REST-style S3 request and returns the resolved
// action name for metrics/logging.
func (s *Server) handleS3(w http.ResponseWriter, r *http.Request, reg string) string {
	bucketName, key := splitBucketKey(r)
	bs := s.engine.Router.BucketStore(reg)

	if bucketName == "" {
		if r.Method == http.MethodGet {
			s.s3ListBuckets(w, bs)
			return "ListBuckets"
		}
		writeS3Error(w, "/", ferr.NewInvalidParameter("InvalidRequest", "Bucket name required"))
		return "unknown"
	}

	q := r.URL.Query()

	if key == "" {
		switch r.Method {
		case http.MethodPut:
			s.s3CreateBucket(w, bucketName, bs)
			return "CreateBucket"
		case http.MethodDelete:
			s.s3DeleteBucket(w, bucketName, bs)
			return "DeleteBucket"
		case http.MethodGet:
			if q.Get("list-type") == "2" {
				s.s3ListObjectsV2(w, bucketName, bs, q)
				return "ListObjectsV2"
			}
			s.s3ListObjects(w, bucketName, bs, q)
			return "ListObjects"
		case http.MethodPost:
			if _, ok := q["delete"]; ok {
				s.s3DeleteObjects(w, r, bucketName, bs)
				return "DeleteObjects"
			}
		case http.MethodHead:
			if _, err := bs.GetBucket(bucketName); err != nil {
				writeS3Error(w, "/"+bucketName, err)
				return "HeadBucket"
			}
			w.WriteHeader(http.StatusOK)
			return "HeadBucket"
		}
		writeS3Error(w, "/"+bucketName, ferr.NewInvalidParameter("InvalidRequest", "Unsupported bucket operation"))
		return "unknown"
	}

	switch r.Method {
	case http.MethodPut:
		if src := r.Header.Get("x-amz-copy-source"); src != "" {
			s.s3CopyObject(w, r, bucketName, key, src, bs)
			return "CopyObject"
		}
		if uploadID, partNumber, ok := multipartParams(q); ok {
			s.s3UploadPart(w, r, bucketName, uploadID, partNumber, bs)
			return "UploadPart"
		}
		s.s3PutObject(w, r, bucketName, key, bs)
		return "PutObject"
	case http.MethodGet:
		s.s3GetObject(w, r, bucketName, key, bs)
		return "GetObject"
	case http.MethodHead:
		s.s3HeadObject(w, r, bucketName, key, bs)
		return "HeadObject"
	case http.MethodDelete:
		if uploadID := q.Get("uploadId"); uploadID != "" {
			s.s3AbortMultipartUpload(w, bucketName, uploadID, bs)
			return "AbortMultipartUpload"
		}
		s.s3DeleteObject(w, bucketName, key, bs)
		return "DeleteObject"
	case http.MethodPost:
		if _, ok := q["uploads"]; ok {
			s.s3CreateMultipartUpload(w, r, bucketName, key, bs)
			return "CreateMultipartUpload"
		}
		if uploadID := q.Get("uploadId"); uploadID != "" {
			s.s3CompleteMultipartUpload(w, r, bucketName, uploadID, bs)
			return "CompleteMultipartUpload"
		}
	}

	writeS3Error(w, "/"+bucketName+"/"+key, ferr.NewInvalidParameter("InvalidRequest", "Unsupported object operation"))
	return "unknown"
}

func multipartParams(q map[string][]string) (uploadID string, partNumber int, ok bool) {
	uploads, hasUpload := q["uploadId"]
	parts, hasPart := q["partNumber"]
	if !hasUpload || !hasPart || len(uploads) == 0 || len(parts) == 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, false
	}
	return uploads[0], n, true
}

func (s *Server) s3ListBuckets(w http.ResponseWriter, bs *bucket.Store) {
	type member struct {
		Name         string `xml:"Name"`
		CreationDate string `xml:"CreationDate"`
	}
	type resp struct {
		XMLName xml.Name `xml:"ListAllMyBucketsResult"`
		Owner   struct {
			ID          string `xml:"ID"`
			DisplayName string `xml:"DisplayName"`
		} `xml:"Owner"`
		Buckets struct {
			Bucket []member `xml:"Bucket"`
		} `xml:"Buckets"`
	}
	var out resp
	out.Owner.ID = bucket.OwnerID
	out.Owner.DisplayName = bucket.OwnerDisplayName
	for _, b := range bs.ListBuckets() {
		out.Buckets.Bucket = append(out.Buckets.Bucket, member{Name: b.Name, CreationDate: formatTime(b.CreatedAt)})
	}
	writeXML(w, http.StatusOK, out)
}

func (s *Server) s3CreateBucket(w http.ResponseWriter, name string, bs *bucket.Store) {
	if _, err := bs.CreateBucket(name); err != nil {
		writeS3Error(w, "/"+name, err)
		return
	}
	w.Header().Set("Location", "/"+name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) s3DeleteBucket(w http.ResponseWriter, name string, bs *bucket.Store) {
	if err := bs.DeleteBucket(name); err != nil {
		writeS3Error(w, "/"+name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) s3ListObjects(w http.ResponseWriter, name string, bs *bucket.Store, q map[string][]string) {
	b, err := bs.GetBucket(name)
	if err != nil {
		writeS3Error(w, "/"+name, err)
		return
	}
	res := b.List(bucket.ListInput{
		Prefix:    queryGet(q, "prefix"),
		Delimiter: queryGet(q, "delimiter"),
		MaxKeys:   queryInt(q, "max-keys", 1000),
		Marker:    queryGet(q, "marker"),
	})
	writeListResult(w, name, res, false)
}

func (s *Server) s3ListObjectsV2(w http.ResponseWriter, name string, bs *bucket.Store, q map[string][]string) {
	b, err := bs.GetBucket(name)
	if err != nil {
		writeS3Error(w, "/"+name, err)
		return
	}
	res := b.List(bucket.ListInput{
		Prefix:            queryGet(q, "prefix"),
		Delimiter:         queryGet(q, "delimiter"),
		MaxKeys:           queryInt(q, "max-keys", 1000),
		ContinuationToken: queryGet(q, "continuation-token"),
		StartAfter:        queryGet(q, "start-after"),
	})
	writeListResult(w, name, res, true)
}

func writeListResult(w http.ResponseWriter, bucketName string, res bucket.ListResult, v2 bool) {
	type contentsEntry struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		ETag         string `xml:"ETag"`
		Size         int64  `xml:"Size"`
	}
	type commonPrefix struct {
		Prefix string `xml:"Prefix"`
	}
	type resp struct {
		XMLName        xml.Name       `xml:"ListBucketResult"`
		Name           string         `xml:"Name"`
		KeyCount       int            `xml:"KeyCount,omitempty"`
		IsTruncated    bool           `xml:"IsTruncated"`
		NextMarker     string         `xml:"NextMarker,omitempty"`
		ContinuationToken string      `xml:"NextContinuationToken,omitempty"`
		Contents       []contentsEntry `xml:"Contents"`
		CommonPrefixes []commonPrefix  `xml:"CommonPrefixes"`
	}
	out := resp{Name: bucketName, IsTruncated: res.IsTruncated, KeyCount: len(res.Keys)}
	if res.IsTruncated {
		if v2 {
			out.ContinuationToken = res.NextMarker
		} else {
			out.NextMarker = res.NextMarker
		}
	}
	for _, o := range res.Keys {
		out.Contents = append(out.Contents, contentsEntry{
			Key: o.Key, LastModified: formatTime(o.LastModified), ETag: o.ETag, Size: int64(len(o.Body)),
		})
	}
	for _, p := range res.CommonPrefixes {
		out.CommonPrefixes = append(out.CommonPrefixes, commonPrefix{Prefix: p})
	}
	writeXML(w, http.StatusOK, out)
}

func (s *Server) s3PutObject(w http.ResponseWriter, r *http.Request, bucketName, key string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	body, _ := io.ReadAll(r.Body)
	obj := b.PutObject(key, body, r.Header.Get("Content-Type"), objectMetadataFromHeaders(r.Header))
	if s.engine.Metrics != nil {
		s.engine.Metrics.SetBucketObjects(b.Region, b.Name, b.ObjectCount())
	}
	w.Header().Set("ETag", obj.ETag)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) s3GetObject(w http.ResponseWriter, r *http.Request, bucketName, key string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	obj, err := b.GetObject(key)
	if err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	if err := conditionalCheckFromHeaders(r.Header).Evaluate(obj); err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}

	writeObjectMetaHeaders(w, obj.Metadata)
	w.Header().Set("ETag", obj.ETag)
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		br, err := bucket.ParseRange(rangeHeader, int64(len(obj.Body)))
		if err != nil {
			writeS3Error(w, "/"+bucketName+"/"+key, err)
			return
		}
		w.Header().Set("Content-Range", contentRangeHeader(*br, int64(len(obj.Body))))
		w.Header().Set("Content-Length", strconv.FormatInt(br.End-br.Start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(obj.Body[br.Start : br.End+1])
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Body)
}

func (s *Server) s3HeadObject(w http.ResponseWriter, r *http.Request, bucketName, key string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	obj, err := b.GetObject(key)
	if err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	if err := conditionalCheckFromHeaders(r.Header).Evaluate(obj); err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	writeObjectMetaHeaders(w, obj.Metadata)
	w.Header().Set("ETag", obj.ETag)
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Body)))
	w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) s3DeleteObject(w http.ResponseWriter, bucketName, key string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	b.DeleteObject(key)
	if s.engine.Metrics != nil {
		s.engine.Metrics.SetBucketObjects(b.Region, b.Name, b.ObjectCount())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) s3DeleteObjects(w http.ResponseWriter, r *http.Request, bucketName string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName, err)
		return
	}
	type objectID struct {
		Key string `xml:"Key"`
	}
	type request struct {
		XMLName xml.Name   `xml:"Delete"`
		Objects []objectID `xml:"Object"`
	}
	var req request
	body, _ := io.ReadAll(r.Body)
	_ = xml.Unmarshal(body, &req)

	keys := make([]string, 0, len(req.Objects))
	for _, o := range req.Objects {
		keys = append(keys, o.Key)
	}
	results := b.DeleteObjects(keys)
	if s.engine.Metrics != nil {
		s.engine.Metrics.SetBucketObjects(b.Region, b.Name, b.ObjectCount())
	}

	type deleted struct {
		Key string `xml:"Key"`
	}
	type resp struct {
		XMLName xml.Name  `xml:"DeleteResult"`
		Deleted []deleted `xml:"Deleted"`
	}
	var out resp
	for _, r := range results {
		if r.Deleted {
			out.Deleted = append(out.Deleted, deleted{Key: r.Key})
		}
	}
	writeXML(w, http.StatusOK, out)
}

func (s *Server) s3CopyObject(w http.ResponseWriter, r *http.Request, dstBucket, dstKey, copySource string, bs *bucket.Store) {
	srcBucketName, srcKey, err := bucket.ParseCopySource(copySource)
	if err != nil {
		writeS3Error(w, "/"+dstBucket+"/"+dstKey, err)
		return
	}
	srcBucket, err := bs.GetBucket(srcBucketName)
	if err != nil {
		writeS3Error(w, "/"+dstBucket+"/"+dstKey, err)
		return
	}
	src, err := srcBucket.GetObject(srcKey)
	if err != nil {
		writeS3Error(w, "/"+dstBucket+"/"+dstKey, err)
		return
	}
	dstBucketStore, err := bs.GetBucket(dstBucket)
	if err != nil {
		writeS3Error(w, "/"+dstBucket+"/"+dstKey, err)
		return
	}

	directive := bucket.DirectiveCopy
	if r.Header.Get("x-amz-metadata-directive") == "REPLACE" {
		directive = bucket.DirectiveReplace
	}
	contentType := r.Header.Get("Content-Type")
	metadata := objectMetadataFromHeaders(r.Header)

	obj := dstBucketStore.CopyObject(dstKey, src, directive, contentType, metadata)
	if s.engine.Metrics != nil {
		s.engine.Metrics.SetBucketObjects(dstBucketStore.Region, dstBucketStore.Name, dstBucketStore.ObjectCount())
	}

	type result struct {
		XMLName      xml.Name `xml:"CopyObjectResult"`
		ETag         string   `xml:"ETag"`
		LastModified string   `xml:"LastModified"`
	}
	writeXML(w, http.StatusOK, result{ETag: obj.ETag, LastModified: formatTime(obj.LastModified)})
}

func (s *Server) s3CreateMultipartUpload(w http.ResponseWriter, r *http.Request, bucketName, key string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName+"/"+key, err)
		return
	}
	u := b.CreateMultipartUpload(key, r.Header.Get("Content-Type"), objectMetadataFromHeaders(r.Header))
	type resp struct {
		XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
		Bucket   string   `xml:"Bucket"`
		Key      string   `xml:"Key"`
		UploadId string   `xml:"UploadId"`
	}
	writeXML(w, http.StatusOK, resp{Bucket: bucketName, Key: key, UploadId: u.UploadID})
}

func (s *Server) s3UploadPart(w http.ResponseWriter, r *http.Request, bucketName, uploadID string, partNumber int, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName, err)
		return
	}
	body, _ := io.ReadAll(r.Body)
	etag, err := b.UploadPart(uploadID, partNumber, body)
	if err != nil {
		writeS3Error(w, "/"+bucketName, err)
		return
	}
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) s3CompleteMultipartUpload(w http.ResponseWriter, r *http.Request, bucketName, uploadID string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName, err)
		return
	}
	type partXML struct {
		PartNumber int    `xml:"PartNumber"`
		ETag       string `xml:"ETag"`
	}
	type request struct {
		XMLName xml.Name  `xml:"CompleteMultipartUpload"`
		Parts   []partXML `xml:"Part"`
	}
	var req request
	body, _ := io.ReadAll(r.Body)
	_ = xml.Unmarshal(body, &req)

	parts := make([]bucket.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, bucket.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	obj, err := b.CompleteMultipartUpload(uploadID, parts)
	if err != nil {
		writeS3Error(w, "/"+bucketName, err)
		return
	}
	if s.engine.Metrics != nil {
		s.engine.Metrics.SetBucketObjects(b.Region, b.Name, b.ObjectCount())
	}
	type resp struct {
		XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
		Bucket   string   `xml:"Bucket"`
		Key      string   `xml:"Key"`
		ETag     string   `xml:"ETag"`
	}
	writeXML(w, http.StatusOK, resp{Bucket: bucketName, Key: obj.Key, ETag: obj.ETag})
}

func (s *Server) s3AbortMultipartUpload(w http.ResponseWriter, bucketName, uploadID string, bs *bucket.Store) {
	b, err := bs.GetBucket(bucketName)
	if err != nil {
		writeS3Error(w, "/"+bucketName, err)
		return
	}
	if err := b.AbortMultipartUpload(uploadID); err != nil {
		writeS3Error(w, "/"+bucketName, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func conditionalCheckFromHeaders(h http.Header) bucket.ConditionalCheck {
	c := bucket.ConditionalCheck{
		IfMatch:     h.Get("If-Match"),
		IfNoneMatch: h.Get("If-None-Match"),
	}
	if v := h.Get("If-Unmodified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			c.IfUnmodifiedSince = &t
		}
	}
	if v := h.Get("If-Modified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			c.IfModifiedSince = &t
		}
	}
	return c
}

func contentRangeHeader(br bucket.ByteRange, size int64) string {
	return "bytes " + strconv.FormatInt(br.Start, 10) + "-" + strconv.FormatInt(br.End, 10) + "/" + strconv.FormatInt(size, 10)
}

func queryGet(q map[string][]string, key string) string {
	vs, ok := q[key]
	if !ok || len(vs) == 0 {
		return ""
	}
	return vs[0]
}
