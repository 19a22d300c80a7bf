package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadfunnel/internal/config"
)

// fakeS3 is a path-style S3 endpoint holding one bucket in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/downloads")
	key := strings.TrimPrefix(path, "/")

	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		var sb strings.Builder
		sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>downloads</Name><IsTruncated>false</IsTruncated>`)
		for k, v := range f.objects {
			sb.WriteString("<Contents><Key>" + k + "</Key><LastModified>2024-05-01T12:00:00.000Z</LastModified><Size>")
			sb.WriteString(strconv.Itoa(len(v)))
			sb.WriteString("</Size></Contents>")
		}
		sb.WriteString(`</ListBucketResult>`)
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, sb.String())
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if _, ok := f.objects[key]; ok && r.Header.Get("If-None-Match") == "*" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusPreconditionFailed)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		f.deletes++
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestS3Bucket(t *testing.T, cfg config.StorageConfig) (*S3Bucket, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-west-2",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDTEST", "SECRETTEST", ""),
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
	})
	cfg.S3Bucket = "downloads"
	return NewS3BucketFromClient(client, cfg), fake
}

func TestS3Bucket_UploadListDelete(t *testing.T) {
	b, fake := newTestS3Bucket(t, config.StorageConfig{PresignMinutes: 10})
	ctx := context.Background()

	body := []byte("%PDF-1")
	stored, err := b.Upload(ctx, "pdf_1.pdf", bytes.NewReader(body), int64(len(body)), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf_1.pdf", stored.Name)
	require.Contains(t, fake.objects, "pdf_1.pdf")
	storedLen := int64(len(fake.objects["pdf_1.pdf"]))

	files, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pdf_1.pdf", files[0].Name)
	assert.Equal(t, storedLen, files[0].Size)
	assert.Equal(t, 2024, files[0].CreatedAt.Year())

	require.NoError(t, b.Delete(ctx, "pdf_1.pdf"))
	assert.Empty(t, fake.objects)
}

func TestS3Bucket_UploadNeverOverwrites(t *testing.T) {
	b, fake := newTestS3Bucket(t, config.StorageConfig{})
	ctx := context.Background()

	first := []byte("first")
	_, err := b.Upload(ctx, "pdf_1700000000000.pdf", bytes.NewReader(first), int64(len(first)), "application/pdf")
	require.NoError(t, err)
	firstStored := append([]byte(nil), fake.objects["pdf_1700000000000.pdf"]...)

	second := []byte("second!")
	_, err = b.Upload(ctx, "pdf_1700000000000.pdf", bytes.NewReader(second), int64(len(second)), "application/pdf")
	assert.ErrorIs(t, err, ErrExists)

	files, err := b.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, firstStored, fake.objects["pdf_1700000000000.pdf"])
}

func TestS3Bucket_DeleteMissingIsNotFound(t *testing.T) {
	b, fake := newTestS3Bucket(t, config.StorageConfig{})

	err := b.Delete(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, fake.deletes)
}

func TestS3Bucket_PublicURL(t *testing.T) {
	b, _ := newTestS3Bucket(t, config.StorageConfig{PresignMinutes: 10})

	url, err := b.PublicURL(context.Background(), "pdf_1.pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "/downloads/pdf_1.pdf")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=600")

	public, _ := newTestS3Bucket(t, config.StorageConfig{PublicBaseURL: "https://cdn.example.com/"})
	url, err = public.PublicURL(context.Background(), "free guide.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/free%20guide.pdf", url)
}

func TestS3Bucket_Ping(t *testing.T) {
	b, _ := newTestS3Bucket(t, config.StorageConfig{})
	assert.NoError(t, b.Ping(context.Background()))
}
