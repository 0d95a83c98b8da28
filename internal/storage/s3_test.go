package storage

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is a path-style, single-bucket S3 endpoint keeping objects in memory.
type fakeS3 struct {
	bucket  string
	mu      sync.Mutex
	objects map[string][]byte
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	MaxKeys     int      `xml:"MaxKeys"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key  string `xml:"Key"`
		Size int    `xml:"Size"`
	} `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucketPath := "/" + f.bucket
	if r.URL.Path == bucketPath || r.URL.Path == bucketPath+"/" {
		f.list(w, r)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, bucketPath+"/")

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(body)
	case http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return b, ok
}

func (f *fakeS3) list(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	res := listResult{Name: f.bucket, Prefix: prefix, MaxKeys: 1000}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		res.Contents = append(res.Contents, struct {
			Key  string `xml:"Key"`
			Size int    `xml:"Size"`
		}{Key: k, Size: len(f.objects[k])})
	}
	res.KeyCount = len(keys)

	w.Header().Set("Content-Type", "application/xml")
	io.WriteString(w, xml.Header)
	xml.NewEncoder(w).Encode(res)
}

func newFakeS3Storage(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	fake := &fakeS3{bucket: "bench", objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3Storage(context.Background(), "bench", S3Config{Region: "us-east-1", Endpoint: srv.URL})
	require.NoError(t, err)
	return store, fake
}

func TestS3StoragePutGet(t *testing.T) {
	store, fake := newFakeS3Storage(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "reports/run-1.samples.csv", strings.NewReader(sampleReport)))
	stored, ok := fake.object("reports/run-1.samples.csv")
	require.True(t, ok)
	assert.Equal(t, sampleReport, string(stored))

	r, err := store.Get(ctx, "reports/run-1.samples.csv")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, sampleReport, string(data))

	exists, err := store.Exists(ctx, "reports/run-1.samples.csv")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestS3StorageNotFound(t *testing.T) {
	store, _ := newFakeS3Storage(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "reports/ghost.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	exists, err := store.Exists(ctx, "reports/ghost.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3StorageListAndDelete(t *testing.T) {
	store, _ := newFakeS3Storage(t)
	ctx := context.Background()

	for _, key := range []string{"reports/b.csv", "reports/a.csv", "other/c.csv"} {
		require.NoError(t, store.Put(ctx, key, strings.NewReader(key)))
	}

	keys, err := store.ListObjects(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/a.csv", "reports/b.csv"}, keys)

	require.NoError(t, store.Delete(ctx, "reports/a.csv"))
	keys, err = store.ListObjects(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/b.csv"}, keys)
}

func TestS3ArchiveWithPrefix(t *testing.T) {
	store, fake := newFakeS3Storage(t)
	archive := NewArchive(NewPrefixedStorage(store, "team"), true, nil)
	ctx := context.Background()

	key, err := archive.Store(ctx, "run-1", "samples", []byte(sampleReport))
	require.NoError(t, err)
	_, ok := fake.object("team/" + key)
	assert.True(t, ok, "object stored under the prefix")

	data, err := archive.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sampleReport, string(data))
}
