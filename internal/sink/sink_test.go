package sink

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holorecon/pkg/config"
	"holorecon/pkg/result"
)

var (
	_ result.Store = (*FS)(nil)
	_ result.Store = (*Memory)(nil)
	_ result.Store = (*S3)(nil)
)

func TestCleanKey(t *testing.T) {
	for _, bad := range []string{"", "  ", "/abs/key", `\abs`, "../up", "a/../../b", "a/.."} {
		_, err := cleanKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
	k, err := cleanKey("Phase/100.000um//00001.f32")
	require.NoError(t, err)
	assert.Equal(t, "Phase/100.000um/00001.f32", k)

	k, err = cleanKey("a..b/c")
	require.NoError(t, err)
	assert.Equal(t, "a..b/c", k)
}

func TestFS(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	s, err := NewFS(root)
	require.NoError(t, err)
	assert.DirExists(t, root)
	assert.Equal(t, root, s.Root())

	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx, "Amplitude/100.000um"))
	assert.DirExists(t, filepath.Join(root, "Amplitude", "100.000um"))

	require.NoError(t, s.Put(ctx, "Amplitude/100.000um/00001.f32", []byte{1, 2}))
	require.NoError(t, s.Put(ctx, "Amplitude/100.000um/00001.f32", []byte{3}))
	data, err := os.ReadFile(filepath.Join(root, "Amplitude", "100.000um", "00001.f32"))
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, data)

	// Put creates missing parents on its own.
	require.NoError(t, s.Put(ctx, "Phase/1.000mm/00002.png", []byte{4}))
	assert.FileExists(t, filepath.Join(root, "Phase", "1.000mm", "00002.png"))

	assert.ErrorIs(t, s.Put(ctx, "../escape", nil), ErrInvalidKey)
	assert.ErrorIs(t, s.Prepare(ctx, "/etc"), ErrInvalidKey)
}

func TestFSRootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err := NewFS(filepath.Join(file, "sub"))
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Prepare(ctx, "Real/1.000um"))
	assert.True(t, m.Prepared("Real/1.000um"))
	assert.False(t, m.Prepared("Real/2.000um"))

	buf := []byte{1, 2, 3}
	require.NoError(t, m.Put(ctx, "Real/1.000um/00002.f32", buf))
	require.NoError(t, m.Put(ctx, "Real/1.000um/00001.f32", []byte{9}))
	require.NoError(t, m.Put(ctx, "Phase/1.000um/00001.f32", []byte{8}))
	buf[0] = 7

	got, err := m.Get("Real/1.000um/00002.f32")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
	_, err = m.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"Real/1.000um/00001.f32", "Real/1.000um/00002.f32"}, m.Keys("Real/"))
	assert.Len(t, m.Keys(""), 3)
	assert.ErrorIs(t, m.Put(ctx, "", nil), ErrInvalidKey)
}

func TestMemoryConcurrentPuts(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Put(context.Background(), string(rune('a'+i)), []byte{byte(i)})
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Keys(""), 16)
}

// fakeS3 records PutObject requests sent by the client.
type fakeS3 struct {
	mu   sync.Mutex
	puts map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	f.mu.Lock()
	f.puts[strings.TrimPrefix(req.URL.Path, "/")] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
	f.mu.Unlock()
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
}

func newTestS3(t *testing.T, prefix string) (*S3, *fakeS3) {
	t.Helper()
	rt := &fakeS3{puts: map[string]fakeObject{}}
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "holograms",
		Prefix:          prefix,
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	}, func(o *s3.Options) { o.HTTPClient = &http.Client{Transport: rt} })
	require.NoError(t, err)
	return s, rt
}

func TestS3Put(t *testing.T) {
	s, rt := newTestS3(t, "runs/42")
	ctx := context.Background()

	require.NoError(t, s.Prepare(ctx, "Amplitude/100.000um"))
	require.NoError(t, s.Put(ctx, "Amplitude/100.000um/00001.png", []byte("png-bytes")))
	require.NoError(t, s.Put(ctx, "Amplitude/100.000um/00001.f32", []byte("raw-bytes")))

	png, ok := rt.puts["holograms/runs/42/Amplitude/100.000um/00001.png"]
	require.True(t, ok, "keys: %v", rt.puts)
	assert.Equal(t, "image/png", png.contentType)
	assert.True(t, bytes.Contains(png.body, []byte("png-bytes")))

	raw, ok := rt.puts["holograms/runs/42/Amplitude/100.000um/00001.f32"]
	require.True(t, ok)
	assert.Equal(t, "application/octet-stream", raw.contentType)

	assert.ErrorIs(t, s.Put(ctx, "../x", nil), ErrInvalidKey)
	assert.ErrorIs(t, s.Prepare(ctx, "/x"), ErrInvalidKey)
	assert.Len(t, rt.puts, 2)
}

func TestS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "bucket")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "frames")
	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &FS{}, store)

	cfg.Output.Sink = config.SinkMemory
	store, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	cfg.Output.Sink = config.SinkS3
	cfg.Output.S3.Bucket = "holograms"
	cfg.Output.S3.AccessKeyID = "AKIA"
	cfg.Output.S3.SecretAccessKey = "SECRET"
	store, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &S3{}, store)

	cfg.Output.S3.Bucket = ""
	store, err = Open(ctx, cfg)
	assert.Error(t, err)
	assert.Nil(t, store)

	cfg.Output.Sink = "ftp"
	_, err = Open(ctx, cfg)
	assert.ErrorContains(t, err, "ftp")
}
