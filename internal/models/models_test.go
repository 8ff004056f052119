package models

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-stt/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrigin(t *testing.T, status int, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLookup(t *testing.T) {
	a, err := Lookup("base.en")
	require.NoError(t, err)
	assert.Equal(t, "ggml-base.en-q8_0.bin", a.Filename)
	assert.Equal(t, "ggerganov/whisper.cpp", a.Repo)

	_, err = Lookup("gigantic.en")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Contains(t, err.Error(), "base.en")
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestHTTPSource_URL(t *testing.T) {
	src := NewHTTPSource("https://huggingface.co/")
	assert.Equal(t,
		"https://huggingface.co/ggml-org/whisper-vad/resolve/main/ggml-silero-v5.1.2.bin",
		src.URL(VAD))
}

func TestStore_EnsureDownloads(t *testing.T) {
	payload := []byte("ggml-model-weights")
	srv, hits := newOrigin(t, http.StatusOK, payload)
	dir := filepath.Join(t.TempDir(), "models")

	var progressed int64
	store := NewStore(StoreOptions{
		Dir:    dir,
		Source: NewHTTPSource(srv.URL),
		Progress: func(a Artifact, size int64, r io.Reader) io.Reader {
			progressed = size
			return r
		},
		Log: zerolog.Nop(),
	})

	path, err := store.EnsureModel(context.Background(), "tiny.en")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ggml-tiny.en-q8_0.bin"), path)
	assert.Equal(t, int64(len(payload)), progressed)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Second call finds the file and does not hit the origin.
	_, err = store.EnsureModel(context.Background(), "tiny.en")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestStore_FailedDownloadLeavesNoFile(t *testing.T) {
	srv, _ := newOrigin(t, http.StatusNotFound, []byte("nope"))
	dir := t.TempDir()
	store := NewStore(StoreOptions{Dir: dir, Source: NewHTTPSource(srv.URL), Log: zerolog.Nop()})

	_, err := store.Ensure(context.Background(), VAD)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type truncatingSource struct{}

func (truncatingSource) Fetch(ctx context.Context, a Artifact) (io.ReadCloser, int64, error) {
	return io.NopCloser(bytes.NewReader([]byte("half"))), 100, nil
}

func (truncatingSource) Type() string { return "fake" }

func TestStore_ShortReadRejected(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(StoreOptions{Dir: dir, Source: truncatingSource{}, Log: zerolog.Nop()})

	_, err := store.Ensure(context.Background(), VAD)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short read")

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestStore_DownloadsDisabled(t *testing.T) {
	store := NewStore(StoreOptions{Dir: t.TempDir(), Log: zerolog.Nop()})

	_, err := store.EnsureModel(context.Background(), "base.en")
	assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)
}

func TestStore_ExistingFileUsed(t *testing.T) {
	dir := t.TempDir()
	a, err := Lookup("small")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, a.Filename), []byte("x"), 0o644))

	store := NewStore(StoreOptions{Dir: dir, Log: zerolog.Nop()})
	path, err := store.EnsureModel(context.Background(), "small")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, a.Filename), path)
}

func TestStore_ExplicitPath(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "my-finetune.bin")
	require.NoError(t, os.WriteFile(custom, []byte("x"), 0o644))

	store := NewStore(StoreOptions{Dir: t.TempDir(), Log: zerolog.Nop()})
	path, err := store.EnsureModel(context.Background(), custom)
	require.NoError(t, err)
	assert.Equal(t, custom, path)
}

func TestStore_UnknownModel(t *testing.T) {
	store := NewStore(StoreOptions{Dir: t.TempDir(), Log: zerolog.Nop()})
	_, err := store.EnsureModel(context.Background(), "not-a-model")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.False(t, strings.Contains(err.Error(), "downloads disabled"))
}

func TestS3Source_Fetch(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.Header().Set("Content-Length", "7")
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	src, err := NewS3Source(config.S3Config{
		Bucket:    "mirror",
		Prefix:    "whisper",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "s3", src.Type())

	body, size, err := src.Fetch(context.Background(), VAD)
	require.NoError(t, err)
	defer body.Close()
	got, err := io.ReadAll(body)
	require.NoError(t, err)

	assert.Equal(t, int64(7), size)
	assert.Equal(t, "weights", string(got))
	assert.Equal(t, "/mirror/whisper/models/ggml-silero-v5.1.2.bin", gotPath.Load())
}

func TestS3Source_ObjectKeyNoPrefix(t *testing.T) {
	s := &S3Source{}
	assert.Equal(t, "models/ggml-silero-v5.1.2.bin", s.objectKey(VAD))
}
