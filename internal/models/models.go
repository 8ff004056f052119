// Package models resolves whisper.cpp model files on local disk and fetches
// missing ones from a Source.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-stt/internal/metrics"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrNotFound     = errors.New("model file not found")
)

// Artifact is a downloadable model file.
type Artifact struct {
	Name     string // identifier, e.g. "base.en"
	Repo     string // origin repository, e.g. "ggerganov/whisper.cpp"
	Filename string // file name on disk and in the origin
}

const (
	whisperRepo = "ggerganov/whisper.cpp"
	vadRepo     = "ggml-org/whisper-vad"
)

// Only sizes published with 8-bit (q8_0) weights are listed.
var catalog = map[string]string{
	"tiny":           "ggml-tiny-q8_0.bin",
	"tiny.en":        "ggml-tiny.en-q8_0.bin",
	"base":           "ggml-base-q8_0.bin",
	"base.en":        "ggml-base.en-q8_0.bin",
	"small":          "ggml-small-q8_0.bin",
	"small.en":       "ggml-small.en-q8_0.bin",
	"medium":         "ggml-medium-q8_0.bin",
	"medium.en":      "ggml-medium.en-q8_0.bin",
	"large-v2":       "ggml-large-v2-q8_0.bin",
	"large-v3-turbo": "ggml-large-v3-turbo-q8_0.bin",
}

// VAD is the Silero voice-activity model whisper.cpp uses for --vad.
var VAD = Artifact{Name: "silero-v5.1.2", Repo: vadRepo, Filename: "ggml-silero-v5.1.2.bin"}

// Lookup returns the artifact for a model size identifier.
func Lookup(name string) (Artifact, error) {
	file, ok := catalog[name]
	if !ok {
		return Artifact{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownModel, name, strings.Join(Names(), ", "))
	}
	return Artifact{Name: name, Repo: whisperRepo, Filename: file}, nil
}

// Names returns the known model identifiers, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProgressFunc wraps a download stream, e.g. to drive a progress bar.
// size is -1 when the source does not report a length.
type ProgressFunc func(a Artifact, size int64, r io.Reader) io.Reader

// StoreOptions configures a Store.
type StoreOptions struct {
	Dir      string
	Source   Source // nil disables downloads
	Progress ProgressFunc
	Log      zerolog.Logger
}

// Store manages the model directory.
type Store struct {
	dir      string
	source   Source
	progress ProgressFunc
	log      zerolog.Logger
}

func NewStore(opts StoreOptions) *Store {
	return &Store{
		dir:      opts.Dir,
		source:   opts.Source,
		progress: opts.Progress,
		log:      opts.Log.With().Str("component", "models").Logger(),
	}
}

// Dir returns the model directory path.
func (s *Store) Dir() string { return s.dir }

// Path returns where an artifact lives on disk, whether or not it exists yet.
func (s *Store) Path(a Artifact) string {
	return filepath.Join(s.dir, a.Filename)
}

// EnsureModel returns a local path for the named model, downloading it if
// needed. A name that is itself an existing file path is used as-is.
func (s *Store) EnsureModel(ctx context.Context, name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
			return name, nil
		}
	}
	a, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return s.Ensure(ctx, a)
}

// Ensure returns the local path of a, fetching it from the source when missing.
func (s *Store) Ensure(ctx context.Context, a Artifact) (string, error) {
	path := s.Path(a)
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		return path, nil
	}
	if s.source == nil {
		return "", fmt.Errorf("%w: %s (downloads disabled)", ErrNotFound, path)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	s.log.Info().Str("model", a.Name).Str("source", s.source.Type()).Str("path", path).Msg("downloading model")

	body, size, err := s.source.Fetch(ctx, a)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", a.Filename, err)
	}
	defer body.Close()

	var r io.Reader = body
	if s.progress != nil {
		r = s.progress(a, size, body)
	}

	// Atomic write: temp file + rename
	tmp, err := os.CreateTemp(s.dir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	n, err := io.Copy(tmp, r)
	metrics.ModelDownloadBytesTotal.Add(float64(n))
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download %s: %w", a.Filename, err)
	}
	if size > 0 && n != size {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download %s: short read (%d of %d bytes)", a.Filename, n, size)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename: %w", err)
	}

	s.log.Info().Str("model", a.Name).Int64("bytes", n).Msg("model downloaded")
	return path, nil
}
