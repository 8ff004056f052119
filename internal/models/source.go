package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-stt/internal/config"
)

// Source fetches model files from an origin.
type Source interface {
	// Fetch opens a stream for the artifact. size is -1 if unknown.
	Fetch(ctx context.Context, a Artifact) (body io.ReadCloser, size int64, err error)

	// Type returns "http" or "s3".
	Type() string
}

// NewSource picks the model origin from config. Returns nil when downloads
// are disabled. Returns an error if an S3 mirror is configured but unreachable.
func NewSource(cfg *config.Config, log zerolog.Logger) (Source, error) {
	if !cfg.ModelAutoDownload {
		return nil, nil
	}
	if !cfg.ModelS3.Enabled() {
		return NewHTTPSource(cfg.ModelBaseURL), nil
	}

	src, err := NewS3Source(cfg.ModelS3, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := src.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.ModelS3.Bucket, cfg.ModelS3.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.ModelS3.Bucket).Str("endpoint", cfg.ModelS3.Endpoint).Msg("S3 model mirror verified")
	return src, nil
}

// HTTPSource downloads from a Hugging Face style origin:
// {base}/{repo}/resolve/main/{filename}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Downloads are bounded by ctx only.
		client: &http.Client{},
	}
}

func (s *HTTPSource) URL(a Artifact) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s", s.baseURL, a.Repo, a.Filename)
}

func (s *HTTPSource) Fetch(ctx context.Context, a Artifact) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(a), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("GET %s: status %d", req.URL, resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func (s *HTTPSource) Type() string { return "http" }
