package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Remote forwards audio to another OpenAI-compatible
// /v1/audio/transcriptions endpoint, e.g. a faster-whisper server on a GPU
// host.
type Remote struct {
	url       string
	healthURL string
	model     string
	token     string
	client    *http.Client
	log       zerolog.Logger
}

// NewRemote creates a remote engine. healthURL is optional; when set, Load
// checks that it answers 200.
func NewRemote(url, healthURL, model string, log zerolog.Logger) *Remote {
	return &Remote{
		url:       url,
		healthURL: healthURL,
		model:     model,
		// Each call is bounded by its request context.
		client: &http.Client{},
		log:    log,
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func (r *Remote) WithToken(token string) *Remote {
	r.token = token
	return r
}

func (r *Remote) Name() string  { return "remote" }
func (r *Remote) Model() string { return r.model }

func (r *Remote) Load(ctx context.Context) error {
	if r.healthURL == "" {
		r.log.Info().Str("url", r.url).Msg("remote engine configured")
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.healthURL, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	r.authorize(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote health: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote health: status %d", resp.StatusCode)
	}
	r.log.Info().Str("url", r.url).Msg("remote engine reachable")
	return nil
}

// remoteResponse is the verbose_json response body.
type remoteResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe streams the file as multipart/form-data and parses the
// verbose_json response.
func (r *Remote) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(r.writeForm(w, f, filepath.Base(audioPath), opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	res := &Result{Language: out.Language, Duration: out.Duration}
	for _, s := range out.Segments {
		res.Segments = append(res.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	// Some servers omit segments; keep the text as one segment.
	if len(res.Segments) == 0 && out.Text != "" {
		res.Segments = []Segment{{Start: 0, End: out.Duration, Text: out.Text}}
	}
	if res.Language == "" {
		res.Language = opts.language()
	}
	return res, nil
}

func (r *Remote) authorize(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
}

func (r *Remote) writeForm(w *multipart.Writer, f io.Reader, name string, opts Options) error {
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy audio data: %w", err)
	}

	if r.model != "" {
		w.WriteField("model", r.model)
	}
	w.WriteField("language", opts.language())
	w.WriteField("response_format", "verbose_json")
	w.WriteField("beam_size", strconv.Itoa(opts.beamSize()))
	if opts.VADFilter {
		w.WriteField("vad_filter", "true")
	}
	return w.Close()
}
