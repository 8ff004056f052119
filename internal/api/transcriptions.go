package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/whisper-stt/internal/engine"
	"github.com/snarg/whisper-stt/internal/metrics"
)

const (
	maxMemory     = 32 << 20 // multipart parts beyond this spill to disk
	defaultSuffix = ".wav"
)

// TranscriptionResponse is the success body of POST /v1/audio/transcriptions.
type TranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// TranscriptionHandler serves the OpenAI-compatible transcription endpoint.
type TranscriptionHandler struct {
	engine   engine.Engine
	tempDir  string
	inFlight atomic.Int64
	log      zerolog.Logger
}

func NewTranscriptionHandler(eng engine.Engine, tempDir string, log zerolog.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{
		engine:  eng,
		tempDir: tempDir,
		log:     log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers the transcription endpoint.
func (h *TranscriptionHandler) Routes(r chi.Router) {
	r.Post("/audio/transcriptions", h.Create)
}

// InFlight implements metrics.ServiceStats.
func (h *TranscriptionHandler) InFlight() int {
	return int(h.inFlight.Load())
}

// Create handles POST /v1/audio/transcriptions.
func (h *TranscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	resp, err := h.transcribe(r)
	if err != nil {
		kind := kindOf(err)
		metrics.TranscriptionsTotal.WithLabelValues(h.engine.Name(), kind.String()).Inc()
		if kind == KindEngineFailure {
			hlog.FromRequest(r).Warn().Err(err).Msg("transcription failed")
		}
		WriteAPIError(w, err)
		return
	}
	metrics.TranscriptionsTotal.WithLabelValues(h.engine.Name(), "ok").Inc()
	WriteJSON(w, http.StatusOK, resp)
}

func (h *TranscriptionHandler) transcribe(r *http.Request) (*TranscriptionResponse, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, missingFile()
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, missingFile()
	}
	defer file.Close()

	language := r.FormValue("language")
	if language == "" {
		language = engine.DefaultLanguage
	}

	path, err := h.saveTemp(file, header)
	if err != nil {
		return nil, engineFailure(err)
	}
	defer os.Remove(path)

	h.inFlight.Add(1)
	defer h.inFlight.Add(-1)

	start := time.Now()
	res, err := h.engine.Transcribe(r.Context(), path, engine.DefaultOptions(language))
	metrics.TranscriptionDuration.WithLabelValues(h.engine.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, engineFailure(err)
	}
	metrics.TranscribedAudioSeconds.WithLabelValues(h.engine.Name()).Add(res.Duration)

	out := &TranscriptionResponse{
		Text:     res.Text(),
		Language: res.Language,
		Duration: res.Duration,
	}
	if out.Language == "" {
		out.Language = language
	}

	hlog.FromRequest(r).Debug().
		Str("language", out.Language).
		Float64("audio_seconds", out.Duration).
		Int("segments", len(res.Segments)).
		Dur("elapsed", time.Since(start)).
		Msg("transcribed")
	return out, nil
}

// saveTemp copies the upload into a new file under tempDir and returns its
// path. The caller owns removal.
func (h *TranscriptionHandler) saveTemp(src io.Reader, header *multipart.FileHeader) (string, error) {
	tmp, err := os.CreateTemp(h.tempDir, "upload-*"+uploadSuffix(header.Filename))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return tmp.Name(), nil
}

// uploadSuffix keeps the client's extension so decoders can sniff by name.
func uploadSuffix(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return defaultSuffix
	}
	for _, c := range ext[1:] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return defaultSuffix
		}
	}
	return ext
}
