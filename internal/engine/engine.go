// Package engine wraps the speech-to-text runtimes the service can sit in
// front of: a local whisper.cpp CLI, a remote OpenAI-compatible whisper
// server, or any endpoint reachable through the OpenAI SDK.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/snarg/whisper-stt/internal/config"
	"github.com/snarg/whisper-stt/internal/models"
)

var ErrUnknownEngine = errors.New("unknown engine")

// Fixed decoding parameters for every transcription the service runs.
const (
	DefaultBeamSize = 5
	DefaultLanguage = "en"
)

// Engine is the interface for speech-to-text backends.
type Engine interface {
	// Load prepares the engine. It is called once before serving and blocks
	// until the model is usable.
	Load(ctx context.Context) error
	Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error)
	Name() string  // "whispercpp", "remote", "openai"
	Model() string // configured model identifier
}

// Options are per-call decoding parameters.
type Options struct {
	Language  string
	BeamSize  int
	VADFilter bool
}

// DefaultOptions returns the fixed parameters with the requested language.
func DefaultOptions(language string) Options {
	return Options{
		Language:  language,
		BeamSize:  DefaultBeamSize,
		VADFilter: true,
	}
}

func (o Options) language() string {
	if o.Language == "" {
		return DefaultLanguage
	}
	return o.Language
}

func (o Options) beamSize() int {
	if o.BeamSize <= 0 {
		return DefaultBeamSize
	}
	return o.BeamSize
}

// Result is the common transcription result from any engine.
type Result struct {
	Segments []Segment
	Language string
	Duration float64 // audio duration in seconds
}

// Segment is one timed unit of transcribed text.
type Segment struct {
	Start float64 // seconds
	End   float64 // seconds
	Text  string
}

// Text joins the trimmed segment texts with single spaces.
func (r *Result) Text() string {
	return strings.Join(lo.Map(r.Segments, func(s Segment, _ int) string {
		return strings.TrimSpace(s.Text)
	}), " ")
}

// New builds the engine selected by cfg.Engine. The returned engine has not
// been loaded yet.
func New(cfg *config.Config, store *models.Store, log zerolog.Logger) (Engine, error) {
	log = log.With().Str("engine", cfg.Engine).Logger()
	switch cfg.Engine {
	case "whispercpp":
		return NewWhisperCPP(WhisperCPPOptions{
			Binary:      cfg.WhisperCPPBin,
			Model:       cfg.WhisperModel,
			Store:       store,
			Threads:     cfg.Threads,
			TempDir:     cfg.TempDir,
			FFmpegPath:  cfg.FFmpegPath,
			FFprobePath: cfg.FFprobePath,
			Log:         log,
		}), nil
	case "remote":
		return NewRemote(cfg.RemoteURL, cfg.RemoteHealthURL, cfg.WhisperModel, log).WithToken(cfg.RemoteToken), nil
	case "openai":
		return NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.WhisperModel, log), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEngine, cfg.Engine)
	}
}
