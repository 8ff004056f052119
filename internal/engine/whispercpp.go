package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/snarg/whisper-stt/internal/models"
)

// WhisperCPPOptions configures the whisper.cpp CLI engine.
type WhisperCPPOptions struct {
	Binary      string // whisper-cli name or path
	Model       string // model identifier or path to a ggml file
	Store       *models.Store
	Threads     int    // 0 = whisper.cpp default
	TempDir     string // scratch space for output files; "" = os.TempDir()
	FFmpegPath  string // "" disables input normalisation
	FFprobePath string // "" disables the duration probe
	Log         zerolog.Logger
}

// WhisperCPP runs one whisper-cli process per transcription. The model runs
// on CPU with 8-bit weights.
type WhisperCPP struct {
	opts WhisperCPPOptions
	log  zerolog.Logger

	// Resolved by Load.
	binary    string
	modelPath string
	vadPath   string
	ffmpeg    string
	ffprobe   string
}

func NewWhisperCPP(opts WhisperCPPOptions) *WhisperCPP {
	return &WhisperCPP{opts: opts, log: opts.Log}
}

func (e *WhisperCPP) Name() string  { return "whispercpp" }
func (e *WhisperCPP) Model() string { return e.opts.Model }

// Load downloads the model and VAD files if needed and checks the binary.
func (e *WhisperCPP) Load(ctx context.Context) error {
	if e.opts.Store == nil {
		return errors.New("whispercpp: no model store")
	}

	e.log.Info().Str("model", e.opts.Model).Str("dir", e.opts.Store.Dir()).Msg("loading whisper model")

	modelPath, err := e.opts.Store.EnsureModel(ctx, e.opts.Model)
	if err != nil {
		return fmt.Errorf("model %s: %w", e.opts.Model, err)
	}
	vadPath, err := e.opts.Store.Ensure(ctx, models.VAD)
	if err != nil {
		return fmt.Errorf("vad model: %w", err)
	}
	binary, err := exec.LookPath(e.opts.Binary)
	if err != nil {
		return fmt.Errorf("whisper.cpp binary %q: %w", e.opts.Binary, err)
	}

	e.binary, e.modelPath, e.vadPath = binary, modelPath, vadPath

	e.ffmpeg = lookTool(e.opts.FFmpegPath)
	if e.opts.FFmpegPath != "" && e.ffmpeg == "" {
		e.log.Warn().Str("ffmpeg", e.opts.FFmpegPath).Msg("ffmpeg not found in PATH; uploads are passed to whisper.cpp unconverted")
	}
	e.ffprobe = lookTool(e.opts.FFprobePath)
	if e.opts.FFprobePath != "" && e.ffprobe == "" {
		e.log.Warn().Str("ffprobe", e.opts.FFprobePath).Msg("ffprobe not found in PATH; duration falls back to the last segment end")
	}

	e.log.Info().
		Str("model", e.opts.Model).
		Str("model_path", modelPath).
		Str("binary", binary).
		Msg("whisper model loaded")
	return nil
}

// Transcribe runs whisper-cli on audioPath and parses its JSON output.
func (e *WhisperCPP) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	if e.modelPath == "" {
		return nil, errors.New("whispercpp: engine not loaded")
	}

	scratch, err := os.MkdirTemp(e.opts.TempDir, "whisper-cpp-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	input := audioPath
	if e.ffmpeg != "" {
		wav := filepath.Join(scratch, "input.wav")
		if err := normalize(ctx, e.ffmpeg, audioPath, wav); err != nil {
			e.log.Warn().Err(err).Msg("normalisation failed, using original audio")
		} else {
			input = wav
		}
	}

	prefix := filepath.Join(scratch, "out")
	args := e.args(input, prefix, opts)

	e.log.Debug().Str("binary", e.binary).Strs("args", args).Msg("running whisper.cpp")

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper.cpp: %w: %s", err, tail(stderr.String(), 5))
	}

	out, err := readOutput(prefix + ".json")
	if err != nil {
		return nil, err
	}

	res := &Result{
		Segments: lo.Map(out.Transcription, func(s cppSegment, _ int) Segment {
			return Segment{
				Start: float64(s.Offsets.From) / 1000,
				End:   float64(s.Offsets.To) / 1000,
				Text:  s.Text,
			}
		}),
		Language: out.Result.Language,
	}
	if res.Language == "" {
		res.Language = opts.language()
	}
	res.Duration = e.duration(ctx, audioPath, res.Segments)

	e.log.Debug().
		Int("segments", len(res.Segments)).
		Float64("audio_seconds", res.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("whisper.cpp finished")
	return res, nil
}

func (e *WhisperCPP) args(input, prefix string, opts Options) []string {
	args := []string{
		"-m", e.modelPath,
		"-f", input,
		"-l", opts.language(),
		"-bs", strconv.Itoa(opts.beamSize()),
		"-ng",
		"-np",
		"-oj",
		"-of", prefix,
	}
	if opts.VADFilter {
		args = append(args, "--vad", "-vm", e.vadPath)
	}
	if e.opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.opts.Threads))
	}
	return args
}

func (e *WhisperCPP) duration(ctx context.Context, audioPath string, segs []Segment) float64 {
	if e.ffprobe != "" {
		d, err := probeDuration(ctx, e.ffprobe, audioPath)
		if err == nil {
			return d
		}
		e.log.Debug().Err(err).Msg("duration probe failed")
	}
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].End
}

// cppOutput is the subset of whisper-cli's --output-json file we read.
type cppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []cppSegment `json:"transcription"`
}

type cppSegment struct {
	Offsets struct {
		From int64 `json:"from"` // milliseconds
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text string `json:"text"`
}

func readOutput(path string) (*cppOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whisper.cpp output: %w", err)
	}
	var out cppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode whisper.cpp output: %w", err)
	}
	return &out, nil
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := lo.Filter(strings.Split(s, "\n"), func(l string, _ int) bool {
		return strings.TrimSpace(l) != ""
	})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
