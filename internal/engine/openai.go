package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// OpenAI transcribes through the OpenAI SDK. BaseURL can point at the
// hosted API or any compatible server.
type OpenAI struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

func NewOpenAI(baseURL, apiKey, model string, log zerolog.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log,
	}
}

func (o *OpenAI) Name() string  { return "openai" }
func (o *OpenAI) Model() string { return o.model }

// Load is a no-op; the first request surfaces credential problems.
func (o *OpenAI) Load(ctx context.Context) error {
	o.log.Info().Str("model", o.model).Msg("openai engine configured")
	return nil
}

// Transcribe sends the file with verbose_json so segments come back.
// Beam size and VAD are server-side settings and are not sent.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Language: opts.language(),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	res := &Result{Language: resp.Language, Duration: resp.Duration}
	for _, s := range resp.Segments {
		res.Segments = append(res.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	if len(res.Segments) == 0 && resp.Text != "" {
		res.Segments = []Segment{{Start: 0, End: resp.Duration, Text: resp.Text}}
	}
	if res.Language == "" {
		res.Language = opts.language()
	}
	return res, nil
}
