package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-stt/internal/engine"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	url      string
	file     string
	language string
	token    string
	timeout  time.Duration
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Smoke-test a running server",
		Long: `Calls /health on a running instance and, when --file is given, sends the
file to /v1/audio/transcriptions and prints the result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "http://localhost:9000", "server base URL")
	f.StringVar(&opts.file, "file", "", "audio file to transcribe")
	f.StringVar(&opts.language, "language", engine.DefaultLanguage, "language code")
	f.StringVar(&opts.token, "token", "", "bearer token for /v1 routes")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall timeout")
	return cmd
}

func runCheck(cmd *cobra.Command, opts checkOptions) error {
	base := strings.TrimRight(opts.url, "/")
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	out := cmd.OutOrStdout()

	health, err := fetchHealth(ctx, base+"/health")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "health: %s (model %s)\n", health.Status, health.Model)

	if opts.file == "" {
		return nil
	}

	client := engine.NewRemote(base+"/v1/audio/transcriptions", "", health.Model, zerolog.Nop()).WithToken(opts.token)
	start := time.Now()
	res, err := client.Transcribe(ctx, opts.file, engine.DefaultOptions(opts.language))
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", opts.file, err)
	}
	fmt.Fprintf(out, "language: %s\nduration: %.2fs\nelapsed:  %s\ntext:     %s\n",
		res.Language, res.Duration, time.Since(start).Round(time.Millisecond), res.Text())
	return nil
}

type healthBody struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

func fetchHealth(ctx context.Context, url string) (*healthBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health: status %d", resp.StatusCode)
	}
	var h healthBody
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("health: decode: %w", err)
	}
	if h.Status != "ok" {
		return nil, fmt.Errorf("health: status %q", h.Status)
	}
	return &h, nil
}
