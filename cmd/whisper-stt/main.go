package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-stt/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. Without a subcommand it runs the server.
func newRootCmd() *cobra.Command {
	var o config.Overrides

	root := &cobra.Command{
		Use:   "whisper-stt",
		Short: "OpenAI-compatible speech-to-text server backed by whisper",
		Long: `whisper-stt serves POST /v1/audio/transcriptions with the same request
and response shape as the OpenAI Whisper API, backed by a local whisper.cpp
model or an upstream OpenAI-compatible endpoint.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(o)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.EnvFile, "env-file", "", "path to .env file (default .env)")
	pf.StringVar(&o.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	pf.StringVar(&o.WhisperModel, "model", "", "model name or path (overrides WHISPER_MODEL)")
	pf.StringVar(&o.ModelsDir, "models-dir", "", "model directory (overrides WHISPER_MODELS_DIR)")
	pf.StringVar(&o.Engine, "engine", "", "whispercpp, remote or openai (overrides WHISPER_ENGINE)")
	pf.StringVar(&o.HTTPAddr, "listen", "", "listen address (overrides HTTP_ADDR)")

	root.AddCommand(newServeCmd(&o))
	root.AddCommand(newPullCmd(&o))
	root.AddCommand(newCheckCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newLogger(levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
