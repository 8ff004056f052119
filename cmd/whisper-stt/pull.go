package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snarg/whisper-stt/internal/config"
	"github.com/snarg/whisper-stt/internal/models"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func newPullCmd(o *config.Overrides) *cobra.Command {
	var skipVAD bool
	cmd := &cobra.Command{
		Use:   "pull [model...]",
		Short: "Download model files into the model directory",
		Long: `Download ggml model files (and the Silero VAD model) so the server can
start without network access. Defaults to the configured WHISPER_MODEL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd, *o, args, skipVAD)
		},
	}
	cmd.Flags().BoolVar(&skipVAD, "no-vad", false, "skip the VAD model")
	cmd.ValidArgs = models.Names()
	return cmd
}

func runPull(cmd *cobra.Command, o config.Overrides, names []string, skipVAD bool) error {
	cfg, err := config.Load(o)
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(names) == 0 {
		names = []string{cfg.WhisperModel}
	}
	artifacts := make([]models.Artifact, 0, len(names)+1)
	for _, n := range names {
		a, err := models.Lookup(n)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, a)
	}
	if !skipVAD {
		artifacts = append(artifacts, models.VAD)
	}

	// pull always downloads, whatever MODEL_AUTO_DOWNLOAD says
	cfg.ModelAutoDownload = true
	src, err := models.NewSource(cfg, log)
	if err != nil {
		return err
	}

	p := mpb.NewWithContext(ctx,
		mpb.WithOutput(cmd.ErrOrStderr()),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	var bar *mpb.Bar
	store := models.NewStore(models.StoreOptions{
		Dir:    cfg.ModelsDir,
		Source: src,
		Progress: func(a models.Artifact, size int64, r io.Reader) io.Reader {
			bar = p.AddBar(max(size, 0),
				mpb.PrependDecorators(
					decor.Name(a.Filename+" ", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
					decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.OnComplete(decor.NewPercentage("%d", decor.WCSyncSpace), " done"),
					decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
				),
			)
			return bar.ProxyReader(r)
		},
		Log: log,
	})

	for _, a := range artifacts {
		bar = nil
		path, err := store.Ensure(ctx, a)
		if bar != nil {
			if err != nil {
				bar.Abort(false)
			} else {
				// Unknown-size downloads never reach their total on their own.
				bar.SetTotal(-1, true)
			}
		}
		if err != nil {
			p.Wait()
			return fmt.Errorf("pull %s: %w", a.Name, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	p.Wait()
	return nil
}
