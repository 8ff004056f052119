package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("output = %q, want %q", out, version)
	}
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","model":"tiny.en"}`))
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"text":"testing one two","language":"` + r.FormValue("language") + `","duration":1.5}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCmd(t *testing.T) {
	srv := fakeServer(t)

	t.Run("health_only", func(t *testing.T) {
		out, err := execute(t, "check", "--url", srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "health: ok (model tiny.en)") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("transcribe_file", func(t *testing.T) {
		audio := filepath.Join(t.TempDir(), "a.wav")
		os.WriteFile(audio, []byte("RIFF"), 0o644)

		out, err := execute(t, "check", "--url", srv.URL+"/", "--file", audio, "--language", "es", "--token", "tok")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "text:     testing one two") {
			t.Errorf("output = %q", out)
		}
		if !strings.Contains(out, "language: es") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("auth_failure", func(t *testing.T) {
		audio := filepath.Join(t.TempDir(), "a.wav")
		os.WriteFile(audio, []byte("RIFF"), 0o644)

		_, err := execute(t, "check", "--url", srv.URL, "--file", audio)
		if err == nil || !strings.Contains(err.Error(), "status 401") {
			t.Errorf("err = %v, want 401", err)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer down.Close()
		_, err := execute(t, "check", "--url", down.URL)
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestPullCmd_UnknownModel(t *testing.T) {
	t.Setenv("WHISPER_MODELS_DIR", t.TempDir())
	_, err := execute(t, "pull", "--env-file", filepath.Join(t.TempDir(), "none.env"), "huge.en")
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Errorf("err = %v", err)
	}
}

func TestPullCmd_Downloads(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("weights:" + r.URL.Path))
	}))
	defer origin.Close()

	dir := t.TempDir()
	t.Setenv("WHISPER_MODELS_DIR", dir)
	t.Setenv("MODEL_BASE_URL", origin.URL)
	t.Setenv("MODEL_AUTO_DOWNLOAD", "false")

	out, err := execute(t, "pull", "--env-file", filepath.Join(t.TempDir(), "none.env"), "tiny")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"ggml-tiny-q8_0.bin", "ggml-silero-v5.1.2.bin"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s not downloaded: %v", f, err)
		}
		if !strings.Contains(out, f) {
			t.Errorf("output missing %s: %q", f, out)
		}
	}
}
