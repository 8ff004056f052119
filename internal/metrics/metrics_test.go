package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeStats struct{ n int }

func (f fakeStats) InFlight() int { return f.n }

func TestCollector(t *testing.T) {
	c := NewCollector(fakeStats{n: 3}, "base.en", "whispercpp")

	want := `
# HELP whisper_stt_model_info Configured model and engine. Always 1.
# TYPE whisper_stt_model_info gauge
whisper_stt_model_info{engine="whispercpp",model="base.en"} 1
# HELP whisper_stt_transcriptions_in_flight Transcriptions currently running in the engine.
# TYPE whisper_stt_transcriptions_in_flight gauge
whisper_stt_transcriptions_in_flight 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want)); err != nil {
		t.Error(err)
	}
}

func TestCollector_NilStats(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(nil, "tiny", "remote")); err != nil {
		t.Fatalf("register: %v", err)
	}
	n, err := testutil.GatherAndCount(reg, "whisper_stt_transcriptions_in_flight")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
}

func TestInstrumentHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hi"))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "418"))
	if after-before != 1 {
		t.Errorf("requests_total delta = %v, want 1", after-before)
	}
}

func TestInstrumentHandler_NoRouteContext(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unknown", "200"))
	if after-before != 1 {
		t.Errorf("requests_total delta = %v, want 1", after-before)
	}
}
