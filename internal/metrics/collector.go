package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceStats provides the metrics collector access to live handler state.
type ServiceStats interface {
	InFlight() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats  ServiceStats
	model  string
	engine string

	inFlight  *prometheus.Desc
	modelInfo *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (in-flight will report 0).
func NewCollector(stats ServiceStats, model, engine string) *Collector {
	return &Collector{
		stats:  stats,
		model:  model,
		engine: engine,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transcriptions_in_flight"),
			"Transcriptions currently running in the engine.",
			nil, nil,
		),
		modelInfo: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "model_info"),
			"Configured model and engine. Always 1.",
			[]string{"model", "engine"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.modelInfo
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	inFlight := 0
	if c.stats != nil {
		inFlight = c.stats.InFlight()
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(inFlight))
	ch <- prometheus.MustNewConstMetric(c.modelInfo, prometheus.GaugeValue, 1, c.model, c.engine)
}
