package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the Prometheus collectors of the system.
// ⭐ SSOT: 메트릭 정의는 여기서만
type Recorder struct {
	registry *prometheus.Registry

	generations   *prometheus.CounterVec
	rateWait      prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	statusPushes  *prometheus.CounterVec
	highlights    *prometheus.CounterVec
}

// New creates a recorder on its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_generations_total",
				Help: "Text generation calls by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		rateWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signaldesk_rate_limit_wait_seconds",
				Help:    "Time callers spent blocked on the generation rate window",
				Buckets: []float64{0, 0.1, 1, 5, 15, 30, 60},
			},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_tool_calls_total",
				Help: "Remote tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaldesk_stage_duration_seconds",
				Help:    "Duration of daily cycle stages",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"stage"},
		),
		statusPushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_status_pushes_total",
				Help: "Status and last-message pushes by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		highlights: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_highlights_generated_total",
				Help: "Highlights upserted by hit outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		r.generations, r.rateWait, r.toolCalls,
		r.stageDuration, r.statusPushes, r.highlights,
	)

	return r
}

// Handler exposes the registry for scraping
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordGeneration records one outbound generation call.
// All Record* methods are no-ops on a nil recorder.
func (r *Recorder) RecordGeneration(tier, outcome string) {
	if r == nil {
		return
	}
	r.generations.WithLabelValues(tier, outcome).Inc()
}

// RecordRateWait records time spent waiting for a rate window slot
func (r *Recorder) RecordRateWait(d time.Duration) {
	if r == nil {
		return
	}
	r.rateWait.Observe(d.Seconds())
}

// RecordToolCall records a remote tool invocation
func (r *Recorder) RecordToolCall(tool, outcome string) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordStage records the duration of a cycle stage
func (r *Recorder) RecordStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStatusPush records a status or last-message push
func (r *Recorder) RecordStatusPush(kind, outcome string) {
	if r == nil {
		return
	}
	r.statusPushes.WithLabelValues(kind, outcome).Inc()
}

// RecordHighlight records an upserted highlight
func (r *Recorder) RecordHighlight(outcome string) {
	if r == nil {
		return
	}
	r.highlights.WithLabelValues(outcome).Inc()
}
