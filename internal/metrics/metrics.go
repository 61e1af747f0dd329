package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LinesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lsd_lines_read_total", Help: "Complete lines read per file"},
		[]string{"file"},
	)
	ReadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lsd_read_errors_total", Help: "File read errors per file"},
		[]string{"file"},
	)
	ParseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "lsd_parse_failures_total", Help: "Lines that did not match the grammar"},
	)
	RecordsScored = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "lsd_records_scored_total", Help: "Records passed to the online scorer"},
	)
	Candidates = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "lsd_candidates_total", Help: "Records above the candidate threshold"},
	)
	Confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lsd_confirmations_total", Help: "Window confirmer calls by result"},
		[]string{"result"}, // anomaly|normal|error
	)
	ConfirmLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "lsd_confirm_seconds", Help: "Window confirmer latency", Buckets: prometheus.DefBuckets},
	)
	WindowFill = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "lsd_window_values", Help: "Values in the sliding window"},
	)
	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lsd_alerts_total", Help: "Confirmed alerts by category"},
		[]string{"category"},
	)
	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lsd_sink_errors_total", Help: "Durable sink write failures, panics included"},
		[]string{"sink"},
	)
	DisplayDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lsd_display_drops_total", Help: "Alerts dropped because a display queue was full"},
		[]string{"display"},
	)
	SessionRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "lsd_session_running", Help: "1 while a monitoring session is running"},
	)
)

func MustRegister() {
	prometheus.MustRegister(LinesRead, ReadErrors, ParseFailures, RecordsScored, Candidates,
		Confirmations, ConfirmLatency, WindowFill, Alerts, SinkErrors, DisplayDrops, SessionRunning)
}

func Handler() http.Handler { return promhttp.Handler() }
