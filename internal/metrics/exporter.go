// Package metrics exposes fleet readings and poll outcomes to Prometheus.
package metrics

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/fleet"
)

const namespace = "gpumon"

// Source provides the current fleet view. *fleet.Collector satisfies it.
type Source interface {
	Snapshot() fleet.View
}

// Exporter is both a fleet.Observer, counting poll outcomes as they
// happen, and a prometheus.Collector that turns the latest snapshot into
// gauges at scrape time.
type Exporter struct {
	mu     sync.RWMutex
	source Source

	polls   *prometheus.CounterVec
	latency *prometheus.HistogramVec

	memUsed     *prometheus.Desc
	memTotal    *prometheus.Desc
	util        *prometheus.Desc
	up          *prometheus.Desc
	lastSuccess *prometheus.Desc
	failures    *prometheus.Desc
}

// NewExporter returns an exporter with no source attached. Gauges are
// empty until Attach is called; counters work right away.
func NewExporter() *Exporter {
	gpuLabels := []string{"server", "index", "gpu"}
	serverLabels := []string{"server", "index"}

	return &Exporter{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll iterations per server, by result (ok, connect, exec, other).",
		}, []string{"server", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of successful connect, execute and parse rounds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"server"}),
		memUsed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "gpu", "memory_used_mib"),
			"GPU memory in use, MiB.", gpuLabels, nil),
		memTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "gpu", "memory_total_mib"),
			"GPU memory capacity, MiB.", gpuLabels, nil),
		util: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "gpu", "utilization_percent"),
			"GPU utilization, percent.", gpuLabels, nil),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "up"),
			"1 if the last poll of the server succeeded.", serverLabels, nil),
		lastSuccess: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "last_success_timestamp_seconds"),
			"Unix time of the last published reading; 0 if none yet.", serverLabels, nil),
		failures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "server", "consecutive_failures"),
			"Failed polls since the last success.", serverLabels, nil),
	}
}

// Attach sets the source read at scrape time.
func (e *Exporter) Attach(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = src
}

// PollSucceeded implements fleet.Observer.
func (e *Exporter) PollSucceeded(s fleet.Server, latency time.Duration) {
	e.polls.WithLabelValues(s.Name(), "ok").Inc()
	e.latency.WithLabelValues(s.Name()).Observe(latency.Seconds())
}

// PollFailed implements fleet.Observer.
func (e *Exporter) PollFailed(s fleet.Server, err error) {
	e.polls.WithLabelValues(s.Name(), failureResult(err)).Inc()
}

func failureResult(err error) string {
	var gmErr *errors.Error
	if stderrors.As(err, &gmErr) {
		switch gmErr.Code {
		case errors.ErrConnect:
			return "connect"
		case errors.ErrExec:
			return "exec"
		}
	}
	return "other"
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	e.polls.Describe(ch)
	e.latency.Describe(ch)
	ch <- e.memUsed
	ch <- e.memTotal
	ch <- e.util
	ch <- e.up
	ch <- e.lastSuccess
	ch <- e.failures
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.polls.Collect(ch)
	e.latency.Collect(ch)

	e.mu.RLock()
	src := e.source
	e.mu.RUnlock()
	if src == nil {
		return
	}

	view := src.Snapshot()
	for pos, server := range view.Servers {
		name := server.Name()
		index := strconv.Itoa(server.Index)

		for slot, sample := range view.Accelerators(pos) {
			gpu := strconv.Itoa(slot)
			ch <- prometheus.MustNewConstMetric(e.memUsed, prometheus.GaugeValue, float64(sample.MemUsedMiB), name, index, gpu)
			ch <- prometheus.MustNewConstMetric(e.memTotal, prometheus.GaugeValue, float64(sample.MemTotalMiB), name, index, gpu)
			ch <- prometheus.MustNewConstMetric(e.util, prometheus.GaugeValue, float64(sample.UtilPercent), name, index, gpu)
		}

		if pos >= len(view.Status) {
			continue
		}
		st := view.Status[pos]

		up := 0.0
		if st.Online() {
			up = 1
		}
		last := 0.0
		if !st.LastSuccess.IsZero() {
			last = float64(st.LastSuccess.UnixNano()) / 1e9
		}
		ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, up, name, index)
		ch <- prometheus.MustNewConstMetric(e.lastSuccess, prometheus.GaugeValue, last, name, index)
		ch <- prometheus.MustNewConstMetric(e.failures, prometheus.GaugeValue, float64(st.Failures), name, index)
	}
}

// NewRegistry returns a registry holding the exporter plus the standard Go
// runtime and process collectors.
func NewRegistry(e *Exporter) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		e,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
