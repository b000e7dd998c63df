// Package metrics counts admission decisions and script runs.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dshills/luafs/internal/validate"
)

// Metrics contains Prometheus metrics for the sandboxed filesystem.
type Metrics struct {
	registry *prometheus.Registry

	admissionsTotal *prometheus.CounterVec
	denialsTotal    *prometheus.CounterVec

	scriptRunsTotal       *prometheus.CounterVec
	scriptDurationSeconds prometheus.Histogram
}

// New creates and registers the metrics on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.admissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "luafs_admissions_total",
			Help: "Total number of filesystem calls checked by the validator",
		},
		[]string{"op", "intent", "result"}, // result: admitted, denied
	)

	m.denialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "luafs_denials_total",
			Help: "Total number of denied filesystem calls by reason",
		},
		[]string{"reason"},
	)

	m.scriptRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "luafs_script_runs_total",
			Help: "Total number of script executions",
		},
		[]string{"status"}, // status: success, error
	)

	m.scriptDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "luafs_script_duration_seconds",
			Help:    "Time taken by script executions",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
	)
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.admissionsTotal.Describe(ch)
	m.denialsTotal.Describe(ch)
	m.scriptRunsTotal.Describe(ch)
	m.scriptDurationSeconds.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.admissionsTotal.Collect(ch)
	m.denialsTotal.Collect(ch)
	m.scriptRunsTotal.Collect(ch)
	m.scriptDurationSeconds.Collect(ch)
}

// Admission records one validator decision.
func (m *Metrics) Admission(op string, intent validate.Intent, err error) {
	result := "admitted"
	if err != nil {
		result = "denied"
		m.denialsTotal.WithLabelValues(validate.Reason(err)).Inc()
	}
	m.admissionsTotal.WithLabelValues(op, intent.String(), result).Inc()
}

// RecordScriptRun records one script execution.
func (m *Metrics) RecordScriptRun(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.scriptRunsTotal.WithLabelValues(status).Inc()
	m.scriptDurationSeconds.Observe(d.Seconds())
}

// WriteSummary writes every non-zero counter as "name{labels} value", one
// per line in sorted order.
func (m *Metrics) WriteSummary(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range mf.GetMetric() {
			v := metric.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), formatLabels(metric.GetLabel()), v))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	return strings.Join(parts, ",")
}
